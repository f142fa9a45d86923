package trigger

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tourflow/tourflow/pkg/embed"
)

// Kind names what started a tour.
type Kind string

const (
	KindPageLoad     Kind = "page_load"
	KindElementClick Kind = "element_click"
	KindScroll       Kind = "scroll"
	KindAutoStart    Kind = "auto_start"
	KindManual       Kind = "manual"
)

// DefaultScrollInterval is the minimum spacing between scroll samples.
const DefaultScrollInterval = 100 * time.Millisecond

// Element is a node of the host page as seen by click delegation.
type Element interface {
	Matches(selector string) bool
	// Parent returns nil at the document root.
	Parent() Element
}

// Options tune an Evaluator.
type Options struct {
	ScrollInterval time.Duration
	Now            func() time.Time
}

// Evaluator arms the configured triggers and reports the first one to fire.
// After it fires every other listener is dropped.
type Evaluator struct {
	cfg  embed.Config
	sig  Signals
	fire func(Kind)
	opts Options

	mu        sync.Mutex
	listening map[Kind]bool
	done      bool
	ready     bool
	delay     *time.Timer
	limiter   *rate.Limiter
	trailing  *time.Timer
	lastPct   float64
}

// New creates an evaluator. fire is called at most once, outside any lock.
func New(cfg embed.Config, sig Signals, fire func(Kind), opts Options) *Evaluator {
	if opts.ScrollInterval <= 0 {
		opts.ScrollInterval = DefaultScrollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Evaluator{
		cfg:       cfg,
		sig:       sig,
		fire:      fire,
		opts:      opts,
		listening: make(map[Kind]bool),
		limiter:   rate.NewLimiter(rate.Every(opts.ScrollInterval), 1),
	}
}

// Arm evaluates targeting and attaches listeners for the enabled triggers.
// It returns false when targeting blocks the tour; nothing is attached then.
func (e *Evaluator) Arm() bool {
	ok, reason := Eligible(e.cfg.Targeting, e.sig)
	if !ok {
		slog.Debug("tour not eligible on this page",
			slog.String("tour_id", e.cfg.TourID),
			slog.String("url", e.sig.URL),
			slog.String("reason", reason))
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return false
	}

	if e.cfg.Features.AutoStart {
		e.listening[KindAutoStart] = true
	}
	if t := e.cfg.Triggers; t != nil {
		if t.OnPageLoad.Enabled {
			e.listening[KindPageLoad] = true
		}
		if t.OnElementClick.Enabled && t.OnElementClick.Selector != "" {
			e.listening[KindElementClick] = true
		}
		if t.OnScroll.Enabled {
			e.listening[KindScroll] = true
		}
	}
	e.listening[KindManual] = true
	return true
}

// Listening returns the armed trigger kinds.
func (e *Evaluator) Listening() []Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Kind, 0, len(e.listening))
	for _, k := range []Kind{KindAutoStart, KindPageLoad, KindElementClick, KindScroll, KindManual} {
		if e.listening[k] {
			out = append(out, k)
		}
	}
	return out
}

// DOMReady starts auto-start and the page-load delay.
func (e *Evaluator) DOMReady() {
	e.mu.Lock()
	if e.ready || e.done {
		e.mu.Unlock()
		return
	}
	e.ready = true
	auto := e.listening[KindAutoStart]
	if !auto && e.listening[KindPageLoad] {
		d := time.Duration(e.cfg.Triggers.OnPageLoad.DelayMs) * time.Millisecond
		if d > 0 {
			e.delay = time.AfterFunc(d, func() { e.tryFire(KindPageLoad) })
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
		e.tryFire(KindPageLoad)
		return
	}
	e.mu.Unlock()

	if auto {
		e.tryFire(KindAutoStart)
	}
}

// HandleClick receives every click on the page. The tour fires when the
// target or one of its ancestors matches the configured selector, so
// elements added after load work too.
func (e *Evaluator) HandleClick(target Element) {
	e.mu.Lock()
	if !e.listening[KindElementClick] {
		e.mu.Unlock()
		return
	}
	selector := e.cfg.Triggers.OnElementClick.Selector
	e.mu.Unlock()

	for el := target; el != nil; el = el.Parent() {
		if el.Matches(selector) {
			e.tryFire(KindElementClick)
			return
		}
	}
}

// HandleScroll receives the vertical scroll proportion in percent. Samples
// are throttled; the latest throttled sample is evaluated once the interval
// has passed.
func (e *Evaluator) HandleScroll(percent float64) {
	e.mu.Lock()
	if !e.listening[KindScroll] {
		e.mu.Unlock()
		return
	}
	if !e.limiter.AllowN(e.opts.Now(), 1) {
		e.lastPct = percent
		if e.trailing == nil {
			e.trailing = time.AfterFunc(e.opts.ScrollInterval, e.flushScroll)
		}
		e.mu.Unlock()
		return
	}
	threshold := e.cfg.Triggers.OnScroll.Percentage
	e.mu.Unlock()

	if percent >= threshold {
		e.tryFire(KindScroll)
	}
}

func (e *Evaluator) flushScroll() {
	e.mu.Lock()
	e.trailing = nil
	if !e.listening[KindScroll] {
		e.mu.Unlock()
		return
	}
	pct := e.lastPct
	threshold := e.cfg.Triggers.OnScroll.Percentage
	e.mu.Unlock()

	if pct >= threshold {
		e.tryFire(KindScroll)
	}
}

// Fire starts the tour on host request, bypassing page triggers but not
// targeting.
func (e *Evaluator) Fire() bool {
	return e.tryFire(KindManual)
}

// Disarm drops all listeners and pending timers.
func (e *Evaluator) Disarm() {
	e.mu.Lock()
	e.done = true
	e.clearLocked()
	e.mu.Unlock()
}

func (e *Evaluator) tryFire(k Kind) bool {
	e.mu.Lock()
	if e.done || !e.listening[k] {
		e.mu.Unlock()
		return false
	}
	e.done = true
	e.clearLocked()
	e.mu.Unlock()

	slog.Debug("tour trigger fired", slog.String("tour_id", e.cfg.TourID), slog.String("trigger", string(k)))
	e.fire(k)
	return true
}

func (e *Evaluator) clearLocked() {
	clear(e.listening)
	if e.delay != nil {
		e.delay.Stop()
		e.delay = nil
	}
	if e.trailing != nil {
		e.trailing.Stop()
		e.trailing = nil
	}
}
