package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"
	"github.com/rs/xid"

	"github.com/tourflow/tourflow/pkg/analytics"
	"github.com/tourflow/tourflow/pkg/resolver"
	"github.com/tourflow/tourflow/pkg/tour"
)

// Emitter receives analytics events. Emit must not block.
type Emitter interface {
	Emit(ev analytics.Event)
}

// View is what the widget shows for the current step.
type View struct {
	SessionID string          `json:"sessionId"`
	TourID    string          `json:"tourId"`
	Index     int             `json:"index"`
	Total     int             `json:"total"`
	Step      tour.Step       `json:"step"`
	Anchor    resolver.Anchor `json:"anchor"`
	Settings  tour.Settings   `json:"settings"`
}

// Renderer owns the widget subtree.
type Renderer interface {
	Render(v View)
	Clear()
}

// Callbacks are host hooks, invoked synchronously from transitions.
type Callbacks struct {
	OnStepChange func(stepIndex int)
	OnComplete   func()
	OnSkip       func(stepIndex int)
}

// Options configure a Player.
type Options struct {
	Emitter   Emitter
	Resolver  *resolver.Resolver
	Renderer  Renderer
	Callbacks Callbacks

	AllowSkip           bool
	CloseOnClickOutside bool
	Policy              TimeoutPolicy
	ResolveTimeout      time.Duration
	// IdleTimeout closes an ACTIVE session with no transitions. Zero disables it.
	IdleTimeout time.Duration

	SessionID string
	URL       string
	UserAgent string
	Now       func() time.Time
	Pool      workerpool.WorkerPool
}

// Player is the playback state machine for one session. All session
// mutation goes through its methods, which are safe for concurrent use.
type Player struct {
	def  *tour.Definition
	opts Options

	mu            sync.Mutex
	sess          *session
	gen           uint64
	resolving     bool
	anchor        resolver.Anchor
	cancelResolve context.CancelFunc
	idle          *time.Timer
	idleGen       uint64
	viewGen       uint64
	paint         painter
}

// NewPlayer creates an IDLE session for def.
func NewPlayer(def *tour.Definition, opts Options) *Player {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = resolver.DefaultTimeout
	}
	if opts.SessionID == "" {
		opts.SessionID = xid.New().String()
	}
	return &Player{
		def:  def,
		opts: opts,
		sess: newSession(opts.SessionID, def.ID, opts.Now()),
	}
}

// SessionID returns the id correlating this session's analytics events.
func (p *Player) SessionID() string { return p.opts.SessionID }

// State returns the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess.state
}

// Start arms the session and resolves the first step. The session becomes
// ACTIVE once that step's target is found.
func (p *Player) Start() error {
	p.mu.Lock()
	if p.sess.state != StateIdle {
		err := p.rejectLocked("start", ErrAlreadyStarted)
		p.mu.Unlock()
		return err
	}
	p.sess.startedAt = p.opts.Now()
	p.transitionLocked(StateArmed, "start")
	fx := p.showStepLocked(0)
	p.mu.Unlock()

	run(fx)
	return nil
}

// Next advances one step, or completes the tour from the last step.
func (p *Player) Next() error {
	p.mu.Lock()
	if p.sess.state != StateActive {
		err := p.rejectLocked("next", ErrNotActive)
		p.mu.Unlock()
		return err
	}

	var fx []func()
	idx := p.sess.index
	if idx == p.def.Len()-1 {
		p.emitLocked(analytics.TourCompleted, "")
		fx = p.finishLocked(StateCompleted, "next")
		if cb := p.opts.Callbacks.OnComplete; cb != nil {
			fx = append(fx, cb)
		}
	} else {
		dest := idx + 1
		// A step counts as completed only the first time the user moves past it.
		if dest > p.sess.maxReached {
			p.emitLocked(analytics.StepCompleted, p.def.Steps[idx].ID)
			p.sess.maxReached = dest
		}
		p.sess.index = dest
		p.transitionLocked(StateActive, "next")
		fx = append(fx, p.showStepLocked(dest)...)
		fx = append(fx, p.stepChanged(dest))
	}
	p.mu.Unlock()

	run(fx)
	return nil
}

// Prev moves back one step. It fails with ErrFirstStep on step 0.
func (p *Player) Prev() error {
	p.mu.Lock()
	if p.sess.state != StateActive {
		err := p.rejectLocked("prev", ErrNotActive)
		p.mu.Unlock()
		return err
	}
	if p.sess.index == 0 {
		p.mu.Unlock()
		return ErrFirstStep
	}

	dest := p.sess.index - 1
	p.sess.index = dest
	p.transitionLocked(StateActive, "prev")
	fx := append(p.showStepLocked(dest), p.stepChanged(dest))
	p.mu.Unlock()

	run(fx)
	return nil
}

// Skip abandons the tour when skipping is allowed.
func (p *Player) Skip() error {
	p.mu.Lock()
	if p.sess.state != StateActive {
		err := p.rejectLocked("skip", ErrNotActive)
		p.mu.Unlock()
		return err
	}
	if !p.opts.AllowSkip {
		p.mu.Unlock()
		return ErrSkipDisabled
	}

	idx := p.sess.index
	p.emitLocked(analytics.TourSkipped, p.def.Steps[idx].ID)
	fx := p.finishLocked(StateSkipped, "skip")
	if cb := p.opts.Callbacks.OnSkip; cb != nil {
		fx = append(fx, func() { cb(idx) })
	}
	p.mu.Unlock()

	run(fx)
	return nil
}

// Close ends the session without completion. No analytics event is sent.
func (p *Player) Close() error {
	return p.closeWith(CloseExplicit, true)
}

// CloseOnClickOutside closes the session if the tour allows it and reports
// whether it did.
func (p *Player) CloseOnClickOutside() bool {
	if !p.opts.CloseOnClickOutside {
		return false
	}
	p.mu.Lock()
	active := p.sess.state == StateActive
	p.mu.Unlock()
	if !active {
		return false
	}
	return p.closeWith(CloseClickOutside, false) == nil
}

// Navigate closes the session because the host page is going away.
func (p *Player) Navigate() {
	_ = p.closeWith(CloseNavigation, false)
}

// Destroy tears the session down. Calling it again is a no-op.
func (p *Player) Destroy() {
	_ = p.closeWith(CloseDestroyed, false)
}

// Pause suspends the idle timer of an ACTIVE session.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess.state != StateActive {
		return p.rejectLocked("pause", ErrNotActive)
	}
	p.transitionLocked(StatePaused, "pause")
	p.stopIdleLocked()
	return nil
}

// Resume returns a PAUSED session to ACTIVE.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess.state != StatePaused {
		return p.rejectLocked("resume", ErrNotPaused)
	}
	p.transitionLocked(StateActive, "resume")
	p.resetIdleLocked()
	return nil
}

func (p *Player) closeWith(reason CloseReason, warn bool) error {
	p.mu.Lock()
	if p.sess.state.Terminal() {
		var err error = ErrTerminalSession
		if warn {
			err = p.rejectLocked("close", ErrTerminalSession)
		}
		p.mu.Unlock()
		return err
	}
	fx := p.closeLocked(reason)
	p.mu.Unlock()

	run(fx)
	return nil
}

func (p *Player) closeLocked(reason CloseReason) []func() {
	p.sess.closeReason = reason
	return p.finishLocked(StateClosed, string(reason))
}

// finishLocked moves to a terminal state and cancels everything pending.
func (p *Player) finishLocked(to State, trigger string) []func() {
	p.transitionLocked(to, trigger)
	p.cancelResolutionLocked()
	p.stopIdleLocked()

	if r, ok := p.opts.Emitter.(interface{ Release(string) }); ok {
		r.Release(p.sess.id)
	}
	if clear := p.clearLocked(); clear != nil {
		return []func(){clear}
	}
	return nil
}

func (p *Player) transitionLocked(to State, trigger string) {
	if !canTransition(p.sess.state, to) {
		slog.Error("illegal tour session transition",
			slog.String("session_id", p.sess.id),
			slog.String("from", string(p.sess.state)),
			slog.String("to", string(to)),
			slog.String("trigger", trigger))
		return
	}
	p.sess.record(to, trigger, p.opts.Now())
	if to == StateActive {
		p.resetIdleLocked()
	}
}

func (p *Player) rejectLocked(op string, notReady error) error {
	if p.sess.state.Terminal() {
		slog.Warn("call on ended tour session ignored",
			slog.String("op", op),
			slog.String("session_id", p.sess.id),
			slog.String("tour_id", p.sess.tourID),
			slog.String("state", string(p.sess.state)))
		return ErrTerminalSession
	}
	return notReady
}

func (p *Player) emitLocked(t analytics.EventType, stepID string) {
	if p.opts.Emitter == nil {
		return
	}
	p.opts.Emitter.Emit(analytics.Event{
		TourID:    p.sess.tourID,
		StepID:    stepID,
		SessionID: p.sess.id,
		Type:      t,
		Timestamp: p.opts.Now(),
		UserAgent: p.opts.UserAgent,
		URL:       p.opts.URL,
	})
}

func (p *Player) stepChanged(idx int) func() {
	cb := p.opts.Callbacks.OnStepChange
	if cb == nil {
		return func() {}
	}
	return func() { cb(idx) }
}

// showStepLocked points the session at idx and resolves its target. Any
// earlier resolution still in flight is cancelled.
func (p *Player) showStepLocked(idx int) []func() {
	p.cancelResolutionLocked()
	p.sess.index = idx
	step := p.def.Steps[idx]

	if a, ok := p.lookup(step.Target); ok {
		return p.resolvedLocked(idx, a)
	}

	p.gen++
	gen := p.gen
	p.viewGen++
	p.resolving = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancelResolve = cancel

	work := func() {
		a, err := p.opts.Resolver.Resolve(ctx, step.Target, p.opts.ResolveTimeout)
		p.finishResolve(gen, idx, a, err)
	}
	if p.opts.Pool == nil || p.opts.Pool.Submit(ctx, work) != nil {
		go work()
	}
	return nil
}

func (p *Player) lookup(selector string) (resolver.Anchor, bool) {
	if p.opts.Resolver == nil {
		return resolver.Anchor{Selector: selector, Floating: selector == ""}, true
	}
	return p.opts.Resolver.Lookup(selector)
}

func (p *Player) finishResolve(gen uint64, idx int, a resolver.Anchor, err error) {
	p.mu.Lock()
	if gen != p.gen || p.sess.state.Terminal() {
		p.mu.Unlock()
		return
	}

	var fx []func()
	switch {
	case err == nil:
		fx = p.resolvedLocked(idx, a)
	case errors.Is(err, resolver.ErrTimeout):
		fx = p.timedOutLocked(idx)
	default:
		p.resolving = false
	}
	p.mu.Unlock()

	run(fx)
}

func (p *Player) resolvedLocked(idx int, a resolver.Anchor) []func() {
	p.resolving = false
	p.cancelResolve = nil
	p.anchor = a

	started := p.sess.state == StateArmed
	if started {
		p.sess.maxReached = idx
		p.transitionLocked(StateActive, "resolved")
		p.emitLocked(analytics.TourStarted, "")
	}

	// The widget is painted before host callbacks so a callback that ends
	// or moves the session always has the last word.
	var fx []func()
	if render := p.renderLocked(); render != nil {
		fx = append(fx, render)
	}
	if started {
		fx = append(fx, p.stepChanged(idx))
	}
	return fx
}

func (p *Player) timedOutLocked(idx int) []func() {
	p.resolving = false
	p.cancelResolve = nil
	slog.Warn("tour step target not found",
		slog.String("session_id", p.sess.id),
		slog.String("step_id", p.def.Steps[idx].ID),
		slog.String("selector", p.def.Steps[idx].Target),
		slog.String("policy", p.opts.Policy.String()))

	if p.opts.Policy == PolicyEndSession || idx == p.def.Len()-1 {
		return p.closeLocked(CloseResolutionTimeout)
	}

	dest := idx + 1
	var fx []func()
	if p.sess.state != StateArmed {
		if dest > p.sess.maxReached {
			p.sess.maxReached = dest
		}
		p.sess.index = dest
		if p.sess.state == StateActive {
			p.transitionLocked(StateActive, "resolution_timeout")
		}
		fx = append(fx, p.stepChanged(dest))
	}
	return append(p.showStepLocked(dest), fx...)
}

func (p *Player) cancelResolutionLocked() {
	p.gen++
	p.resolving = false
	if p.cancelResolve != nil {
		p.cancelResolve()
		p.cancelResolve = nil
	}
}

func (p *Player) resetIdleLocked() {
	if p.opts.IdleTimeout <= 0 {
		return
	}
	p.stopIdleLocked()
	gen := p.idleGen
	p.idle = time.AfterFunc(p.opts.IdleTimeout, func() { p.expireIdle(gen) })
}

func (p *Player) stopIdleLocked() {
	p.idleGen++
	if p.idle != nil {
		p.idle.Stop()
		p.idle = nil
	}
}

func (p *Player) expireIdle(gen uint64) {
	p.mu.Lock()
	if gen != p.idleGen || p.sess.state != StateActive {
		p.mu.Unlock()
		return
	}
	fx := p.closeLocked(CloseIdleTimeout)
	p.mu.Unlock()

	run(fx)
}

func (p *Player) viewLocked() View {
	return View{
		SessionID: p.sess.id,
		TourID:    p.sess.tourID,
		Index:     p.sess.index,
		Total:     p.def.Len(),
		Step:      p.def.Steps[p.sess.index],
		Anchor:    p.anchor,
		Settings:  p.def.Settings,
	}
}

func run(fx []func()) {
	for _, f := range fx {
		f()
	}
}
