// Package widget is the embeddable entry point: Init wires a tour's
// triggers to a playback session and returns a Handle for the host page.
package widget

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"

	"github.com/tourflow/tourflow/pkg/embed"
	"github.com/tourflow/tourflow/pkg/playback"
	"github.com/tourflow/tourflow/pkg/resolver"
	"github.com/tourflow/tourflow/pkg/tour"
	"github.com/tourflow/tourflow/pkg/trigger"
)

// ErrNoRegistry is returned by Init when Options.Registry is nil.
var ErrNoRegistry = errors.New("widget: registry is required")

// Options carry the host collaborators.
type Options struct {
	Registry  *tour.Registry
	Emitter   playback.Emitter
	Resolver  *resolver.Resolver
	Renderer  playback.Renderer
	Callbacks playback.Callbacks
	Signals   trigger.Signals

	Policy         playback.TimeoutPolicy
	ResolveTimeout time.Duration
	IdleTimeout    time.Duration
	ScrollInterval time.Duration

	Pool workerpool.WorkerPool
	Now  func() time.Time
}

// Handle controls one embedded widget.
type Handle struct {
	cfg  embed.Config
	opts Options
	eval *trigger.Evaluator

	ctx    context.Context
	cancel context.CancelFunc
	armed  bool

	mu        sync.Mutex
	player    *playback.Player
	starting  bool
	loadErr   error
	destroyed bool
}

// Init validates cfg and arms its triggers. Only an invalid config or
// missing collaborator is reported; load and delivery failures later on
// leave the widget silently inactive.
func Init(ctx context.Context, cfg embed.Config, opts Options) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}

	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cfg:    cfg,
		opts:   opts,
		ctx:    hctx,
		cancel: cancel,
	}
	h.eval = trigger.New(cfg, opts.Signals, h.onTrigger, trigger.Options{
		ScrollInterval: opts.ScrollInterval,
		Now:            opts.Now,
	})
	h.armed = h.eval.Arm()
	return h, nil
}

// Armed reports whether targeting allowed this page.
func (h *Handle) Armed() bool { return h.armed }

// Err returns the tour load error that disabled the widget, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadErr
}

// Player returns the current session, or nil before any trigger fired.
func (h *Handle) Player() *playback.Player {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.player
}

// DOMReady forwards the page's DOM-ready signal.
func (h *Handle) DOMReady() { h.eval.DOMReady() }

// HandleClick forwards a click on the host page.
func (h *Handle) HandleClick(target trigger.Element) { h.eval.HandleClick(target) }

// HandleScroll forwards the vertical scroll proportion in percent.
func (h *Handle) HandleScroll(percent float64) { h.eval.HandleScroll(percent) }

// ClickOutside reports a click outside the widget.
func (h *Handle) ClickOutside() bool {
	if p := h.Player(); p != nil {
		return p.CloseOnClickOutside()
	}
	return false
}

// Start begins the tour on host request and reports whether a session
// started. It is ignored while a session is running and on pages excluded
// by targeting.
func (h *Handle) Start() bool {
	if !h.armed {
		return false
	}
	if h.eval.Fire() {
		return h.launched()
	}
	return h.launch(trigger.KindManual)
}

// launched reports whether the last trigger produced a live session.
func (h *Handle) launched() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadErr == nil && h.player != nil && !h.player.State().Terminal()
}

// Next advances the current session.
func (h *Handle) Next() error { return h.with(func(p *playback.Player) error { return p.Next() }) }

// Prev moves the current session back one step.
func (h *Handle) Prev() error { return h.with(func(p *playback.Player) error { return p.Prev() }) }

// Skip abandons the current session.
func (h *Handle) Skip() error { return h.with(func(p *playback.Player) error { return p.Skip() }) }

// Close closes the current session. Before any session exists it disarms
// pending triggers instead, so a delayed page-load start never fires.
func (h *Handle) Close() error {
	if p := h.Player(); p != nil {
		return p.Close()
	}
	h.eval.Disarm()
	return playback.ErrNotActive
}

// Navigate ends everything because the host page is unloading.
func (h *Handle) Navigate() {
	h.teardown(func(p *playback.Player) { p.Navigate() })
}

// Destroy removes the widget: pending triggers, resolutions and timers are
// cancelled and any running session is closed. Safe to call repeatedly.
func (h *Handle) Destroy() {
	h.teardown(func(p *playback.Player) { p.Destroy() })
}

func (h *Handle) teardown(end func(p *playback.Player)) {
	h.mu.Lock()
	h.destroyed = true
	p := h.player
	h.mu.Unlock()

	h.eval.Disarm()
	h.cancel()
	if p != nil {
		end(p)
	}
}

func (h *Handle) with(fn func(p *playback.Player) error) error {
	p := h.Player()
	if p == nil {
		return playback.ErrNotActive
	}
	return fn(p)
}

func (h *Handle) onTrigger(k trigger.Kind) {
	h.launch(k)
}

// launch loads the tour and starts a session unless one is already live.
func (h *Handle) launch(k trigger.Kind) bool {
	h.mu.Lock()
	if h.destroyed || h.loadErr != nil || h.starting {
		h.mu.Unlock()
		return false
	}
	if h.player != nil && !h.player.State().Terminal() {
		h.mu.Unlock()
		slog.Debug("tour already running, trigger ignored",
			slog.String("tour_id", h.cfg.TourID), slog.String("trigger", string(k)))
		return false
	}
	h.starting = true
	h.mu.Unlock()

	def, err := h.opts.Registry.Load(h.ctx, h.cfg.TourID)
	if err != nil {
		slog.Warn("tour unavailable, widget disabled",
			slog.String("tour_id", h.cfg.TourID), slog.String("error", err.Error()))
		h.mu.Lock()
		h.loadErr = err
		h.starting = false
		h.mu.Unlock()
		h.eval.Disarm()
		return false
	}

	p := playback.NewPlayer(def, playback.Options{
		Emitter:             h.opts.Emitter,
		Resolver:            h.opts.Resolver,
		Renderer:            h.opts.Renderer,
		Callbacks:           h.opts.Callbacks,
		AllowSkip:           h.cfg.Features.AllowSkip,
		CloseOnClickOutside: h.cfg.Features.CloseOnClickOutside,
		Policy:              h.opts.Policy,
		ResolveTimeout:      h.opts.ResolveTimeout,
		IdleTimeout:         h.opts.IdleTimeout,
		URL:                 h.opts.Signals.URL,
		UserAgent:           h.opts.Signals.UserAgent,
		Now:                 h.opts.Now,
		Pool:                h.opts.Pool,
	})

	h.mu.Lock()
	h.starting = false
	if h.destroyed {
		h.mu.Unlock()
		return false
	}
	h.player = p
	h.mu.Unlock()

	slog.Debug("tour session starting",
		slog.String("tour_id", h.cfg.TourID),
		slog.String("session_id", p.SessionID()),
		slog.String("trigger", string(k)))
	return p.Start() == nil
}
