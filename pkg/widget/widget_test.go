package widget

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tourflow/tourflow/pkg/analytics"
	"github.com/tourflow/tourflow/pkg/embed"
	"github.com/tourflow/tourflow/pkg/playback"
	"github.com/tourflow/tourflow/pkg/resolver"
	"github.com/tourflow/tourflow/pkg/tour"
	"github.com/tourflow/tourflow/pkg/trigger"
)

func onboarding() *tour.Definition {
	return &tour.Definition{
		ID:        "onboarding",
		Published: true,
		Steps: []tour.Step{
			{ID: "welcome", Title: "Welcome", Order: 0},
			{ID: "projects", Title: "Projects", Target: "#projects", Order: 1},
			{ID: "done", Title: "Done", Order: 2},
		},
	}
}

func registry(loads *atomic.Int32) *tour.Registry {
	return tour.NewRegistry(tour.SourceFunc(func(_ context.Context, id string) (*tour.Definition, error) {
		if loads != nil {
			loads.Add(1)
		}
		if id != "onboarding" {
			return nil, nil
		}
		return onboarding(), nil
	}))
}

func baseConfig() embed.Config {
	cfg := embed.Default()
	cfg.TourID = "onboarding"
	cfg.Triggers.OnPageLoad.DelayMs = 0
	return cfg
}

type recorder struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (r *recorder) Emit(ev analytics.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestInitRejectsInvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.TourID = ""
	if _, err := Init(t.Context(), cfg, Options{Registry: registry(nil)}); !embed.IsValidationError(err) {
		t.Errorf("err = %v, want validation error", err)
	}
	if _, err := Init(t.Context(), baseConfig(), Options{}); !errors.Is(err, ErrNoRegistry) {
		t.Errorf("err = %v, want ErrNoRegistry", err)
	}
}

func TestUntargetedPageShowsNothing(t *testing.T) {
	cfg := baseConfig()
	cfg.Targeting.URLPatterns = []string{"/dashboard/*"}
	rend := &Recorder{}
	var loads atomic.Int32

	h, err := Init(t.Context(), cfg, Options{
		Registry: registry(&loads),
		Renderer: rend,
		Signals:  trigger.Signals{URL: "https://app.example.com/pricing"},
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	h.DOMReady()

	if h.Armed() || h.Player() != nil || rend.Renders() != 0 || loads.Load() != 0 {
		t.Errorf("armed=%v player=%v renders=%d loads=%d", h.Armed(), h.Player(), rend.Renders(), loads.Load())
	}
	if h.Start() {
		t.Error("manual start allowed on untargeted page")
	}
}

func TestPageLoadRunsTour(t *testing.T) {
	rec := &recorder{}
	rend := &Recorder{}
	var changes []int
	h, err := Init(t.Context(), baseConfig(), Options{
		Registry:  registry(nil),
		Emitter:   rec,
		Renderer:  rend,
		Resolver:  resolver.New(resolver.NewStaticDOM("#projects"), resolver.Config{}),
		Callbacks: playback.Callbacks{OnStepChange: func(i int) { changes = append(changes, i) }},
		Signals:   trigger.Signals{URL: "/app"},
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	h.DOMReady()

	p := h.Player()
	if p == nil || p.State() != playback.StateActive {
		t.Fatalf("player = %v", p)
	}
	for range 3 {
		if err := h.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if p.State() != playback.StateCompleted {
		t.Errorf("state = %s", p.State())
	}
	if rec.count() != 4 {
		t.Errorf("events = %d, want 4", rec.count())
	}
	if _, visible := rend.Current(); visible {
		t.Error("widget still visible after completion")
	}
	if len(changes) != 3 {
		t.Errorf("changes = %v", changes)
	}
}

func TestSimultaneousTriggersStartOneSession(t *testing.T) {
	cfg := baseConfig()
	cfg.Triggers.OnElementClick = embed.ElementClickTrigger{Enabled: true, Selector: "#start"}
	var loads atomic.Int32

	h, err := Init(t.Context(), cfg, Options{Registry: registry(&loads), Signals: trigger.Signals{URL: "/"}})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); h.DOMReady() }()
	go func() { defer wg.Done(); h.HandleClick(trigger.Path([]string{"#start"})) }()
	go func() { defer wg.Done(); h.Start() }()
	wg.Wait()

	if loads.Load() != 1 {
		t.Errorf("tour loaded %d times, want 1", loads.Load())
	}
	first := h.Player()
	if first == nil {
		t.Fatal("no session")
	}
	if h.Start() || h.Player() != first {
		t.Error("second session started while first is running")
	}
}

func TestRestartAfterCompletion(t *testing.T) {
	h, _ := Init(t.Context(), baseConfig(), Options{Registry: registry(nil), Signals: trigger.Signals{URL: "/"}})
	h.DOMReady()
	first := h.Player()
	_ = h.Close()

	if !h.Start() {
		t.Fatal("manual restart refused")
	}
	if h.Player() == first || h.Player().State() != playback.StateActive {
		t.Error("restart did not create a fresh session")
	}
}

func TestMissingTourDisablesWidget(t *testing.T) {
	cfg := baseConfig()
	cfg.TourID = "gone"
	rend := &Recorder{}
	h, err := Init(t.Context(), cfg, Options{Registry: registry(nil), Renderer: rend, Signals: trigger.Signals{URL: "/"}})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	h.DOMReady()

	if !errors.Is(h.Err(), tour.ErrNotFound) {
		t.Errorf("Err = %v, want ErrNotFound", h.Err())
	}
	if h.Player() != nil || rend.Renders() != 0 {
		t.Error("widget appeared for a missing tour")
	}
	if h.Start() {
		t.Error("start succeeded after load failure")
	}
	if err := h.Next(); !errors.Is(err, playback.ErrNotActive) {
		t.Errorf("Next = %v", err)
	}
}

func TestDestroyCancelsDelayedTrigger(t *testing.T) {
	cfg := baseConfig()
	cfg.Triggers.OnPageLoad.DelayMs = 20
	h, _ := Init(t.Context(), cfg, Options{Registry: registry(nil), Signals: trigger.Signals{URL: "/"}})
	h.DOMReady()
	h.Destroy()
	h.Destroy()

	time.Sleep(50 * time.Millisecond)
	if h.Player() != nil {
		t.Error("tour appeared after destroy")
	}
}

func TestDestroyClosesSession(t *testing.T) {
	h, _ := Init(t.Context(), baseConfig(), Options{Registry: registry(nil), Signals: trigger.Signals{URL: "/"}})
	h.DOMReady()
	h.Destroy()

	s := h.Player().Snapshot()
	if s.State != playback.StateClosed || s.CloseReason != playback.CloseDestroyed {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestClickOutside(t *testing.T) {
	h, _ := Init(t.Context(), baseConfig(), Options{Registry: registry(nil), Signals: trigger.Signals{URL: "/"}})
	h.DOMReady()
	if !h.ClickOutside() {
		t.Fatal("click outside did not close")
	}
	if h.Player().State() != playback.StateClosed {
		t.Errorf("state = %s", h.Player().State())
	}
}

func TestStartReportsFailedLoad(t *testing.T) {
	for name, id := range map[string]string{"missing": "gone", "found": "onboarding"} {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.TourID = id
			cfg.Triggers = nil
			h, err := Init(t.Context(), cfg, Options{Registry: registry(nil), Signals: trigger.Signals{URL: "/"}})
			if err != nil {
				t.Fatalf("Init: %v", err)
			}
			want := id == "onboarding"
			if got := h.Start(); got != want {
				t.Errorf("Start = %v, want %v (Err = %v)", got, want, h.Err())
			}
		})
	}
}

func TestCloseBeforeSessionCancelsDelayedTrigger(t *testing.T) {
	cfg := baseConfig()
	cfg.Triggers.OnPageLoad.DelayMs = 20
	h, _ := Init(t.Context(), cfg, Options{Registry: registry(nil), Signals: trigger.Signals{URL: "/"}})
	h.DOMReady()

	if err := h.Close(); !errors.Is(err, playback.ErrNotActive) {
		t.Errorf("Close = %v, want ErrNotActive", err)
	}
	time.Sleep(50 * time.Millisecond)
	if h.Player() != nil {
		t.Error("delayed trigger started a tour after close")
	}
	if !h.Start() {
		t.Error("explicit start refused after close")
	}
}

func TestTeardownInsideStepChangeLeavesWidgetCleared(t *testing.T) {
	teardowns := map[string]func(h *Handle){
		"close":    func(h *Handle) { _ = h.Close() },
		"navigate": func(h *Handle) { h.Navigate() },
		"destroy":  func(h *Handle) { h.Destroy() },
	}
	for name, end := range teardowns {
		t.Run(name, func(t *testing.T) {
			rend := &Recorder{}
			var h *Handle
			h, _ = Init(t.Context(), baseConfig(), Options{
				Registry:  registry(nil),
				Renderer:  rend,
				Resolver:  resolver.New(resolver.AlwaysPresent(), resolver.Config{}),
				Callbacks: playback.Callbacks{OnStepChange: func(int) { end(h) }},
				Signals:   trigger.Signals{URL: "/"},
			})
			h.DOMReady()

			if h.Player() == nil || h.Player().State() != playback.StateClosed {
				t.Fatalf("session not closed: %v", h.Player())
			}
			if _, visible := rend.Current(); visible {
				t.Error("widget visible after the session ended")
			}
		})
	}
}

func TestTeardownDuringResolutionLeavesWidgetCleared(t *testing.T) {
	teardowns := map[string]func(h *Handle){
		"close":    func(h *Handle) { _ = h.Close() },
		"navigate": func(h *Handle) { h.Navigate() },
		"destroy":  func(h *Handle) { h.Destroy() },
	}
	for name, end := range teardowns {
		t.Run(name, func(t *testing.T) {
			dom := resolver.NewStaticDOM()
			rend := &Recorder{}
			h, _ := Init(t.Context(), baseConfig(), Options{
				Registry:       registry(nil),
				Renderer:       rend,
				Resolver:       resolver.New(dom, resolver.Config{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}),
				ResolveTimeout: time.Second,
				Signals:        trigger.Signals{URL: "/"},
			})
			h.DOMReady()
			if err := h.Next(); err != nil {
				t.Fatalf("Next: %v", err)
			}

			end(h)
			dom.Add("#projects", resolver.Rect{Width: 100, Height: 20})
			time.Sleep(30 * time.Millisecond)

			if _, visible := rend.Current(); visible {
				t.Error("widget visible after the session ended")
			}
			if rend.Renders() != 1 {
				t.Errorf("renders = %d, want only the first step", rend.Renders())
			}
		})
	}
}
