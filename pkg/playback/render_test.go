package playback

import (
	"testing"
	"time"

	"github.com/tourflow/tourflow/pkg/resolver"
)

func TestTeardownFromStepChangeKeepsWidgetCleared(t *testing.T) {
	teardowns := map[string]func(p *Player){
		"close":    func(p *Player) { _ = p.Close() },
		"navigate": func(p *Player) { p.Navigate() },
		"destroy":  func(p *Player) { p.Destroy() },
	}
	for name, end := range teardowns {
		t.Run(name, func(t *testing.T) {
			scr := &screen{}
			var p *Player
			p = NewPlayer(makeTour("", "#b"), Options{
				Resolver:  resolver.New(resolver.AlwaysPresent(), fastResolve),
				Renderer:  scr,
				Callbacks: Callbacks{OnStepChange: func(int) { end(p) }},
			})
			if err := p.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
			if p.State() != StateClosed {
				t.Fatalf("state = %s, want CLOSED", p.State())
			}
			if visible, _ := scr.showing(); visible {
				t.Error("widget visible after the session closed")
			}
		})
	}
}

func TestNextFromStepChangeShowsLatestStep(t *testing.T) {
	scr := &screen{}
	advanced := false
	var p *Player
	p = NewPlayer(makeTour("", "#b", "#c"), Options{
		Resolver: resolver.New(resolver.AlwaysPresent(), fastResolve),
		Renderer: scr,
		Callbacks: Callbacks{OnStepChange: func(int) {
			if !advanced {
				advanced = true
				_ = p.Next()
			}
		}},
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := p.Snapshot()
	visible, index := scr.showing()
	if !visible || index != snap.StepIndex || snap.StepIndex != 1 {
		t.Errorf("widget shows step %d (visible %v), session at %d", index, visible, snap.StepIndex)
	}
}

type closingScreen struct {
	screen
	p *Player
}

func (c *closingScreen) Render(v View) {
	c.screen.Render(v)
	_ = c.p.Close()
}

func TestRendererClosingSessionDoesNotDeadlock(t *testing.T) {
	scr := &closingScreen{}
	p := NewPlayer(makeTour("", "#b"), Options{
		Resolver: resolver.New(resolver.AlwaysPresent(), fastResolve),
		Renderer: scr,
	})
	scr.p = p

	done := make(chan struct{})
	go func() {
		_ = p.Start()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start blocked")
	}

	if visible, _ := scr.showing(); visible {
		t.Error("widget visible after the renderer closed the session")
	}
	if scr.clears != 1 {
		t.Errorf("clears = %d, want 1", scr.clears)
	}
}

func TestLateResolutionAfterCloseStaysCleared(t *testing.T) {
	dom := resolver.NewStaticDOM()
	scr := &screen{}
	p := NewPlayer(makeTour("#late", "#b"), Options{
		Resolver:       resolver.New(dom, fastResolve),
		Renderer:       scr,
		ResolveTimeout: time.Second,
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = p.Close()
	dom.Add("#late", resolver.Rect{Width: 10, Height: 10})

	time.Sleep(30 * time.Millisecond)
	if visible, _ := scr.showing(); visible || scr.count() != 0 {
		t.Errorf("late resolution painted the widget: visible %v renders %d", visible, scr.count())
	}
}

func TestPendingResolutionDropsOlderRender(t *testing.T) {
	dom := resolver.NewStaticDOM()
	scr := &screen{}
	p := NewPlayer(makeTour("", "#b"), Options{
		Resolver:       resolver.New(dom, fastResolve),
		Renderer:       scr,
		ResolveTimeout: time.Second,
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	dom.Add("#b", resolver.Rect{Width: 10, Height: 10})
	waitFor(t, "second step render", func() bool {
		_, index := scr.showing()
		return index == 1
	})
	_ = p.Close()
	if visible, _ := scr.showing(); visible {
		t.Error("widget visible after close")
	}
}
