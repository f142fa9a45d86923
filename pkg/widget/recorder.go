package widget

import (
	"sync"

	"github.com/tourflow/tourflow/pkg/playback"
)

// Recorder is a Renderer that keeps the last rendered view. It backs
// headless previews.
type Recorder struct {
	mu      sync.Mutex
	view    playback.View
	visible bool
	renders int
}

func (r *Recorder) Render(v playback.View) {
	r.mu.Lock()
	r.view = v
	r.visible = true
	r.renders++
	r.mu.Unlock()
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	r.visible = false
	r.mu.Unlock()
}

// Current returns the last view and whether the widget is showing.
func (r *Recorder) Current() (playback.View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view, r.visible
}

// Renders counts Render calls.
func (r *Recorder) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}
