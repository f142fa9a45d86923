package playback

import "sync"

// painter serialises Renderer calls in the order they were scheduled.
// Calls made while another goroutine, or a Renderer re-entering the
// player, is painting are queued and run by the current painter.
type painter struct {
	mu       sync.Mutex
	queue    []func()
	painting bool
}

func (pt *painter) do(f func()) {
	pt.mu.Lock()
	pt.queue = append(pt.queue, f)
	if pt.painting {
		pt.mu.Unlock()
		return
	}
	pt.painting = true
	for len(pt.queue) > 0 {
		next := pt.queue[0]
		pt.queue = pt.queue[1:]
		pt.mu.Unlock()
		next()
		pt.mu.Lock()
	}
	pt.painting = false
	pt.mu.Unlock()
}

// renderLocked schedules a render of the current step. It is dropped if a
// newer render or clear was scheduled or the session ended meanwhile.
func (p *Player) renderLocked() func() {
	if p.opts.Renderer == nil {
		return nil
	}
	p.viewGen++
	gen := p.viewGen
	v := p.viewLocked()
	return func() {
		p.paint.do(func() {
			p.mu.Lock()
			live := gen == p.viewGen && !p.sess.state.Terminal()
			p.mu.Unlock()
			if live {
				p.opts.Renderer.Render(v)
			}
		})
	}
}

// clearLocked schedules removal of the widget and invalidates pending renders.
func (p *Player) clearLocked() func() {
	if p.opts.Renderer == nil {
		return nil
	}
	p.viewGen++
	return func() { p.paint.do(p.opts.Renderer.Clear) }
}
