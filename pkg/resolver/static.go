package resolver

import "sync"

// StaticDOM is an in-memory DOM keyed by selector. Elements can be added
// after construction to model late-rendered targets.
type StaticDOM struct {
	mu       sync.RWMutex
	elements map[string]Rect
	all      bool
}

// NewStaticDOM creates a DOM containing the given selectors.
func NewStaticDOM(selectors ...string) *StaticDOM {
	d := &StaticDOM{elements: make(map[string]Rect)}
	for _, s := range selectors {
		d.elements[s] = Rect{}
	}
	return d
}

// AlwaysPresent returns a DOM where every selector matches. Used by previews
// that have no host page to inspect.
func AlwaysPresent() *StaticDOM {
	return &StaticDOM{elements: make(map[string]Rect), all: true}
}

// Add makes selector resolvable.
func (d *StaticDOM) Add(selector string, rect Rect) {
	d.mu.Lock()
	d.elements[selector] = rect
	d.mu.Unlock()
}

// Remove detaches selector.
func (d *StaticDOM) Remove(selector string) {
	d.mu.Lock()
	delete(d.elements, selector)
	d.mu.Unlock()
}

func (d *StaticDOM) Query(selector string) (Anchor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rect, ok := d.elements[selector]
	if !ok && !d.all {
		return Anchor{}, false
	}
	return Anchor{Selector: selector, Rect: rect}, true
}
