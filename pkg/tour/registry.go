package tour

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Source fetches published tour definitions from the backing store.
// Implementations return (nil, nil) or ErrNotFound when the id is unknown.
type Source interface {
	GetPublishedTour(ctx context.Context, id string) (*Definition, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, id string) (*Definition, error)

func (f SourceFunc) GetPublishedTour(ctx context.Context, id string) (*Definition, error) {
	return f(ctx, id)
}

// Registry loads definitions once per page session and serves validated,
// read-only copies to the playback engine. Safe for concurrent use.
type Registry struct {
	src Source

	mu    sync.RWMutex
	cache map[string]*Definition
}

// NewRegistry creates a registry backed by src.
func NewRegistry(src Source) *Registry {
	return &Registry{
		src:   src,
		cache: make(map[string]*Definition),
	}
}

// Load returns the validated definition for id. Callers must not mutate it.
func (r *Registry) Load(ctx context.Context, id string) (*Definition, error) {
	r.mu.RLock()
	d, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	raw, err := r.src.GetPublishedTour(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("load tour %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load tour %q: %w", id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("load tour %q: %w", id, ErrNotFound)
	}

	d = clone(raw)
	if err := Validate(d); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if cached, ok := r.cache[id]; ok {
		d = cached
	} else {
		r.cache[id] = d
	}
	r.mu.Unlock()

	return d, nil
}

// Forget drops a cached definition so the next Load refetches it.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

func clone(d *Definition) *Definition {
	cp := *d
	cp.Steps = make([]Step, len(d.Steps))
	copy(cp.Steps, d.Steps)
	return &cp
}
