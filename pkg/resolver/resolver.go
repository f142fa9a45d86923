// Package resolver locates the host-page element a tour step is anchored to.
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultTimeout bounds how long Resolve waits for a missing element.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when the target element never appeared.
var ErrTimeout = errors.New("target resolution timed out")

var errAbsent = errors.New("target not present")

// Rect is the element's bounding box in viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Anchor is a resolved step target.
type Anchor struct {
	Selector string `json:"selector"`
	Rect     Rect   `json:"rect"`
	// Floating is set for steps without a selector; the widget renders at
	// its configured position instead of next to an element.
	Floating bool `json:"floating"`
}

// DOM is the read-only view of the host page. Query must be safe to call
// from the polling goroutine.
type DOM interface {
	Query(selector string) (Anchor, bool)
}

// Config tunes the polling schedule.
type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.InitialInterval <= 0 {
		c.InitialInterval = 50 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = time.Second
	}
	return c
}

// Resolver resolves selectors against a DOM.
type Resolver struct {
	dom DOM
	cfg Config
}

// New creates a Resolver.
func New(dom DOM, cfg Config) *Resolver {
	return &Resolver{dom: dom, cfg: cfg.withDefaults()}
}

// Lookup performs a single synchronous query. An empty selector always
// resolves to a floating anchor.
func (r *Resolver) Lookup(selector string) (Anchor, bool) {
	if selector == "" {
		return Anchor{Floating: true}, true
	}
	a, ok := r.dom.Query(selector)
	if ok {
		a.Selector = selector
	}
	return a, ok
}

// Resolve polls for selector with exponential backoff until it is found,
// timeout elapses (ErrTimeout) or ctx is cancelled (ctx.Err()).
func (r *Resolver) Resolve(ctx context.Context, selector string, timeout time.Duration) (Anchor, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if a, ok := r.Lookup(selector); ok {
		return a, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.RandomizationFactor = 0.2

	a, err := backoff.Retry(pollCtx, func() (Anchor, error) {
		if a, ok := r.Lookup(selector); ok {
			return a, nil
		}
		return Anchor{}, errAbsent
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(timeout))
	if err == nil {
		return a, nil
	}
	if ctx.Err() != nil {
		return Anchor{}, ctx.Err()
	}
	return Anchor{}, ErrTimeout
}
