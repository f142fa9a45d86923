package analytics

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BreakerState is the position of a Breaker.
type BreakerState string

// Breaker states.
const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerConfig holds the parameters for a circuit breaker.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	// HalfOpenProbes is how many trial deliveries may be in flight while
	// half-open; that many must succeed before the breaker closes.
	HalfOpenProbes int
	Now            func() time.Time
}

// Breaker guards the analytics sink. Only failures that say the endpoint is
// unhealthy count toward opening it; see countsAsFailure.
type Breaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	inFlight  int
	successes int
	openedAt  time.Time
	cfg       BreakerConfig
}

// NewBreaker creates a breaker with the given config.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{state: BreakerClosed, cfg: cfg}
}

// Allow admits a delivery or returns ErrCircuitOpen. Every admitted delivery
// must be reported back through Done.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		b.inFlight = 0
		b.successes = 0
	}

	if b.inFlight >= b.cfg.HalfOpenProbes {
		return ErrCircuitOpen
	}
	b.inFlight++
	return nil
}

// Done reports the outcome of a delivery admitted by Allow.
func (b *Breaker) Done(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	halfOpen := b.state == BreakerHalfOpen
	if halfOpen && b.inFlight > 0 {
		b.inFlight--
	}

	switch {
	case errors.Is(err, context.Canceled):
		// The caller gave up; says nothing about the endpoint.
	case countsAsFailure(err):
		b.failures++
		if halfOpen || b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	default:
		b.failures = 0
		if !halfOpen {
			return
		}
		b.successes++
		if b.successes >= b.cfg.HalfOpenProbes {
			b.state = BreakerClosed
			b.successes = 0
		}
	}
}

func (b *Breaker) trip() {
	b.state = BreakerOpen
	b.openedAt = b.cfg.Now()
	b.inFlight = 0
	b.successes = 0
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// countsAsFailure reports whether err means the endpoint is unhealthy. A 4xx
// reply other than 429 proves the endpoint is up and rejecting this event.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
