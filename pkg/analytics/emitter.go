package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pitabwire/frame/workerpool"
)

// EmitterConfig holds delivery-related settings.
type EmitterConfig struct {
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Now            func() time.Time
}

func (c EmitterConfig) withDefaults() EmitterConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 200 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 2 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type sessionQueue struct {
	events   []Event
	last     time.Time
	draining bool
	released bool
}

// Emitter delivers events fire-and-forget. Events of one session are
// delivered one at a time in emission order; sessions drain independently.
type Emitter struct {
	sink Sink
	cfg  EmitterConfig
	pool workerpool.WorkerPool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	queues  map[string]*sessionQueue
	pending int
	idle    chan struct{}
	closed  bool
}

// NewEmitter creates an emitter. pool may be nil, in which case drains run
// on their own goroutines.
func NewEmitter(sink Sink, cfg EmitterConfig, pool workerpool.WorkerPool) *Emitter {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Emitter{
		sink:   sink,
		cfg:    cfg.withDefaults(),
		pool:   pool,
		ctx:    ctx,
		cancel: cancel,
		queues: make(map[string]*sessionQueue),
		idle:   idle,
	}
}

// Emit enqueues ev and returns immediately. Timestamps are clamped so they
// never go backwards within a session.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		slog.Debug("analytics event dropped after close",
			slog.String("session_id", ev.SessionID), slog.String("event_type", string(ev.Type)))
		return
	}

	q, ok := e.queues[ev.SessionID]
	if !ok {
		q = &sessionQueue{}
		e.queues[ev.SessionID] = q
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.cfg.Now()
	}
	if ev.Timestamp.Before(q.last) {
		ev.Timestamp = q.last
	}
	q.last = ev.Timestamp
	q.events = append(q.events, ev)

	if e.pending == 0 {
		e.idle = make(chan struct{})
	}
	e.pending++

	if !q.draining {
		q.draining = true
		e.schedule(ev.SessionID, q)
	}
}

// Release forgets a finished session once its queue is drained.
func (e *Emitter) Release(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, ok := e.queues[sessionID]
	if !ok {
		return
	}
	if !q.draining && len(q.events) == 0 {
		delete(e.queues, sessionID)
		return
	}
	q.released = true
}

func (e *Emitter) schedule(sessionID string, q *sessionQueue) {
	drain := func() { e.drain(sessionID, q) }
	if e.pool != nil {
		err := e.pool.Submit(e.ctx, drain)
		if err == nil {
			return
		}
		slog.Warn("analytics pool rejected drain, using goroutine",
			slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}
	go drain()
}

func (e *Emitter) drain(sessionID string, q *sessionQueue) {
	for {
		e.mu.Lock()
		if len(q.events) == 0 {
			q.draining = false
			if q.released {
				delete(e.queues, sessionID)
			}
			e.mu.Unlock()
			return
		}
		ev := q.events[0]
		q.events = q.events[1:]
		e.mu.Unlock()

		e.deliver(ev)

		e.mu.Lock()
		e.pending--
		if e.pending == 0 {
			close(e.idle)
		}
		e.mu.Unlock()
	}
}

func (e *Emitter) deliver(ev Event) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.BackoffInitial
	b.MaxInterval = e.cfg.BackoffMax

	_, err := backoff.Retry(e.ctx, func() (struct{}, error) {
		return struct{}{}, e.sink.LogEvent(e.ctx, ev)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(e.cfg.MaxAttempts)))
	if err != nil {
		slog.Warn("analytics event dropped",
			slog.String("session_id", ev.SessionID),
			slog.String("tour_id", ev.TourID),
			slog.String("event_type", string(ev.Type)),
			slog.String("error", err.Error()))
	}
}

// Flush blocks until every queued event has been delivered or dropped.
func (e *Emitter) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.pending == 0 {
		e.mu.Unlock()
		return nil
	}
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, waits for queued ones up to ctx and then
// aborts in-flight retries.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	err := e.Flush(ctx)
	e.cancel()
	return err
}
