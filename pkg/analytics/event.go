// Package analytics turns playback transitions into session-scoped events
// and delivers them, best effort, to a remote sink.
package analytics

import (
	"context"
	"time"
)

// EventType identifies a tour lifecycle event.
type EventType string

const (
	TourStarted   EventType = "tour_started"
	StepCompleted EventType = "step_completed"
	TourCompleted EventType = "tour_completed"
	TourSkipped   EventType = "tour_skipped"
)

// Event is one analytics record, shaped like the logEvent mutation arguments.
type Event struct {
	TourID    string         `json:"tourId"`
	StepID    string         `json:"stepId,omitempty"`
	SessionID string         `json:"sessionId"`
	Type      EventType      `json:"eventType"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	URL       string         `json:"url,omitempty"`
}

// Sink accepts discrete events. Errors wrapped with backoff.Permanent are
// not retried.
type Sink interface {
	LogEvent(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) LogEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }
