package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pitabwire/frame/queue"
	"github.com/pitabwire/util"
	"github.com/rs/xid"
)

// Envelope wraps an event published to the event bus.
type Envelope struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	SessionID string    `json:"session_id"`
	Published time.Time `json:"published"`
	Event     Event     `json:"event"`
}

// QueueSink publishes events to a frame queue so a relay can deliver them
// out of process.
type QueueSink struct {
	queueMgr queue.Manager
	source   string
	queueRef string
}

// NewQueueSink creates a sink that publishes to the given queue reference.
func NewQueueSink(queueMgr queue.Manager, source, queueRef string) *QueueSink {
	return &QueueSink{queueMgr: queueMgr, source: source, queueRef: queueRef}
}

func (q *QueueSink) LogEvent(ctx context.Context, ev Event) error {
	env := Envelope{
		ID:        xid.New().String(),
		Source:    q.source,
		SessionID: ev.SessionID,
		Published: time.Now().UTC(),
		Event:     ev,
	}
	return q.queueMgr.Publish(ctx, q.queueRef, env)
}

// Subscriber relays queued envelopes into an Emitter. It implements frame's
// queue subscribe worker.
type Subscriber struct {
	Emitter *Emitter
}

// Handle is called by frame's pub/sub for each envelope.
func (s *Subscriber) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("analytics subscriber: unmarshal envelope")
		return err
	}
	if env.Event.SessionID == "" || env.Event.Type == "" {
		slog.WarnContext(ctx, "analytics subscriber: dropping incomplete event",
			slog.String("envelope_id", env.ID))
		return nil
	}

	s.Emitter.Emit(env.Event)
	return nil
}
