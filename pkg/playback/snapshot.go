package playback

import (
	"time"

	"github.com/tourflow/tourflow/pkg/resolver"
)

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	SessionID        string           `json:"sessionId"`
	TourID           string           `json:"tourId"`
	State            State            `json:"state"`
	StepIndex        int              `json:"currentStepIndex"`
	StepID           string           `json:"stepId,omitempty"`
	Total            int              `json:"totalSteps"`
	Resolving        bool             `json:"resolving"`
	Anchor           *resolver.Anchor `json:"anchor,omitempty"`
	StartedAt        time.Time        `json:"startedAt,omitzero"`
	LastTransitionAt time.Time        `json:"lastTransitionAt"`
	CloseReason      CloseReason      `json:"closeReason,omitempty"`
	History          []Record         `json:"history"`
}

// Snapshot returns the current session state.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		SessionID:        p.sess.id,
		TourID:           p.sess.tourID,
		State:            p.sess.state,
		StepIndex:        p.sess.index,
		Total:            p.def.Len(),
		Resolving:        p.resolving,
		StartedAt:        p.sess.startedAt,
		LastTransitionAt: p.sess.lastTransitionAt,
		CloseReason:      p.sess.closeReason,
		History:          make([]Record, len(p.sess.history)),
	}
	copy(s.History, p.sess.history)

	if step, ok := p.def.StepAt(p.sess.index); ok {
		s.StepID = step.ID
	}
	if (p.sess.state == StateActive || p.sess.state == StatePaused) && !p.resolving {
		a := p.anchor
		s.Anchor = &a
	}
	return s
}
