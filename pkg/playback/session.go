package playback

import "time"

// DefaultMaxHistory is the maximum number of transition records before eviction.
const DefaultMaxHistory = 200

// Record is one entry of a session's transition history.
type Record struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Trigger   string    `json:"trigger"`
	StepIndex int       `json:"stepIndex"`
	Timestamp time.Time `json:"timestamp"`
}

// session is owned by a Player and only touched under its lock.
type session struct {
	id     string
	tourID string

	state      State
	index      int
	maxReached int

	startedAt        time.Time
	lastTransitionAt time.Time
	closeReason      CloseReason

	history    []Record
	maxHistory int
}

func newSession(id, tourID string, now time.Time) *session {
	return &session{
		id:               id,
		tourID:           tourID,
		state:            StateIdle,
		lastTransitionAt: now,
		maxHistory:       DefaultMaxHistory,
	}
}

// record appends to the history, evicting the oldest 10% at the cap.
func (s *session) record(to State, trigger string, now time.Time) {
	if len(s.history) >= s.maxHistory {
		evict := s.maxHistory / 10
		if evict < 1 {
			evict = 1
		}
		s.history = s.history[evict:]
	}
	s.history = append(s.history, Record{
		From:      s.state,
		To:        to,
		Trigger:   trigger,
		StepIndex: s.index,
		Timestamp: now,
	})
	s.state = to
	s.lastTransitionAt = now
}
