// Package playback drives one run of a tour through its lifecycle.
package playback

// State is a playback session state.
type State string

const (
	StateIdle      State = "IDLE"
	StateArmed     State = "ARMED"
	StateActive    State = "ACTIVE"
	StatePaused    State = "PAUSED"
	StateCompleted State = "COMPLETED"
	StateSkipped   State = "SKIPPED"
	StateClosed    State = "CLOSED"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateSkipped || s == StateClosed
}

var transitions = map[State][]State{
	StateIdle:   {StateArmed, StateClosed},
	StateArmed:  {StateActive, StateClosed},
	StateActive: {StateActive, StatePaused, StateCompleted, StateSkipped, StateClosed},
	StatePaused: {StateActive, StateClosed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CloseReason records why a session ended in CLOSED.
type CloseReason string

const (
	CloseExplicit          CloseReason = "explicit"
	CloseClickOutside      CloseReason = "click_outside"
	CloseNavigation        CloseReason = "navigation"
	CloseIdleTimeout       CloseReason = "idle_timeout"
	CloseResolutionTimeout CloseReason = "resolution_timeout"
	CloseDestroyed         CloseReason = "destroyed"
)

// TimeoutPolicy decides what happens when a step's target never appears.
type TimeoutPolicy int

const (
	// PolicySkipStep moves on to the next step without recording a
	// completion. On the last step the session closes.
	PolicySkipStep TimeoutPolicy = iota
	// PolicyEndSession closes the session.
	PolicyEndSession
)

func (p TimeoutPolicy) String() string {
	if p == PolicyEndSession {
		return "end_session"
	}
	return "skip_step"
}
