package playback

import "errors"

var (
	// ErrTerminalSession is returned for any call on a finished session.
	// The call has no effect.
	ErrTerminalSession = errors.New("session already ended")
	ErrAlreadyStarted  = errors.New("session already started")
	ErrNotActive       = errors.New("session not active")
	ErrNotPaused       = errors.New("session not paused")
	ErrFirstStep       = errors.New("already at first step")
	ErrSkipDisabled    = errors.New("skipping is disabled for this tour")
)
