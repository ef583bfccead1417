package relay

import "errors"

var (
	// ErrSameLanguage is returned when a session is configured with
	// identical languages for both parties.
	ErrSameLanguage = errors.New("relay: session languages must differ")

	// ErrSessionActive is returned by StartSession while one is running.
	ErrSessionActive = errors.New("relay: session already active")

	// ErrNoSession is returned by turn operations without an active session.
	ErrNoSession = errors.New("relay: no active session")

	// ErrNotIdle is returned by StartTurn while an utterance is in flight.
	// At most one utterance may be in flight at a time.
	ErrNotIdle = errors.New("relay: an utterance is already in flight")

	// ErrLimitExceeded is returned when the demo usage limiter denies a
	// new session.
	ErrLimitExceeded = errors.New("relay: session limit reached")
)
