package matchmaking

import (
	"errors"
	"fmt"
)

var ErrAlreadyQueued = errors.New("already queued")
var ErrUnauthenticated = errors.New("unauthenticated")
var ErrNoLobby = errors.New("no lobby recorded for session")
var ErrInvalidTransition = errors.New("invalid transition")
var ErrPlayerMismatch = errors.New("player does not own the session")
var ErrLeaveRejected = errors.New("queue service refused leave")
var ErrReadyRejected = errors.New("lobby service refused ready")
var ErrReadyCheckExpired = errors.New("ready check expired")
var ErrInvalidPreferences = errors.New("invalid queue preferences")
var ErrClosed = errors.New("coordinator closed")

// ValidationError reports bad input caught before any port call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidPreferences }

func transitionError(op string, from Status) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, from)
}
