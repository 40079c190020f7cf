package dialogue

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the dialogue engine packages.
var (
	// ErrInvalidTransition is returned when an event is not legal in a state.
	ErrInvalidTransition = errors.New("dialogue: invalid transition")

	// ErrNoHandlerBound is returned when a reachable state has no handler.
	ErrNoHandlerBound = errors.New("dialogue: no handler bound")

	// ErrClassifierNoMatch is returned when no legal event matches an utterance.
	ErrClassifierNoMatch = errors.New("dialogue: classifier found no match")

	// ErrOracleCallFailed is returned when a reasoning or vision call fails.
	ErrOracleCallFailed = errors.New("dialogue: oracle call failed")

	// ErrMalformedOracleResponse is returned when an oracle result is unusable.
	ErrMalformedOracleResponse = errors.New("dialogue: malformed oracle response")
)

// TransitionError reports a rejected (state, event) pair.
type TransitionError struct {
	State State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("dialogue: invalid transition: event %s in state %s", e.Event, e.State)
}

// Unwrap returns ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
