package agent

import "errors"

var (
	// ErrStorageUnavailable is returned by the Observer when no usable
	// snapshot could be read.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrLoopFailure wraps the only error a loop run can surface.
	ErrLoopFailure = errors.New("agent loop failed")

	// ErrInvalidDecision is returned when oracle output does not decode
	// into a Decision.
	ErrInvalidDecision = errors.New("invalid decision")
)
