package routine

import "errors"

// Domain errors for the routine package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, routine.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a routine ID does not exist.
	ErrNotFound = errors.New("routine: not found")

	// ErrExists is returned when creating a routine with an ID that already exists.
	ErrExists = errors.New("routine: already exists")

	// ErrAlreadyRunning is returned when a second execution is requested
	// for a routine that is already executing. Recoverable; the caller
	// decides whether to surface or ignore it.
	ErrAlreadyRunning = errors.New("routine: already running")

	// ErrInvalidRoutine is returned when routine validation fails.
	ErrInvalidRoutine = errors.New("routine: invalid")

	// ErrInvalidAction is returned when a routine action is invalid.
	ErrInvalidAction = errors.New("routine: invalid action")

	// ErrInvalidTrigger is returned when a trigger descriptor is invalid.
	ErrInvalidTrigger = errors.New("routine: invalid trigger")

	// ErrInvalidName is returned when a routine name is empty or too long.
	ErrInvalidName = errors.New("routine: invalid name")

	// ErrExecutionNotFound is returned when an execution ID does not exist.
	ErrExecutionNotFound = errors.New("routine: execution not found")
)
