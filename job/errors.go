package job

import "errors"

var (
	// ErrNotFound is returned by store operations referencing an unknown job ID.
	ErrNotFound = errors.New("jobq: job not found")

	// ErrAlreadyExists is returned when saving a job whose ID is already stored.
	ErrAlreadyExists = errors.New("jobq: job already exists")

	// ErrUnknownType is returned when no handler is registered for a job's
	// type. Workers treat it as a handler failure, so the job follows the
	// normal retry path rather than crashing the loop.
	ErrUnknownType = errors.New("jobq: no handler registered for job type")

	// ErrInvalidTransition is returned when an operation would violate the
	// job state machine, e.g. cancelling a job that is no longer pending.
	ErrInvalidTransition = errors.New("jobq: invalid state transition")
)
