package core

import "errors"

// Sentinel errors returned by the queue engine's public operations.
// Declared here, rather than in internal/queue, so internal/store can
// return them directly without importing its own consumer.
var (
	// ErrBadPayload is returned when an enqueue payload is missing a
	// required field or fails to parse.
	ErrBadPayload = errors.New("bad payload")

	// ErrDuplicate is returned when a job with the given id already exists.
	ErrDuplicate = errors.New("duplicate job id")

	// ErrBadState is returned when a caller asks for an unknown job state.
	ErrBadState = errors.New("unknown job state")

	// ErrNotDead is returned when a dead-letter operation targets a job
	// that is not currently DEAD.
	ErrNotDead = errors.New("job is not dead")

	// ErrNotFound is returned when a job id has no matching row.
	ErrNotFound = errors.New("job not found")
)
