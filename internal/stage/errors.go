package stage

import "errors"

// Stage construction and lifecycle errors.
var (
	// ErrInvalidWorkers is returned by New when the worker count is outside [MinWorkers, MaxWorkers].
	ErrInvalidWorkers = errors.New("invalid number of workers: must be between 1 and 199")

	// ErrNilQueue is returned by New when the input or output queue is nil.
	ErrNilQueue = errors.New("stage queue must not be nil")

	// ErrNilTask is returned by New when no task is given.
	ErrNilTask = errors.New("stage task must not be nil")

	// ErrAlreadyStarted is returned by Start when the stage has been started before.
	ErrAlreadyStarted = errors.New("stage already started")

	// ErrDrainTimeout is reported by Err when the workers did not finish within
	// the drain timeout. The marker is forwarded regardless.
	ErrDrainTimeout = errors.New("timed out waiting for workers to drain")

	// ErrTaskPanic wraps a panic raised by a TaskFunc. The item is dropped.
	ErrTaskPanic = errors.New("task panicked")

	// ErrMarkerFromTask is reported when a TaskFunc returns the end-of-stream
	// marker instead of a data item. The item is dropped.
	ErrMarkerFromTask = errors.New("task returned the end-of-stream marker")
)
