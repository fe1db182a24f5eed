package worker

import "errors"

// Sentinel kinds for task failures raised by the worker itself.
var (
	ErrTaskPanic = errors.New("task panicked")
	ErrEmptyTask = errors.New("task has nothing to run")
)
