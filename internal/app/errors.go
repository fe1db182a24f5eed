package service

import "errors"

// Sentinel errors returned by the service.
var (
	// ErrNotStarted is returned by operations that need the worker pool
	// before Start has been called.
	ErrNotStarted = errors.New("service not started")

	// ErrRunInProgress is returned when a metrics run or season reset is
	// requested while another one is still going.
	ErrRunInProgress = errors.New("metrics run already in progress")

	// ErrUnknownKind is returned for an entity kind the service does not rank.
	ErrUnknownKind = errors.New("unknown entity kind")
)
