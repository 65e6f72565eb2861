package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrSinkPanic = errors.New("sink panicked")
)
