package queue

import "errors"

// Sentinel kinds for submission errors.
var (
	ErrStopped      = errors.New("scoring queue stopped")
	ErrBackpressure = errors.New("scoring queue full")
)
