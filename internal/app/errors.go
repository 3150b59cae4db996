package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("scoring service not started")
	ErrInvalidTeam  = errors.New("invalid batting team")
	ErrInvalidMatch = errors.New("invalid match id")
)
