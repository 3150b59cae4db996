package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrVersionConflict = errors.New("score version conflict")
	ErrInvalidMatchID  = errors.New("invalid match id")
	ErrUnknownBackend  = errors.New("unknown store backend")
	ErrCorruptScore    = errors.New("corrupt stored score")
)
