package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState means the match is not in a state where the ball can be
	// scored. The caller resolves it (usually by picking a player) and retries
	// the same ball.
	ErrInvalidState = errors.New("invalid scoring state")
	// ErrInvalidSlot is returned for an unknown player slot.
	ErrInvalidSlot = errors.New("invalid player slot")
	// ErrInvalidPlayer is returned when a player cannot take the slot.
	ErrInvalidPlayer = errors.New("invalid player")
)

// PlayerRequiredError reports the slot that must be filled before the next
// ball. It matches ErrInvalidState.
type PlayerRequiredError struct {
	Slot Slot
}

func (e *PlayerRequiredError) Error() string {
	return fmt.Sprintf("%s: %s not assigned", ErrInvalidState, e.Slot)
}

func (e *PlayerRequiredError) Unwrap() error {
	return ErrInvalidState
}
