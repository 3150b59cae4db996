package model

import (
	"time"

	"github.com/okian/crease/internal/domain/types"
)

// Command is one scoring operation waiting for its match's worker.
type Command struct {
	MatchID    string
	Op         types.Op
	Ball       BallEvent
	Slot       string
	Player     Player
	TeamID     string
	EnqueuedAt time.Time

	// Reply receives exactly one result. It must be buffered.
	Reply chan<- CommandResult
}

// CommandResult is the outcome handed back to the submitter.
type CommandResult struct {
	Score MatchScore
	// Applied is false when the command left the score untouched: an undo
	// with empty history or a duplicate ball.
	Applied   bool
	Duplicate bool
	Err       error
}
