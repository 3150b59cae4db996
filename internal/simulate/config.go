package simulate

import (
	"time"

	"github.com/okian/crease/internal/domain/model"
)

// Config holds the settings of one simulated innings.
type Config struct {
	BaseURL    string        // Base URL of the service
	MatchID    string        // Match to score; a fresh id when empty
	TeamID     string        // Batting side
	Overs      int           // Innings length in overs
	Seed       uint64        // Seed of the delivery generator
	UndoRate   float64       // Chance of undoing an accepted ball
	RetryRate  float64       // Chance of resending an accepted ball
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Where the ball log is written; skipped when empty
	Verbose    bool          // Log every delivery
}

// Stats holds simulation statistics.
type Stats struct {
	BallsSent      int
	BallsAccepted  int
	Duplicates     int
	Undos          int
	PlayerPrompts  int
	PlayersChanged int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

// Result is the outcome of a run: the server's final score and the ball
// log as sent.
type Result struct {
	MatchID string
	Score   model.MatchScore
	Balls   []model.BallEvent
	Stats   Stats
}
