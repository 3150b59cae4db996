// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidBall marks a ball event rejected at the boundary.
var ErrInvalidBall = errors.New("invalid ball event")

// DismissalType names how a batter got out.
type DismissalType string

// Supported dismissal types.
const (
	DismissalNone      DismissalType = ""
	DismissalBowled    DismissalType = "bowled"
	DismissalCaught    DismissalType = "caught"
	DismissalLBW       DismissalType = "lbw"
	DismissalRunOut    DismissalType = "run_out"
	DismissalStumped   DismissalType = "stumped"
	DismissalHitWicket DismissalType = "hit_wicket"
)

// ParseDismissalType normalises the spellings clients send ("run out",
// "runOut", "RUN_OUT") to a DismissalType.
func ParseDismissalType(s string) (DismissalType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	switch key {
	case "":
		return DismissalNone, nil
	case "bowled":
		return DismissalBowled, nil
	case "caught":
		return DismissalCaught, nil
	case "lbw":
		return DismissalLBW, nil
	case "runout":
		return DismissalRunOut, nil
	case "stumped":
		return DismissalStumped, nil
	case "hitwicket":
		return DismissalHitWicket, nil
	}
	return DismissalNone, fmt.Errorf("%w: unknown dismissal type %q", ErrInvalidBall, s)
}

// UnmarshalJSON accepts any spelling understood by ParseDismissalType.
func (d *DismissalType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: dismissal type: %w", ErrInvalidBall, err)
	}
	parsed, err := ParseDismissalType(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// BallEvent is one delivery as reported by the scorer.
//
// RunsOffBat carries the runs scored on the delivery: credited to the striker
// on a clean ball or no-ball, and the runs run on a wide, bye or leg-bye.
type BallEvent struct {
	EventID       string        `json:"eventId,omitempty"`
	RunsOffBat    int           `json:"runsOffBat"`
	IsWicket      bool          `json:"isWicket"`
	IsWide        bool          `json:"isWide"`
	IsNoBall      bool          `json:"isNoBall"`
	IsBye         bool          `json:"isBye"`
	IsLegBye      bool          `json:"isLegBye"`
	DismissalType DismissalType `json:"dismissalType,omitempty"`
	FielderName   string        `json:"fielderName,omitempty"`
	OutPlayerID   string        `json:"outPlayerId,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// IsLegal reports whether the delivery counts toward the over.
func (e BallEvent) IsLegal() bool {
	return !e.IsWide && !e.IsNoBall
}

// PenaltyRuns is the one-run penalty for a wide or no-ball.
func (e BallEvent) PenaltyRuns() int {
	if e.IsWide || e.IsNoBall {
		return 1
	}
	return 0
}

// TotalRuns is what the delivery adds to the batting total.
func (e BallEvent) TotalRuns() int {
	return e.RunsOffBat + e.PenaltyRuns()
}

// IsRunOut reports whether the wicket was a run out.
func (e BallEvent) IsRunOut() bool {
	return e.IsWicket && e.DismissalType == DismissalRunOut
}

// Kind returns a short label used for metrics and logs.
func (e BallEvent) Kind() string {
	switch {
	case e.IsWide:
		return "wide"
	case e.IsNoBall:
		return "no_ball"
	case e.IsBye:
		return "bye"
	case e.IsLegBye:
		return "leg_bye"
	case e.RunsOffBat == 0:
		return "dot"
	}
	return "runs"
}

// Validate rejects combinations that cannot describe a real delivery.
func (e BallEvent) Validate() error {
	if e.RunsOffBat < 0 {
		return fmt.Errorf("%w: runs must not be negative", ErrInvalidBall)
	}
	extras := 0
	for _, set := range []bool{e.IsWide, e.IsNoBall, e.IsBye, e.IsLegBye} {
		if set {
			extras++
		}
	}
	if extras > 1 {
		return fmt.Errorf("%w: wide, no-ball, bye and leg-bye are mutually exclusive", ErrInvalidBall)
	}
	if !e.IsWicket {
		if e.DismissalType != DismissalNone || e.OutPlayerID != "" {
			return fmt.Errorf("%w: dismissal details without a wicket", ErrInvalidBall)
		}
		return nil
	}
	if e.DismissalType == DismissalRunOut {
		if strings.TrimSpace(e.OutPlayerID) == "" {
			return fmt.Errorf("%w: run out requires outPlayerId", ErrInvalidBall)
		}
		return nil
	}
	if (e.IsBye || e.IsLegBye) && e.RunsOffBat > 0 {
		return fmt.Errorf("%w: %s dismissal cannot score byes", ErrInvalidBall, e.DismissalType)
	}
	return nil
}
