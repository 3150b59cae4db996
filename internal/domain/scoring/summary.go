package scoring

import (
	"github.com/okian/crease/internal/domain/figures"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/overs"
)

// Summary is the scoreboard line for the innings in progress.
type Summary struct {
	BattingTeamID string            `json:"battingTeamId,omitempty"`
	Runs          int               `json:"runs"`
	Wickets       int               `json:"wickets"`
	Overs         string            `json:"overs"`
	LegalBalls    int               `json:"legalBalls"`
	RunRate       float64           `json:"runRate"`
	Target        int               `json:"target,omitempty"`
	RunsNeeded    int               `json:"runsNeeded,omitempty"`
	Partnership   model.Partnership `json:"partnership"`
	ThisOver      []string          `json:"thisOver"`
}

// Summarize builds the scoreboard line for state. When team B is batting the
// target is team A's total plus one.
func Summarize(state model.MatchScore) Summary {
	innings := state.Batting()
	balls := overs.TotalLegalBalls(innings.Overs)
	s := Summary{
		BattingTeamID: state.CurrentBattingTeamID,
		Runs:          innings.Runs,
		Wickets:       innings.Wickets,
		Overs:         overs.Format(innings.Overs),
		LegalBalls:    balls,
		RunRate:       figures.RunRate(innings.Runs, balls),
		Partnership:   state.Partnership,
		ThisOver:      append([]string{}, state.ThisOver...),
	}
	if state.BattingIsTeamB() {
		s.Target = state.TeamA.Runs + 1
		s.RunsNeeded = max(s.Target-innings.Runs, 0)
	}
	return s
}
