package model

import (
	"slices"
	"time"

	"github.com/okian/crease/internal/domain/types"
	"github.com/shopspring/decimal"
)

// Innings holds one side's running total.
type Innings struct {
	Runs    int             `json:"runs"`
	Wickets int             `json:"wickets"`
	Overs   decimal.Decimal `json:"overs"`
}

// BallRecord is one entry of the ball-by-ball log.
type BallRecord struct {
	Ball      BallEvent `json:"ball"`
	Tag       string    `json:"tag"`
	Timestamp time.Time `json:"timestamp"`
}

// MatchScore is the live scoring state of one match.
//
// History holds pre-transition copies of the score, oldest first, each with
// an empty History of its own.
type MatchScore struct {
	ID                   string         `json:"id"`
	MatchID              string         `json:"matchId"`
	TeamAID              string         `json:"teamAId,omitempty"`
	TeamBID              string         `json:"teamBId,omitempty"`
	TeamA                Innings        `json:"teamA"`
	TeamB                Innings        `json:"teamB"`
	CurrentBattingTeamID string         `json:"currentBattingTeamId,omitempty"`
	CurrentStriker       *BatterFigures `json:"currentStriker"`
	CurrentNonStriker    *BatterFigures `json:"currentNonStriker"`
	CurrentBowler        *BowlerFigures `json:"currentBowler"`
	PreviousBowler       *BowlerFigures `json:"previousBowler,omitempty"`
	Partnership          Partnership    `json:"partnership"`
	ThisOver             []string       `json:"thisOver"`
	LastOver             []string       `json:"lastOver,omitempty"`
	BallByBall           []BallRecord   `json:"ballByBall"`
	History              []MatchScore   `json:"history,omitempty"`
	Version              uint64         `json:"version"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// NewMatchScore returns the zeroed record created when a match is scheduled.
func NewMatchScore(id, matchID string, now time.Time) MatchScore {
	return MatchScore{
		ID:         id,
		MatchID:    matchID,
		TeamA:      Innings{Overs: decimal.Zero},
		TeamB:      Innings{Overs: decimal.Zero},
		ThisOver:   []string{},
		BallByBall: []BallRecord{},
		UpdatedAt:  now,
	}
}

// BattingIsTeamB reports whether the team-B innings is the one in progress.
// Anything other than an explicit team-B id scores into team A.
func (s *MatchScore) BattingIsTeamB() bool {
	return s.TeamBID != "" && s.CurrentBattingTeamID == s.TeamBID
}

// Batting returns the innings currently being scored.
func (s *MatchScore) Batting() *Innings {
	if s.BattingIsTeamB() {
		return &s.TeamB
	}
	return &s.TeamA
}

// HasBall reports whether a ball with eventID is in the log, newest first.
// Undone balls are no longer in it.
func (s *MatchScore) HasBall(eventID string) bool {
	if eventID == "" {
		return false
	}
	for i := len(s.BallByBall) - 1; i >= 0; i-- {
		if s.BallByBall[i].Ball.EventID == eventID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (s MatchScore) Clone() MatchScore {
	c := s.Snapshot()
	if s.History != nil {
		c.History = make([]MatchScore, len(s.History))
		for i := range s.History {
			c.History[i] = s.History[i].Snapshot()
		}
	}
	return c
}

// Snapshot returns a deep copy without the history stack.
func (s MatchScore) Snapshot() MatchScore {
	c := s
	c.History = nil
	c.CurrentStriker = s.CurrentStriker.Clone()
	c.CurrentNonStriker = s.CurrentNonStriker.Clone()
	c.CurrentBowler = s.CurrentBowler.Clone()
	c.PreviousBowler = s.PreviousBowler.Clone()
	c.ThisOver = slices.Clone(s.ThisOver)
	c.LastOver = slices.Clone(s.LastOver)
	c.BallByBall = slices.Clone(s.BallByBall)
	return c
}

// ScoreUpdate is handed to the broadcast layer after every successful change.
// Score carries no History.
type ScoreUpdate struct {
	MatchID string      `json:"matchId"`
	Op      types.Op    `json:"op"`
	Version uint64      `json:"version"`
	Score   MatchScore  `json:"score"`
	Ball    *BallRecord `json:"ball,omitempty"`
}

// Team is one side of a match with its roster.
type Team struct {
	ID        string   `json:"id" koanf:"id"`
	Name      string   `json:"name" koanf:"name"`
	ShortName string   `json:"shortName,omitempty" koanf:"short_name"`
	Players   []Player `json:"players" koanf:"players"`
}

// MatchInfo is the directory view of a match.
type MatchInfo struct {
	ID           string `json:"id" koanf:"id"`
	TournamentID string `json:"tournamentId,omitempty" koanf:"tournament_id"`
	Venue        string `json:"venue,omitempty" koanf:"venue"`
	Overs        int    `json:"overs,omitempty" koanf:"overs"`
	TeamA        Team   `json:"teamA" koanf:"team_a"`
	TeamB        Team   `json:"teamB" koanf:"team_b"`
}

// Team returns the side with the given id.
func (m MatchInfo) Team(id string) (Team, bool) {
	switch id {
	case m.TeamA.ID:
		return m.TeamA, true
	case m.TeamB.ID:
		return m.TeamB, true
	}
	return Team{}, false
}

// Player finds a player on either roster.
func (m MatchInfo) Player(id string) (Player, bool) {
	for _, t := range []Team{m.TeamA, m.TeamB} {
		for _, p := range t.Players {
			if p.ID == id {
				return p, true
			}
		}
	}
	return Player{}, false
}
