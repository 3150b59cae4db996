package model

import "github.com/shopspring/decimal"

// Player identifies a roster entry.
type Player struct {
	ID   string `json:"id" koanf:"id"`
	Name string `json:"name" koanf:"name"`
	Role string `json:"role,omitempty" koanf:"role"`
}

// BatterFigures is a batter's running innings.
type BatterFigures struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Runs       int     `json:"runs"`
	Balls      int     `json:"balls"`
	Fours      int     `json:"fours"`
	Sixes      int     `json:"sixes"`
	StrikeRate float64 `json:"strikeRate"`
}

// NewBatter returns zeroed figures for p.
func NewBatter(p Player) *BatterFigures {
	return &BatterFigures{ID: p.ID, Name: p.Name}
}

// Clone returns an independent copy; nil stays nil.
func (b *BatterFigures) Clone() *BatterFigures {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// BowlerFigures is a bowler's running spell. Overs uses x.y notation where y
// counts legal balls in the current over.
type BowlerFigures struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Overs   decimal.Decimal `json:"overs"`
	Runs    int             `json:"runs"`
	Wickets int             `json:"wickets"`
	Economy float64         `json:"economy"`
}

// NewBowler returns zeroed figures for p.
func NewBowler(p Player) *BowlerFigures {
	return &BowlerFigures{ID: p.ID, Name: p.Name, Overs: decimal.Zero}
}

// Clone returns an independent copy; nil stays nil.
func (b *BowlerFigures) Clone() *BowlerFigures {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// Partnership accumulates since the last wicket.
type Partnership struct {
	Runs  int `json:"runs"`
	Balls int `json:"balls"`
}
