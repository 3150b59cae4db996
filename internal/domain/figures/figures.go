// Package figures applies a single delivery to the striker's and the
// bowler's running figures. Inputs are never modified; every call returns a
// fresh copy.
package figures

import (
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/overs"
)

// Rules holds the batting conventions that differ between scorers.
type Rules struct {
	// NoBallCountsAsBallFaced adds a ball faced to the striker on a no-ball.
	// Off by default, matching the Laws of Cricket.
	NoBallCountsAsBallFaced bool
}

// Batter returns the striker's figures after ev. Wides, byes and leg-byes
// leave the striker unchanged. A nil striker stays nil.
func Batter(b *model.BatterFigures, ev model.BallEvent, rules Rules) *model.BatterFigures {
	out := b.Clone()
	if out == nil || ev.IsWide || ev.IsBye || ev.IsLegBye {
		return out
	}

	out.Runs += ev.RunsOffBat
	if !ev.IsNoBall || rules.NoBallCountsAsBallFaced {
		out.Balls++
	}
	switch ev.RunsOffBat {
	case 4:
		out.Fours++
	case 6:
		out.Sixes++
	}
	out.StrikeRate = StrikeRate(out.Runs, out.Balls)
	return out
}

// Bowler returns the bowler's figures after ev. Byes and leg-byes are not
// charged to the bowler and run outs are not credited. A nil bowler stays nil.
func Bowler(b *model.BowlerFigures, ev model.BallEvent) *model.BowlerFigures {
	out := b.Clone()
	if out == nil {
		return nil
	}

	if ev.IsLegal() {
		out.Overs = overs.Advance(out.Overs)
	}
	if !ev.IsBye && !ev.IsLegBye {
		out.Runs += ev.TotalRuns()
	}
	if ev.IsWicket && !ev.IsRunOut() {
		out.Wickets++
	}
	out.Economy = Economy(out.Runs, overs.TotalLegalBalls(out.Overs))
	return out
}

// StrikeRate is runs per hundred balls, 0 before the first ball faced.
func StrikeRate(runs, balls int) float64 {
	if balls <= 0 {
		return 0
	}
	return float64(runs) / float64(balls) * 100
}

// Economy is runs conceded per six legal balls, 0 before the first legal ball.
func Economy(runs, legalBalls int) float64 {
	if legalBalls <= 0 {
		return 0
	}
	return float64(runs) * overs.BallsPerOver / float64(legalBalls)
}

// RunRate is the batting side's runs per over.
func RunRate(runs, legalBalls int) float64 {
	return Economy(runs, legalBalls)
}
