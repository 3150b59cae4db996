package scoring

import (
	"strconv"

	"github.com/okian/crease/internal/domain/model"
)

// Tag returns the short label shown for a delivery in the over tally:
// W, WD, WD+n, NB, NB+n, nB, nLB or the runs scored.
func Tag(ev model.BallEvent) string {
	runs := strconv.Itoa(ev.RunsOffBat)
	switch {
	case ev.IsWicket:
		return "W"
	case ev.IsWide:
		return withRuns("WD", ev.RunsOffBat)
	case ev.IsNoBall:
		return withRuns("NB", ev.RunsOffBat)
	case ev.IsBye:
		return runs + "B"
	case ev.IsLegBye:
		return runs + "LB"
	}
	return runs
}

func withRuns(prefix string, runs int) string {
	if runs > 0 {
		return prefix + "+" + strconv.Itoa(runs)
	}
	return prefix
}
