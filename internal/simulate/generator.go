package simulate

import (
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/okian/crease/internal/domain/model"
)

type outcome int

const (
	outDot outcome = iota
	outSingle
	outDouble
	outThree
	outFour
	outSix
	outWide
	outNoBall
	outBye
	outLegBye
	outWicket
	outRunOut
)

// weights is the relative frequency of each outcome, loosely shaped on a
// T20 innings.
var weights = []struct {
	out    outcome
	weight int
}{
	{outDot, 34},
	{outSingle, 26},
	{outDouble, 8},
	{outThree, 1},
	{outFour, 10},
	{outSix, 4},
	{outWide, 4},
	{outNoBall, 2},
	{outBye, 2},
	{outLegBye, 2},
	{outWicket, 5},
	{outRunOut, 2},
}

var dismissals = []model.DismissalType{
	model.DismissalBowled,
	model.DismissalCaught,
	model.DismissalCaught,
	model.DismissalLBW,
	model.DismissalStumped,
	model.DismissalHitWicket,
}

// Generator produces random deliveries. The same seed yields the same
// innings.
type Generator struct {
	rng   *rand.Rand
	total int
}

// NewGenerator returns a Generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	total := 0
	for _, w := range weights {
		total += w.weight
	}
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), total: total}
}

// Chance reports true with probability p.
func (g *Generator) Chance(p float64) bool {
	return p > 0 && g.rng.Float64() < p
}

func (g *Generator) pick() outcome {
	n := g.rng.IntN(g.total)
	for _, w := range weights {
		if n < w.weight {
			return w.out
		}
		n -= w.weight
	}
	return outDot
}

// Next returns a delivery that is valid against state: a run out names a
// batter at the crease.
func (g *Generator) Next(state *model.MatchScore) model.BallEvent {
	ev := model.BallEvent{EventID: uuid.NewString()}
	switch g.pick() {
	case outDot:
	case outSingle:
		ev.RunsOffBat = 1
	case outDouble:
		ev.RunsOffBat = 2
	case outThree:
		ev.RunsOffBat = 3
	case outFour:
		ev.RunsOffBat = 4
	case outSix:
		ev.RunsOffBat = 6
	case outWide:
		ev.IsWide = true
		ev.RunsOffBat = g.rng.IntN(2)
	case outNoBall:
		ev.IsNoBall = true
		ev.RunsOffBat = []int{0, 1, 4}[g.rng.IntN(3)]
	case outBye:
		ev.IsBye = true
		ev.RunsOffBat = 1 + g.rng.IntN(2)
	case outLegBye:
		ev.IsLegBye = true
		ev.RunsOffBat = 1 + g.rng.IntN(2)
	case outWicket:
		ev.IsWicket = true
		ev.DismissalType = dismissals[g.rng.IntN(len(dismissals))]
		if ev.DismissalType == model.DismissalCaught {
			ev.FielderName = "fielder"
		}
	case outRunOut:
		ev.IsWicket = true
		ev.DismissalType = model.DismissalRunOut
		ev.RunsOffBat = g.rng.IntN(2)
		ev.OutPlayerID = runOutVictim(g, state)
		if ev.OutPlayerID == "" {
			ev = model.BallEvent{EventID: ev.EventID}
		}
	}
	return ev
}

func runOutVictim(g *Generator, state *model.MatchScore) string {
	var ids []string
	for _, b := range []*model.BatterFigures{state.CurrentStriker, state.CurrentNonStriker} {
		if b != nil {
			ids = append(ids, b.ID)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	return ids[g.rng.IntN(len(ids))]
}
