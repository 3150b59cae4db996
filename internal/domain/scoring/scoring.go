// Package scoring is the live scoring state machine. Every operation takes a
// MatchScore by value and returns the next one; the input is never modified
// and a failed operation returns it unchanged.
package scoring

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/crease/internal/domain/figures"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/overs"
	"github.com/okian/crease/internal/domain/rotation"
)

// AllOutWickets ends an innings.
const AllOutWickets = 10

// Slot names a position a player can be assigned to.
type Slot string

// Player slots. SlotIncoming resolves to whichever batting end is empty.
const (
	SlotStriker    Slot = "striker"
	SlotNonStriker Slot = "non_striker"
	SlotBowler     Slot = "bowler"
	SlotIncoming   Slot = "incoming"
)

// ParseSlot accepts snake, camel and kebab spellings of a slot.
func ParseSlot(s string) (Slot, error) {
	key := strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "striker":
		return SlotStriker, nil
	case "nonstriker":
		return SlotNonStriker, nil
	case "bowler":
		return SlotBowler, nil
	case "incoming", "newbatter":
		return SlotIncoming, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSlot, s)
}

// Machine applies scoring operations under a fixed set of rules.
type Machine struct {
	rules  Rules
	policy rotation.Policy
	now    func() time.Time
	depth  int
}

// NewMachine creates a state machine with configuration options.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		rules: DefaultRules(),
		now:   time.Now,
		depth: DefaultHistoryDepth,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.policy = rotation.Policy{WideOddRunsRotate: m.rules.WideOddRunsRotate}
	return m
}

// Rules returns the rules the machine was built with.
func (m *Machine) Rules() Rules {
	return m.rules
}

// RecordBall scores one delivery.
func (m *Machine) RecordBall(state model.MatchScore, ev model.BallEvent) (model.MatchScore, error) {
	if err := ev.Validate(); err != nil {
		return state, err
	}
	if err := m.checkReady(&state, ev); err != nil {
		return state, err
	}

	now := m.now()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}

	next := state.Snapshot()

	striker := figures.Batter(state.CurrentStriker, ev, figures.Rules{NoBallCountsAsBallFaced: m.rules.NoBallCountsAsBallFaced})
	bowler := figures.Bowler(state.CurrentBowler, ev)

	if ev.IsLegal() {
		next.Partnership.Balls++
	}
	next.Partnership.Runs += ev.TotalRuns()

	innings := next.Batting()
	innings.Runs += ev.TotalRuns()
	if ev.IsWicket {
		innings.Wickets++
	}
	if ev.IsLegal() {
		innings.Overs = overs.Advance(innings.Overs)
	}
	overComplete := ev.IsLegal() && overs.IsOverBoundary(innings.Overs)

	striker, nonStriker := m.policy.Rotate(striker, state.CurrentNonStriker.Clone(), ev, overComplete)
	if ev.IsWicket {
		next.Partnership = model.Partnership{}
		striker, nonStriker = rotation.Dismiss(striker, nonStriker, ev)
	}
	next.CurrentStriker = striker
	next.CurrentNonStriker = nonStriker
	next.CurrentBowler = bowler

	tag := Tag(ev)
	if overComplete {
		last := slices.Clone(state.ThisOver)
		if m.rules.CompletingBallVisibleInOldOver {
			last = append(last, tag)
		}
		next.LastOver = last
		next.ThisOver = []string{}
		next.PreviousBowler = bowler
		next.CurrentBowler = nil
	} else {
		next.ThisOver = append(next.ThisOver, tag)
	}

	next.BallByBall = append(next.BallByBall, model.BallRecord{Ball: ev, Tag: tag, Timestamp: now})
	next.History = m.push(state.History, state.Snapshot())
	next.UpdatedAt = now
	return next, nil
}

// Undo restores the state before the most recent ball. It reports false and
// returns state unchanged when there is nothing to undo. Popped states are
// discarded, so there is no redo.
func (m *Machine) Undo(state model.MatchScore) (model.MatchScore, bool) {
	n := len(state.History)
	if n == 0 {
		return state, false
	}
	prev := state.History[n-1].Snapshot()
	if n > 1 {
		prev.History = slices.Clone(state.History[:n-1])
	}
	prev.Version = state.Version
	return prev, true
}

// SetPlayer puts a player with fresh figures into slot. It is an
// administrative change and does not add an undo step.
func (m *Machine) SetPlayer(state model.MatchScore, slot Slot, p model.Player) (model.MatchScore, error) {
	if strings.TrimSpace(p.ID) == "" {
		return state, fmt.Errorf("%w: player id is required", ErrInvalidPlayer)
	}
	if p.Name == "" {
		p.Name = p.ID
	}

	if slot == SlotIncoming {
		slot = Slot(rotation.IncomingSlot(state.CurrentStriker, state.CurrentNonStriker))
	}

	next := state
	switch slot {
	case SlotStriker:
		if atCrease(state.CurrentNonStriker, p.ID) {
			return state, fmt.Errorf("%w: %s is already the non-striker", ErrInvalidPlayer, p.ID)
		}
		next.CurrentStriker = model.NewBatter(p)
	case SlotNonStriker:
		if atCrease(state.CurrentStriker, p.ID) {
			return state, fmt.Errorf("%w: %s is already on strike", ErrInvalidPlayer, p.ID)
		}
		next.CurrentNonStriker = model.NewBatter(p)
	case SlotBowler:
		next.CurrentBowler = model.NewBowler(p)
	default:
		return state, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	next.UpdatedAt = m.now()
	return next, nil
}

// SetBattingTeam starts an innings for teamID. Both batters, the bowler, the
// partnership and the current over are cleared; the totals are kept.
func (m *Machine) SetBattingTeam(state model.MatchScore, teamID string) model.MatchScore {
	next := state
	next.CurrentBattingTeamID = teamID
	next.CurrentStriker = nil
	next.CurrentNonStriker = nil
	next.CurrentBowler = nil
	next.PreviousBowler = nil
	next.Partnership = model.Partnership{}
	next.ThisOver = []string{}
	next.LastOver = nil
	next.UpdatedAt = m.now()
	return next
}

func (m *Machine) checkReady(state *model.MatchScore, ev model.BallEvent) error {
	if state.CurrentBowler == nil {
		return &PlayerRequiredError{Slot: SlotBowler}
	}
	if state.CurrentStriker == nil && needsStriker(ev) {
		return &PlayerRequiredError{Slot: SlotStriker}
	}
	if m.rules.AllOutGuard && state.Batting().Wickets >= AllOutWickets {
		return fmt.Errorf("%w: innings is all out", ErrInvalidState)
	}
	return nil
}

// needsStriker reports whether ev touches the striker: anything credited to
// the bat, and every wicket.
func needsStriker(ev model.BallEvent) bool {
	return ev.IsWicket || !(ev.IsWide || ev.IsBye || ev.IsLegBye)
}

// push appends s to the bounded history, dropping the oldest entries.
// Entries are never modified after they are pushed, so they are shared.
func (m *Machine) push(history []model.MatchScore, s model.MatchScore) []model.MatchScore {
	keep := m.depth - 1
	if len(history) > keep {
		history = history[len(history)-keep:]
	}
	out := make([]model.MatchScore, 0, len(history)+1)
	out = append(out, history...)
	return append(out, s)
}

func atCrease(b *model.BatterFigures, id string) bool {
	return b != nil && b.ID == id
}
