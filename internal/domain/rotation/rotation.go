// Package rotation decides which batter is on strike after a delivery and
// which crease a dismissal empties.
package rotation

import "github.com/okian/crease/internal/domain/model"

// Slot names a batting position at the crease.
type Slot string

// Batting slots.
const (
	SlotStriker    Slot = "striker"
	SlotNonStriker Slot = "non_striker"
)

// Policy carries the configurable part of strike rotation.
type Policy struct {
	// WideOddRunsRotate swaps strike when the batters complete an odd number
	// of runs on a wide.
	WideOddRunsRotate bool
}

// DefaultPolicy rotates on odd runs off wides.
func DefaultPolicy() Policy {
	return Policy{WideOddRunsRotate: true}
}

// OddRunsSwap reports whether ev alone changes ends. No-balls never do.
func (p Policy) OddRunsSwap(ev model.BallEvent) bool {
	if ev.RunsOffBat%2 == 0 || ev.IsNoBall {
		return false
	}
	return !ev.IsWide || p.WideOddRunsRotate
}

// Rotate applies the odd-runs swap and then, independently, the end-of-over
// swap. A ball that does both leaves the batters where they started.
func (p Policy) Rotate(striker, nonStriker *model.BatterFigures, ev model.BallEvent, overComplete bool) (*model.BatterFigures, *model.BatterFigures) {
	if p.OddRunsSwap(ev) {
		striker, nonStriker = nonStriker, striker
	}
	if ev.IsLegal() && overComplete {
		striker, nonStriker = nonStriker, striker
	}
	return striker, nonStriker
}

// Dismiss empties the crease of the dismissed batter. A run out removes the
// non-striker when OutPlayerID names them; every other wicket removes
// whoever is on strike after rotation.
func Dismiss(striker, nonStriker *model.BatterFigures, ev model.BallEvent) (*model.BatterFigures, *model.BatterFigures) {
	if !ev.IsWicket {
		return striker, nonStriker
	}
	if DismissedSlot(striker, nonStriker, ev) == SlotNonStriker {
		return striker, nil
	}
	return nil, nonStriker
}

// DismissedSlot returns the slot a wicket on ev empties.
func DismissedSlot(_, nonStriker *model.BatterFigures, ev model.BallEvent) Slot {
	if ev.IsRunOut() && nonStriker != nil && ev.OutPlayerID == nonStriker.ID {
		return SlotNonStriker
	}
	return SlotStriker
}

// IncomingSlot returns where a new batter walks in: the empty slot, or the
// striker's end when both or neither are empty.
func IncomingSlot(striker, nonStriker *model.BatterFigures) Slot {
	if striker != nil && nonStriker == nil {
		return SlotNonStriker
	}
	return SlotStriker
}
