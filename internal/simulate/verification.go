package simulate

import (
	"errors"
	"fmt"
	"slices"

	"github.com/okian/crease/internal/domain/model"
)

// ErrMismatch marks a server score that differs from the local replay.
var ErrMismatch = errors.New("server score does not match replay")

// Verify compares the innings in progress on both scores.
func Verify(local, remote model.MatchScore) error { //nolint:gocritic // hugeParam: scores travel by value
	var errs []error
	check := func(field string, want, got any) {
		if want != got {
			errs = append(errs, fmt.Errorf("%s: want %v, got %v", field, want, got))
		}
	}

	lb, rb := local.Batting(), remote.Batting()
	check("runs", lb.Runs, rb.Runs)
	check("wickets", lb.Wickets, rb.Wickets)
	if !lb.Overs.Equal(rb.Overs) {
		errs = append(errs, fmt.Errorf("overs: want %s, got %s", lb.Overs, rb.Overs))
	}
	check("partnership", local.Partnership, remote.Partnership)
	check("balls logged", len(local.BallByBall), len(remote.BallByBall))
	if !slices.Equal(local.ThisOver, remote.ThisOver) {
		errs = append(errs, fmt.Errorf("this over: want %v, got %v", local.ThisOver, remote.ThisOver))
	}
	if !slices.Equal(local.LastOver, remote.LastOver) {
		errs = append(errs, fmt.Errorf("last over: want %v, got %v", local.LastOver, remote.LastOver))
	}
	if !slices.Equal(tags(local.BallByBall), tags(remote.BallByBall)) {
		errs = append(errs, errors.New("ball-by-ball tags differ"))
	}
	checkBatter := func(slot string, want, got *model.BatterFigures) {
		switch {
		case want == nil && got == nil:
		case want == nil || got == nil:
			errs = append(errs, fmt.Errorf("%s: want %v, got %v", slot, want, got))
		default:
			check(slot+" id", want.ID, got.ID)
			check(slot+" runs", want.Runs, got.Runs)
			check(slot+" balls", want.Balls, got.Balls)
		}
	}
	checkBatter("striker", local.CurrentStriker, remote.CurrentStriker)
	checkBatter("non-striker", local.CurrentNonStriker, remote.CurrentNonStriker)

	switch want, got := local.CurrentBowler, remote.CurrentBowler; {
	case want == nil && got == nil:
	case want == nil || got == nil:
		errs = append(errs, fmt.Errorf("bowler: want %v, got %v", want, got))
	default:
		check("bowler id", want.ID, got.ID)
		check("bowler runs", want.Runs, got.Runs)
		check("bowler wickets", want.Wickets, got.Wickets)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrMismatch, errors.Join(errs...))
	}
	return nil
}

func tags(balls []model.BallRecord) []string {
	out := make([]string, len(balls))
	for i, b := range balls {
		out[i] = b.Tag
	}
	return out
}
