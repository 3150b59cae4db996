// Package overs implements the x.y over notation, where x counts completed
// overs and the single decimal digit y counts legal balls (0-5) in the over
// in progress.
package overs

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// BallsPerOver is the number of legal deliveries in an over.
const BallsPerOver = 6

// ErrInvalidOvers is returned for values that are not valid x.y notation.
var ErrInvalidOvers = errors.New("invalid overs value")

var ten = decimal.NewFromInt(10)

// BallsInOver returns y for an x.y value.
func BallsInOver(v decimal.Decimal) int {
	frac := v.Sub(v.Floor())
	return int(frac.Mul(ten).Round(0).IntPart())
}

// Advance returns the over value after one more legal delivery. The fifth
// ball-in-over digit rolls into the next whole over.
func Advance(current decimal.Decimal) decimal.Decimal {
	whole := current.Floor()
	balls := BallsInOver(current)
	if balls >= BallsPerOver-1 {
		return whole.Add(decimal.NewFromInt(1))
	}
	return whole.Add(decimal.NewFromInt(int64(balls + 1)).Shift(-1))
}

// TotalLegalBalls converts an x.y value to the number of legal deliveries.
func TotalLegalBalls(v decimal.Decimal) int {
	return int(v.Floor().IntPart())*BallsPerOver + BallsInOver(v)
}

// IsOverBoundary reports whether v sits exactly on a completed over.
func IsOverBoundary(v decimal.Decimal) bool {
	return BallsInOver(v) == 0
}

// FromBalls is the inverse of TotalLegalBalls.
func FromBalls(n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	whole := decimal.NewFromInt(int64(n / BallsPerOver))
	return whole.Add(decimal.NewFromInt(int64(n % BallsPerOver)).Shift(-1))
}

// Validate rejects negative values, more than one fractional digit and
// ball digits above 5.
func Validate(v decimal.Decimal) error {
	if v.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidOvers, v)
	}
	if !v.Shift(1).IsInteger() {
		return fmt.Errorf("%w: %s has more than one decimal place", ErrInvalidOvers, v)
	}
	if BallsInOver(v) >= BallsPerOver {
		return fmt.Errorf("%w: %s has more than %d balls in the over", ErrInvalidOvers, v, BallsPerOver-1)
	}
	return nil
}

// Format renders v with exactly one decimal place ("12.0", "3.4").
func Format(v decimal.Decimal) string {
	return v.StringFixed(1)
}
