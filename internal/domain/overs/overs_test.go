package overs_test

import (
	"errors"
	"testing"

	"github.com/okian/crease/internal/domain/overs"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAdvance(t *testing.T) {
	Convey("Given an over value", t, func() {
		Convey("When a ball is added mid-over", func() {
			So(overs.Advance(d("0")).String(), ShouldEqual, "0.1")
			So(overs.Advance(d("3.2")).String(), ShouldEqual, "3.3")
			So(overs.Advance(d("7.4")).String(), ShouldEqual, "7.5")
		})

		Convey("When the sixth legal ball is bowled the over rolls", func() {
			So(overs.Advance(d("0.5")).Equal(d("1")), ShouldBeTrue)
			So(overs.Advance(d("19.5")).Equal(d("20")), ShouldBeTrue)
			So(overs.IsOverBoundary(overs.Advance(d("0.5"))), ShouldBeTrue)
		})

		Convey("Then the input is left untouched", func() {
			v := d("2.3")
			_ = overs.Advance(v)
			So(v.String(), ShouldEqual, "2.3")
		})
	})
}

func TestTotalLegalBalls(t *testing.T) {
	Convey("Given x.y values", t, func() {
		So(overs.TotalLegalBalls(d("0")), ShouldEqual, 0)
		So(overs.TotalLegalBalls(d("0.5")), ShouldEqual, 5)
		So(overs.TotalLegalBalls(d("1")), ShouldEqual, 6)
		So(overs.TotalLegalBalls(d("12.3")), ShouldEqual, 75)
	})

	Convey("Given a run of legal deliveries", t, func() {
		v := decimal.Zero
		for i := 1; i <= 127; i++ {
			v = overs.Advance(v)
			So(overs.TotalLegalBalls(v), ShouldEqual, i)
			So(overs.BallsInOver(v), ShouldBeLessThan, overs.BallsPerOver)
			So(overs.FromBalls(i).Equal(v), ShouldBeTrue)
		}
		So(overs.Format(v), ShouldEqual, "21.1")
	})
}

func TestValidate(t *testing.T) {
	Convey("Given candidate over values", t, func() {
		So(overs.Validate(d("4.5")), ShouldBeNil)
		So(overs.Validate(d("10")), ShouldBeNil)
		So(errors.Is(overs.Validate(d("4.6")), overs.ErrInvalidOvers), ShouldBeTrue)
		So(errors.Is(overs.Validate(d("4.25")), overs.ErrInvalidOvers), ShouldBeTrue)
		So(errors.Is(overs.Validate(d("-1")), overs.ErrInvalidOvers), ShouldBeTrue)
	})

	Convey("FromBalls treats non-positive counts as zero", t, func() {
		So(overs.FromBalls(-3).IsZero(), ShouldBeTrue)
		So(overs.Format(overs.FromBalls(0)), ShouldEqual, "0.0")
	})
}
