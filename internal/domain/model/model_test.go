package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/crease/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBallEventValidate(t *testing.T) {
	Convey("Given ball events", t, func() {
		Convey("Clean and single-extra balls are valid", func() {
			for _, ev := range []model.BallEvent{
				{},
				{RunsOffBat: 6},
				{IsWide: true, RunsOffBat: 2},
				{IsNoBall: true, RunsOffBat: 4},
				{IsBye: true, RunsOffBat: 1},
				{IsLegBye: true, RunsOffBat: 1},
				{IsWicket: true, DismissalType: model.DismissalStumped, IsWide: true},
				{IsWicket: true, DismissalType: model.DismissalRunOut, OutPlayerID: "p1", IsBye: true, RunsOffBat: 1},
			} {
				So(ev.Validate(), ShouldBeNil)
			}
		})

		Convey("Invalid combinations are rejected", func() {
			for _, ev := range []model.BallEvent{
				{RunsOffBat: -1},
				{IsWide: true, IsBye: true},
				{IsNoBall: true, IsLegBye: true},
				{DismissalType: model.DismissalBowled},
				{OutPlayerID: "p1"},
				{IsWicket: true, DismissalType: model.DismissalRunOut},
				{IsWicket: true, DismissalType: model.DismissalCaught, IsBye: true, RunsOffBat: 2},
			} {
				So(errors.Is(ev.Validate(), model.ErrInvalidBall), ShouldBeTrue)
			}
		})
	})
}

func TestBallEventHelpers(t *testing.T) {
	Convey("Given a wide with two runs", t, func() {
		ev := model.BallEvent{IsWide: true, RunsOffBat: 2}
		So(ev.IsLegal(), ShouldBeFalse)
		So(ev.PenaltyRuns(), ShouldEqual, 1)
		So(ev.TotalRuns(), ShouldEqual, 3)
		So(ev.Kind(), ShouldEqual, "wide")
	})

	Convey("Given a leg-bye", t, func() {
		ev := model.BallEvent{IsLegBye: true, RunsOffBat: 1}
		So(ev.IsLegal(), ShouldBeTrue)
		So(ev.TotalRuns(), ShouldEqual, 1)
		So(ev.Kind(), ShouldEqual, "leg_bye")
	})

	Convey("Kind separates dots from scoring shots", t, func() {
		So(model.BallEvent{}.Kind(), ShouldEqual, "dot")
		So(model.BallEvent{RunsOffBat: 3}.Kind(), ShouldEqual, "runs")
		So(model.BallEvent{IsNoBall: true}.Kind(), ShouldEqual, "no_ball")
	})
}

func TestDismissalType(t *testing.T) {
	Convey("Given dismissal spellings", t, func() {
		for in, want := range map[string]model.DismissalType{
			"run out":    model.DismissalRunOut,
			"runOut":     model.DismissalRunOut,
			"RUN_OUT":    model.DismissalRunOut,
			"hit-wicket": model.DismissalHitWicket,
			"LBW":        model.DismissalLBW,
			"":           model.DismissalNone,
		} {
			got, err := model.ParseDismissalType(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		_, err := model.ParseDismissalType("timed out")
		So(errors.Is(err, model.ErrInvalidBall), ShouldBeTrue)
	})

	Convey("Given a JSON ball from a scorer", t, func() {
		var ev model.BallEvent
		err := json.Unmarshal([]byte(`{"runsOffBat":1,"isWicket":true,"dismissalType":"run out","outPlayerId":"p9"}`), &ev)
		So(err, ShouldBeNil)
		So(ev.IsRunOut(), ShouldBeTrue)
		So(ev.OutPlayerID, ShouldEqual, "p9")

		err = json.Unmarshal([]byte(`{"dismissalType":"retired"}`), &ev)
		So(errors.Is(err, model.ErrInvalidBall), ShouldBeTrue)
	})
}

func TestMatchScoreClone(t *testing.T) {
	Convey("Given a score with players and history", t, func() {
		s := model.NewMatchScore("id", "m1", time.Unix(0, 0).UTC())
		s.CurrentStriker = &model.BatterFigures{ID: "s", Runs: 10}
		s.CurrentBowler = &model.BowlerFigures{ID: "b"}
		s.ThisOver = []string{"1", "4"}
		s.History = []model.MatchScore{s.Snapshot()}

		c := s.Clone()
		c.CurrentStriker.Runs = 99
		c.ThisOver[0] = "W"
		c.History[0].ThisOver[1] = "6"

		So(s.CurrentStriker.Runs, ShouldEqual, 10)
		So(s.ThisOver, ShouldResemble, []string{"1", "4"})
		So(s.History[0].ThisOver, ShouldResemble, []string{"1", "4"})
		So(s.Snapshot().History, ShouldBeNil)
	})

	Convey("Given a score with team ids", t, func() {
		s := model.NewMatchScore("id", "m1", time.Now())
		s.TeamAID, s.TeamBID = "a", "b"

		So(s.Batting() == &s.TeamA, ShouldBeTrue)
		s.CurrentBattingTeamID = "b"
		So(s.BattingIsTeamB(), ShouldBeTrue)
		So(s.Batting() == &s.TeamB, ShouldBeTrue)
		s.CurrentBattingTeamID = "someone-else"
		So(s.BattingIsTeamB(), ShouldBeFalse)
	})
}

func TestMatchInfo(t *testing.T) {
	Convey("Given a match with two rosters", t, func() {
		m := model.MatchInfo{
			ID:    "m1",
			TeamA: model.Team{ID: "a", Players: []model.Player{{ID: "a1", Name: "One"}}},
			TeamB: model.Team{ID: "b", Players: []model.Player{{ID: "b1", Name: "Two"}}},
		}

		team, ok := m.Team("b")
		So(ok, ShouldBeTrue)
		So(team.ID, ShouldEqual, "b")
		_, ok = m.Team("c")
		So(ok, ShouldBeFalse)

		p, ok := m.Player("b1")
		So(ok, ShouldBeTrue)
		So(p.Name, ShouldEqual, "Two")
		_, ok = m.Player("zz")
		So(ok, ShouldBeFalse)
	})
}
