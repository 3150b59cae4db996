package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/crease/internal/adapters/directory"
	"github.com/okian/crease/internal/adapters/repository"
	service "github.com/okian/crease/internal/app"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/overs"
	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/internal/domain/types"
	"github.com/okian/crease/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2025, 4, 1, 14, 0, 0, 0, time.UTC)

type capture struct {
	mu      sync.Mutex
	updates []model.ScoreUpdate
	err     error
}

func (c *capture) Publish(_ context.Context, u model.ScoreUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
	return c.err
}

func (c *capture) ops() []types.Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Op, len(c.updates))
	for i, u := range c.updates {
		out[i] = u.Op
	}
	return out
}

func roster(t *testing.T) *directory.Static {
	t.Helper()
	d, err := directory.New(model.MatchInfo{
		ID: "m1",
		TeamA: model.Team{ID: "kkr", Name: "Knights", Players: []model.Player{
			{ID: "p1", Name: "Gill", Role: "batter"},
			{ID: "p2", Name: "Rana"},
			{ID: "p3", Name: "Iyer"},
		}},
		TeamB: model.Team{ID: "csk", Name: "Kings", Players: []model.Player{
			{ID: "p11", Name: "Chahar", Role: "bowler"},
		}},
	})
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	return d
}

func startService(t *testing.T, pub *capture, opts ...service.Option) *service.Service {
	t.Helper()
	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
		service.WithDirectory(roster(t)),
		service.WithPublisher(pub),
		service.WithClock(func() time.Time { return fixedNow }),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})
	return svc
}

// ready opens team A's innings with both batters and a bowler in place.
func ready(svc *service.Service, matchID string) {
	ctx := context.Background()
	_, err := svc.SetBattingTeam(ctx, matchID, "kkr")
	So(err, ShouldBeNil)
	for slot, id := range map[string]string{"striker": "p1", "non_striker": "p2", "bowler": "p11"} {
		_, err := svc.SetPlayer(ctx, matchID, slot, model.Player{ID: id})
		So(err, ShouldBeNil)
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("Then operations are refused", func() {
			_, err := svc.RecordBall(ctx, "m1", model.BallEvent{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Score(ctx, "m1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats().Started, ShouldBeFalse)
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})

	Convey("Given a started service", t, func() {
		svc := startService(t, &capture{}, service.WithDedupeSize(100))

		Convey("Then stats describe it", func() {
			stats := svc.GetStats()
			So(stats.Started, ShouldBeTrue)
			So(stats.WorkerCount, ShouldEqual, 2)
			So(stats.QueueSize, ShouldEqual, 64)
			So(stats.StoreBackend, ShouldEqual, "memory")
			So(stats.Matches, ShouldEqual, 0)
		})

		Convey("Then starting twice is harmless", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
		})

		Convey("When it is stopped", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)

			Convey("Then it reports stopped", func() {
				So(svc.GetStats().Started, ShouldBeFalse)
			})
		})
	})
}

func TestService_RecordBall(t *testing.T) {
	Convey("Given a match ready to score", t, func() {
		pub := &capture{}
		svc := startService(t, pub)
		ctx := context.Background()
		ready(svc, "m1")

		Convey("When a boundary is hit", func() {
			res, err := svc.RecordBall(ctx, "m1", model.BallEvent{EventID: "b1", RunsOffBat: 4})

			Convey("Then the score is saved and broadcast", func() {
				So(err, ShouldBeNil)
				So(res.Applied, ShouldBeTrue)
				So(res.Score.TeamA.Runs, ShouldEqual, 4)
				So(res.Score.TeamAID, ShouldEqual, "kkr")
				So(res.Score.TeamBID, ShouldEqual, "csk")
				So(res.Score.CurrentStriker.Name, ShouldEqual, "Gill")
				So(res.Score.CurrentStriker.Runs, ShouldEqual, 4)
				So(res.Score.ThisOver, ShouldResemble, []string{"4"})

				stored, err := svc.Score(ctx, "m1")
				So(err, ShouldBeNil)
				So(stored.Version, ShouldEqual, res.Score.Version)

				ops := pub.ops()
				So(ops[len(ops)-1], ShouldEqual, types.OpRecordBall)
				last := pub.updates[len(pub.updates)-1]
				So(last.Ball, ShouldNotBeNil)
				So(last.Ball.Tag, ShouldEqual, "4")
				So(last.Version, ShouldEqual, res.Score.Version)
			})

			Convey("Then a retry with the same event id is a duplicate", func() {
				again, err := svc.RecordBall(ctx, "m1", model.BallEvent{EventID: "b1", RunsOffBat: 4})
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				So(again.Applied, ShouldBeFalse)
				So(again.Score.TeamA.Runs, ShouldEqual, 4)
				So(svc.Size(), ShouldEqual, int64(1))
			})

			Convey("Then undo restores the previous score and frees the event id", func() {
				undone, err := svc.Undo(ctx, "m1")
				So(err, ShouldBeNil)
				So(undone.Applied, ShouldBeTrue)
				So(undone.Score.TeamA.Runs, ShouldEqual, 0)
				So(undone.Score.Version, ShouldEqual, res.Score.Version+1)

				again, err := svc.RecordBall(ctx, "m1", model.BallEvent{EventID: "b1", RunsOffBat: 6})
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeFalse)
				So(again.Score.TeamA.Runs, ShouldEqual, 6)
			})
		})

		Convey("When a wicket falls", func() {
			res, err := svc.RecordBall(ctx, "m1", model.BallEvent{IsWicket: true, DismissalType: model.DismissalBowled})
			So(err, ShouldBeNil)
			So(res.Score.CurrentStriker, ShouldBeNil)

			Convey("Then the next ball needs a new batter", func() {
				_, err := svc.RecordBall(ctx, "m1", model.BallEvent{RunsOffBat: 1})
				So(errors.Is(err, scoring.ErrInvalidState), ShouldBeTrue)
				var required *scoring.PlayerRequiredError
				So(errors.As(err, &required), ShouldBeTrue)
				So(required.Slot, ShouldEqual, scoring.SlotStriker)

				Convey("And the incoming slot fills the empty end", func() {
					set, err := svc.SetPlayer(ctx, "m1", "incoming", model.Player{ID: "p3"})
					So(err, ShouldBeNil)
					So(set.Score.CurrentStriker.Name, ShouldEqual, "Iyer")

					after, err := svc.RecordBall(ctx, "m1", model.BallEvent{RunsOffBat: 1})
					So(err, ShouldBeNil)
					So(after.Score.TeamA.Runs, ShouldEqual, 1)
					So(after.Score.TeamA.Wickets, ShouldEqual, 1)
				})
			})
		})

		Convey("When an invalid ball is sent", func() {
			_, err := svc.RecordBall(ctx, "m1", model.BallEvent{IsWide: true, IsNoBall: true})

			Convey("Then it is rejected before scoring", func() {
				So(errors.Is(err, model.ErrInvalidBall), ShouldBeTrue)
				score, _ := svc.Score(ctx, "m1")
				So(score.TeamA.Runs, ShouldEqual, 0)
			})
		})

		Convey("When a full over is bowled", func() {
			var res model.CommandResult
			var err error
			for i := 0; i < 6; i++ {
				res, err = svc.RecordBall(ctx, "m1", model.BallEvent{RunsOffBat: 0})
				So(err, ShouldBeNil)
			}

			Convey("Then the bowler must be replaced", func() {
				So(res.Score.CurrentBowler, ShouldBeNil)
				So(res.Score.PreviousBowler.Name, ShouldEqual, "Chahar")
				So(overs.TotalLegalBalls(res.Score.TeamA.Overs), ShouldEqual, 6)

				_, err := svc.RecordBall(ctx, "m1", model.BallEvent{RunsOffBat: 0})
				var required *scoring.PlayerRequiredError
				So(errors.As(err, &required), ShouldBeTrue)
				So(required.Slot, ShouldEqual, scoring.SlotBowler)
			})
		})
	})

	Convey("Given a match with nobody at the crease", t, func() {
		svc := startService(t, &capture{})

		Convey("When a ball is recorded", func() {
			_, err := svc.RecordBall(context.Background(), "m1", model.BallEvent{RunsOffBat: 1})

			Convey("Then the bowler is asked for first", func() {
				var required *scoring.PlayerRequiredError
				So(errors.As(err, &required), ShouldBeTrue)
				So(required.Slot, ShouldEqual, scoring.SlotBowler)
			})
		})

		Convey("When undo is requested", func() {
			res, err := svc.Undo(context.Background(), "m1")

			Convey("Then nothing happens", func() {
				So(err, ShouldBeNil)
				So(res.Applied, ShouldBeFalse)
				So(res.Score.Version, ShouldEqual, uint64(0))
			})
		})

		Convey("When the match id is blank", func() {
			_, err := svc.Undo(context.Background(), " ")
			So(errors.Is(err, service.ErrInvalidMatch), ShouldBeTrue)
		})
	})
}

func TestService_Teams(t *testing.T) {
	Convey("Given a match from the directory", t, func() {
		svc := startService(t, &capture{})
		ctx := context.Background()

		Convey("When team B goes in to bat and scores", func() {
			_, err := svc.SetBattingTeam(ctx, "m1", "csk")
			So(err, ShouldBeNil)
			_, _ = svc.SetPlayer(ctx, "m1", "striker", model.Player{ID: "x1", Name: "Opener"})
			_, _ = svc.SetPlayer(ctx, "m1", "bowler", model.Player{ID: "p1"})
			res, err := svc.RecordBall(ctx, "m1", model.BallEvent{RunsOffBat: 2})

			Convey("Then the runs go to team B", func() {
				So(err, ShouldBeNil)
				So(res.Score.TeamB.Runs, ShouldEqual, 2)
				So(res.Score.TeamA.Runs, ShouldEqual, 0)

				sum, err := svc.Summary(ctx, "m1")
				So(err, ShouldBeNil)
				So(sum.Target, ShouldEqual, 1)
			})
		})

		Convey("When a team outside the match is sent in", func() {
			_, err := svc.SetBattingTeam(ctx, "m1", "rcb")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrInvalidTeam), ShouldBeTrue)
			})
		})

		Convey("When the team id is blank", func() {
			_, err := svc.SetBattingTeam(ctx, "m1", "")
			So(errors.Is(err, service.ErrInvalidTeam), ShouldBeTrue)
		})

		Convey("Then the roster is served", func() {
			info, err := svc.Roster(ctx, "m1")
			So(err, ShouldBeNil)
			So(info.TeamA.Name, ShouldEqual, "Knights")

			_, err = svc.Roster(ctx, "m404")
			So(errors.Is(err, directory.ErrMatchNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a match the directory does not know", t, func() {
		svc := startService(t, &capture{})
		ctx := context.Background()

		Convey("When teams bat in turn", func() {
			first, err := svc.SetBattingTeam(ctx, "friendly", "reds")
			So(err, ShouldBeNil)
			second, err := svc.SetBattingTeam(ctx, "friendly", "blues")
			So(err, ShouldBeNil)
			_, third := svc.SetBattingTeam(ctx, "friendly", "greens")

			Convey("Then the first is team A, the second team B and a third is refused", func() {
				So(first.Score.TeamAID, ShouldEqual, "reds")
				So(second.Score.TeamBID, ShouldEqual, "blues")
				So(second.Score.BattingIsTeamB(), ShouldBeTrue)
				So(errors.Is(third, service.ErrInvalidTeam), ShouldBeTrue)
			})
		})
	})
}

func TestService_SetPlayer(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(t, &capture{})
		ctx := context.Background()

		Convey("When the slot is unknown", func() {
			_, err := svc.SetPlayer(ctx, "m1", "wicketkeeper", model.Player{ID: "p1"})
			So(errors.Is(err, scoring.ErrInvalidSlot), ShouldBeTrue)
		})

		Convey("When the player has no id", func() {
			_, err := svc.SetPlayer(ctx, "m1", "striker", model.Player{})
			So(errors.Is(err, scoring.ErrInvalidPlayer), ShouldBeTrue)
		})

		Convey("When a player from the roster is sent by id", func() {
			res, err := svc.SetPlayer(ctx, "m1", "bowler", model.Player{ID: "p11"})

			Convey("Then the name comes from the roster", func() {
				So(err, ShouldBeNil)
				So(res.Score.CurrentBowler.Name, ShouldEqual, "Chahar")
			})
		})
	})
}

func TestService_Broadcast(t *testing.T) {
	Convey("Given a publisher that fails", t, func() {
		pub := &capture{err: errors.New("viewer gone")}
		svc := startService(t, pub, service.WithBroadcastTimeout(time.Second))
		ctx := context.Background()
		ready(svc, "m1")

		Convey("When a ball is recorded", func() {
			res, err := svc.RecordBall(ctx, "m1", model.BallEvent{RunsOffBat: 1})

			Convey("Then the saved score stands", func() {
				So(err, ShouldBeNil)
				So(res.Applied, ShouldBeTrue)
				stored, _ := svc.Score(ctx, "m1")
				So(stored.TeamA.Runs, ShouldEqual, 1)
			})
		})

		Convey("Then every change was offered in order", func() {
			So(pub.ops(), ShouldResemble, []types.Op{
				types.OpSetBattingTeam, types.OpSetPlayer, types.OpSetPlayer, types.OpSetPlayer,
			})
		})
	})
}

func TestService_Concurrency(t *testing.T) {
	Convey("Given many matches scored at once", t, func() {
		svc := startService(t, &capture{}, service.WithWorkerCount(4))
		ctx := context.Background()
		const matches, balls = 10, 12

		var wg sync.WaitGroup
		errs := make(chan error, matches*balls)
		for m := 0; m < matches; m++ {
			id := fmt.Sprintf("match-%d", m)
			_, err := svc.SetBattingTeam(ctx, id, "home")
			So(err, ShouldBeNil)
			_, _ = svc.SetPlayer(ctx, id, "striker", model.Player{ID: "a"})
			_, _ = svc.SetPlayer(ctx, id, "non_striker", model.Player{ID: "b"})
			_, _ = svc.SetPlayer(ctx, id, "bowler", model.Player{ID: "c"})

			wg.Add(1)
			go func() {
				defer wg.Done()
				for b := 0; b < balls; b++ {
					// A wide never needs a new bowler mid-test.
					if _, err := svc.RecordBall(ctx, id, model.BallEvent{IsWide: true}); err != nil {
						errs <- err
					}
				}
			}()
		}
		wg.Wait()
		close(errs)

		Convey("Then every ball of every match is counted exactly once", func() {
			for err := range errs {
				So(err, ShouldBeNil)
			}
			for m := 0; m < matches; m++ {
				score, err := svc.Score(ctx, fmt.Sprintf("match-%d", m))
				So(err, ShouldBeNil)
				So(score.TeamA.Runs, ShouldEqual, balls)
				So(len(score.BallByBall), ShouldEqual, balls)
			}
			So(svc.GetStats().Matches, ShouldEqual, matches)
		})
	})
}

func TestService_DuplicatesAcrossInstances(t *testing.T) {
	Convey("Given two services sharing one store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		a := startService(t, &capture{}, service.WithStore(store, repository.BackendMemory))
		b := startService(t, &capture{}, service.WithStore(store, repository.BackendMemory))
		ready(a, "m1")
		four := model.BallEvent{EventID: "ball-1", RunsOffBat: 4}

		first, err := a.RecordBall(ctx, "m1", four)
		So(err, ShouldBeNil)
		So(first.Applied, ShouldBeTrue)

		Convey("When the retry lands on the other instance", func() {
			again, err := b.RecordBall(ctx, "m1", four)

			Convey("Then it is a duplicate and the total is unchanged", func() {
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				So(again.Applied, ShouldBeFalse)
				So(again.Score.TeamA.Runs, ShouldEqual, 4)
				So(len(again.Score.BallByBall), ShouldEqual, 1)
			})
		})

		Convey("When the other instance undoes the ball and it is resent to the first", func() {
			undone, err := b.Undo(ctx, "m1")
			So(err, ShouldBeNil)
			So(undone.Applied, ShouldBeTrue)

			again, err := a.RecordBall(ctx, "m1", four)

			Convey("Then it is applied again", func() {
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeFalse)
				So(again.Score.TeamA.Runs, ShouldEqual, 4)
				So(len(again.Score.BallByBall), ShouldEqual, 1)
			})
		})

		Convey("When the first instance restarts", func() {
			So(a.Stop(ctx), ShouldBeNil)
			restarted := startService(t, &capture{}, service.WithStore(store, repository.BackendMemory))

			again, err := restarted.RecordBall(ctx, "m1", four)

			Convey("Then the retry is still a duplicate", func() {
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				So(again.Score.TeamA.Runs, ShouldEqual, 4)
			})
		})
	})
}

func TestService_BroadcastPayload(t *testing.T) {
	Convey("Given a match with balls behind it", t, func() {
		pub := &capture{}
		svc := startService(t, pub)
		ctx := context.Background()
		ready(svc, "m1")
		for i := 0; i < 3; i++ {
			_, err := svc.RecordBall(ctx, "m1", model.BallEvent{RunsOffBat: 1})
			So(err, ShouldBeNil)
		}

		Convey("Then the stored score keeps its undo history", func() {
			stored, err := svc.Score(ctx, "m1")
			So(err, ShouldBeNil)
			So(len(stored.History), ShouldBeGreaterThan, 0)
		})

		Convey("Then broadcast updates carry no history", func() {
			pub.mu.Lock()
			defer pub.mu.Unlock()
			So(len(pub.updates), ShouldBeGreaterThan, 0)
			for _, u := range pub.updates {
				So(u.Score.History, ShouldBeNil)
			}
			last := pub.updates[len(pub.updates)-1]
			So(len(last.Score.BallByBall), ShouldEqual, 3)
		})
	})
}

// warnLog keeps the messages logged at warn level.
type warnLog struct {
	mu   sync.Mutex
	msgs []string
}

func (w *warnLog) Info(context.Context, string, ...logger.Field)  {}
func (w *warnLog) Error(context.Context, string, ...logger.Field) {}
func (w *warnLog) Debug(context.Context, string, ...logger.Field) {}
func (w *warnLog) Fatal(context.Context, string, ...logger.Field) {}
func (w *warnLog) Named(string) logger.Logger                     { return w }

func (w *warnLog) Warn(_ context.Context, msg string, _ ...logger.Field) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msg)
}

func (w *warnLog) messages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.msgs...)
}

type brokenDirectory struct{}

func (brokenDirectory) Match(context.Context, string) (model.MatchInfo, error) {
	return model.MatchInfo{}, errors.New("roster backend unreachable")
}

func TestService_DirectoryFailures(t *testing.T) {
	Convey("Given a service whose directory is failing", t, func() {
		log := &warnLog{}
		svc := startService(t, &capture{},
			service.WithDirectory(brokenDirectory{}),
			service.WithLogger(log),
		)
		ctx := context.Background()

		Convey("When an innings is started", func() {
			res, err := svc.SetBattingTeam(ctx, "m9", "home")

			Convey("Then scoring continues and the failure is logged", func() {
				So(err, ShouldBeNil)
				So(res.Applied, ShouldBeTrue)
				So(res.Score.TeamAID, ShouldEqual, "home")
				So(log.messages(), ShouldContain, "directory lookup failed")
			})
		})
	})

	Convey("Given a service whose directory does not know the match", t, func() {
		log := &warnLog{}
		svc := startService(t, &capture{}, service.WithLogger(log))

		Convey("When an innings is started", func() {
			_, err := svc.SetBattingTeam(context.Background(), "unknown", "home")

			Convey("Then nothing is logged", func() {
				So(err, ShouldBeNil)
				So(log.messages(), ShouldNotContain, "directory lookup failed")
			})
		})
	})
}
