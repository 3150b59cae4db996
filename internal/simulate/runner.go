package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/overs"
	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/pkg/logger"
)

const maxPromptsPerBall = 3

// innings drives one match on the server and mirrors every accepted
// command on a local machine.
type innings struct {
	cfg     *Config
	client  *HTTPClient
	gen     *Generator
	machine *scoring.Machine
	log     logger.Logger

	matchID    string
	local      model.MatchScore
	balls      []model.BallEvent
	nextBatter int
	nextBowler int
	stats      Stats
}

// Run plays an innings against the service at cfg.BaseURL and verifies the
// server's final score against a local replay.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	applyDefaults(cfg)
	in := &innings{
		cfg:     cfg,
		client:  newHTTPClient(cfg.BaseURL, cfg.Timeout),
		gen:     NewGenerator(cfg.Seed),
		machine: scoring.NewMachine(),
		log:     logger.Get().Named("simulate"),
		matchID: cfg.MatchID,
		stats:   Stats{StartTime: time.Now()},
	}
	in.local = model.NewMatchScore("", in.matchID, time.Now())

	in.log.Info(ctx, "starting simulated innings",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("match_id", in.matchID),
		logger.Int("overs", cfg.Overs),
		logger.Uint64("seed", cfg.Seed),
	)

	if err := in.client.health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	if err := in.open(ctx); err != nil {
		return nil, err
	}
	if err := in.play(ctx); err != nil {
		return nil, err
	}

	remote, err := in.client.score(ctx, in.matchID)
	if err != nil {
		return nil, fmt.Errorf("fetch final score: %w", err)
	}
	if err := Verify(in.local, remote); err != nil {
		return nil, err
	}

	in.stats.EndTime = time.Now()
	in.stats.Duration = in.stats.EndTime.Sub(in.stats.StartTime)
	res := &Result{MatchID: in.matchID, Score: remote, Balls: in.balls, Stats: in.stats}
	if err := saveBalls(cfg.OutputFile, in.balls); err != nil {
		in.log.Warn(ctx, "failed to save ball log", logger.Error(err))
	}
	displayFinalStats(ctx, in.log, res)
	return res, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MatchID == "" {
		cfg.MatchID = "sim-" + uuid.NewString()
	}
	if cfg.TeamID == "" {
		cfg.TeamID = "home"
	}
	if cfg.Overs <= 0 {
		cfg.Overs = defaultOvers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
}

// open starts the innings with two batters and a bowler.
func (in *innings) open(ctx context.Context) error {
	if _, err := in.client.setBattingTeam(ctx, in.matchID, in.cfg.TeamID); err != nil {
		return fmt.Errorf("set batting team: %w", err)
	}
	in.local = in.machine.SetBattingTeam(in.local, in.cfg.TeamID)

	for _, slot := range []scoring.Slot{scoring.SlotStriker, scoring.SlotNonStriker, scoring.SlotBowler} {
		if err := in.fill(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}

func (in *innings) play(ctx context.Context) error {
	limit := in.cfg.Overs * ballsPerOver
	for overs.TotalLegalBalls(in.local.Batting().Overs) < limit && in.local.Batting().Wickets < maxWickets {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev := in.gen.Next(&in.local)
		if err := in.deliver(ctx, ev); err != nil {
			return err
		}
		if in.gen.Chance(in.cfg.RetryRate) {
			if err := in.resend(ctx, ev); err != nil {
				return err
			}
		}
		if in.gen.Chance(in.cfg.UndoRate) {
			if err := in.undo(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// deliver sends ev, filling any slot the server asks for and sending the
// same ball again.
func (in *innings) deliver(ctx context.Context, ev model.BallEvent) error { //nolint:gocritic // hugeParam: events travel by value
	for attempt := 0; attempt <= maxPromptsPerBall; attempt++ {
		in.stats.BallsSent++
		_, err := in.client.recordBall(ctx, in.matchID, ev)
		var apiErr *APIError
		switch {
		case err == nil:
			return in.accepted(ctx, ev)
		case errors.As(err, &apiErr) && apiErr.Code == "player_required":
			in.stats.PlayerPrompts++
			if err := in.fill(ctx, scoring.Slot(apiErr.Slot)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("record ball %d: %w", len(in.balls)+1, err)
		}
	}
	return fmt.Errorf("ball %s still blocked after %d prompts", ev.EventID, maxPromptsPerBall)
}

func (in *innings) accepted(ctx context.Context, ev model.BallEvent) error { //nolint:gocritic // hugeParam: events travel by value
	next, err := in.machine.RecordBall(in.local, ev)
	if err != nil {
		return fmt.Errorf("%w: local replay rejected a ball the server took: %w", ErrMismatch, err)
	}
	in.local = next
	in.balls = append(in.balls, ev)
	in.stats.BallsAccepted++
	if in.cfg.Verbose {
		in.log.Info(ctx, "ball",
			logger.String("tag", scoring.Tag(ev)),
			logger.Int("runs", in.local.Batting().Runs),
			logger.Int("wickets", in.local.Batting().Wickets),
			logger.String("overs", overs.Format(in.local.Batting().Overs)),
		)
	}
	if ev.IsWicket && in.local.Batting().Wickets < maxWickets {
		return in.fill(ctx, scoring.SlotIncoming)
	}
	return nil
}

func (in *innings) resend(ctx context.Context, ev model.BallEvent) error { //nolint:gocritic // hugeParam: events travel by value
	in.stats.BallsSent++
	res, err := in.client.recordBall(ctx, in.matchID, ev)
	if err != nil {
		return fmt.Errorf("resend %s: %w", ev.EventID, err)
	}
	if !res.Duplicate {
		return fmt.Errorf("%w: resent ball %s was applied again", ErrMismatch, ev.EventID)
	}
	in.stats.Duplicates++
	return nil
}

func (in *innings) undo(ctx context.Context) error {
	if len(in.local.History) == 0 {
		return nil
	}
	res, err := in.client.undo(ctx, in.matchID)
	if err != nil {
		return fmt.Errorf("undo: %w", err)
	}
	if res.Status != "applied" {
		return fmt.Errorf("%w: undo was not applied", ErrMismatch)
	}
	in.local, _ = in.machine.Undo(in.local)
	in.balls = in.balls[:len(in.balls)-1]
	in.stats.Undos++
	return nil
}

// fill puts the next player for slot in place on both sides.
func (in *innings) fill(ctx context.Context, slot scoring.Slot) error {
	var p model.Player
	switch slot {
	case scoring.SlotBowler:
		p = in.bowler()
	case scoring.SlotStriker, scoring.SlotNonStriker, scoring.SlotIncoming:
		in.nextBatter++
		p = model.Player{ID: in.cfg.TeamID + "-bat-" + strconv.Itoa(in.nextBatter), Name: "Batter " + strconv.Itoa(in.nextBatter)}
	default:
		return fmt.Errorf("server asked for unknown slot %q", slot)
	}

	if _, err := in.client.setPlayer(ctx, in.matchID, string(slot), p); err != nil {
		return fmt.Errorf("set %s: %w", slot, err)
	}
	next, err := in.machine.SetPlayer(in.local, slot, p)
	if err != nil {
		return fmt.Errorf("%w: local replay rejected %s for %s: %w", ErrMismatch, p.ID, slot, err)
	}
	in.local = next
	in.stats.PlayersChanged++
	return nil
}

// bowler rotates through the attack, never picking the bowler of the
// previous over.
func (in *innings) bowler() model.Player {
	for {
		in.nextBowler = in.nextBowler%bowlersInAttack + 1
		id := "opp-bowl-" + strconv.Itoa(in.nextBowler)
		if prev := in.local.PreviousBowler; prev == nil || prev.ID != id {
			return model.Player{ID: id, Name: "Bowler " + strconv.Itoa(in.nextBowler)}
		}
	}
}

func saveBalls(path string, balls []model.BallEvent) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	b, err := json.MarshalIndent(balls, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal balls: %w", err)
	}
	return os.WriteFile(path, append(b, '\n'), outputPermission)
}

func displayFinalStats(ctx context.Context, log logger.Logger, res *Result) {
	bat := res.Score.Batting()
	log.Info(ctx, "final statistics",
		logger.String("match_id", res.MatchID),
		logger.Int("runs", bat.Runs),
		logger.Int("wickets", bat.Wickets),
		logger.String("overs", overs.Format(bat.Overs)),
		logger.Int("ballsSent", res.Stats.BallsSent),
		logger.Int("ballsAccepted", res.Stats.BallsAccepted),
		logger.Int("duplicates", res.Stats.Duplicates),
		logger.Int("undos", res.Stats.Undos),
		logger.Int("playerPrompts", res.Stats.PlayerPrompts),
		logger.Duration("duration", res.Stats.Duration),
	)
}
