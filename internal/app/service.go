// Package service runs scoring operations: it serialises them per match,
// applies them with the state machine, persists the result and broadcasts
// it to viewers.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/okian/crease/internal/adapters/broadcast"
	"github.com/okian/crease/internal/adapters/directory"
	workerpool "github.com/okian/crease/internal/adapters/mq/worker"
	"github.com/okian/crease/internal/adapters/repository"
	"github.com/okian/crease/internal/domain/dedupe"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/overs"
	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/internal/domain/types"
	"github.com/okian/crease/pkg/logger"
	"github.com/okian/crease/pkg/metrics"
)

const (
	defaultQueueSize        = 1024
	defaultDedupeSize       = 50_000
	defaultBroadcastTimeout = 2 * time.Second
)

// Service implements the scoring operations behind the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	directory directory.Directory
	publisher broadcast.Publisher
	deduper   dedupe.Deduper
	machine   *scoring.Machine
	pool      *workerpool.Pool

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	historyDepth     int
	rules            scoring.Rules
	storeBackend     string
	broadcastTimeout time.Duration
	subscribers      func() int
	now              func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a Service. Missing dependencies get in-process defaults
// when the service starts.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        defaultQueueSize,
		dedupeSize:       defaultDedupeSize,
		historyDepth:     scoring.DefaultHistoryDepth,
		rules:            scoring.DefaultRules(),
		broadcastTimeout: defaultBroadcastTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.storeBackend = repository.BackendMemory
	}
	if s.directory == nil {
		empty, err := directory.New()
		if err != nil {
			return err
		}
		s.directory = empty
	}
	if s.publisher == nil {
		s.publisher = broadcast.Nop
	}

	s.machine = scoring.NewMachine(
		scoring.WithRules(s.rules),
		scoring.WithHistoryDepth(s.historyDepth),
		scoring.WithClock(s.now),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.pool = workerpool.NewPool(s.workerCount, s,
		workerpool.WithQueueCapacity(s.queueSize),
		workerpool.WithPoolLogger(s.logger.Named("workers")),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("historyDepth", s.historyDepth),
		logger.String("store", s.storeBackend),
	)
	return nil
}

// Stop drains the workers and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping scoring service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
	return errors.Join(errs...)
}

func (s *Service) running() (*workerpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.pool, nil
}

func (s *Service) submit(ctx context.Context, cmd model.Command) (model.CommandResult, error) { //nolint:gocritic // hugeParam: commands travel by value
	if strings.TrimSpace(cmd.MatchID) == "" {
		return model.CommandResult{}, ErrInvalidMatch
	}
	pool, err := s.running()
	if err != nil {
		return model.CommandResult{}, err
	}
	res, err := pool.Submit(ctx, cmd)
	if err != nil {
		metrics.RecordRejection("unavailable")
		return model.CommandResult{}, err
	}
	return res, res.Err
}

// Score returns the stored score of a match; a match never scored yields
// a zeroed score.
func (s *Service) Score(ctx context.Context, matchID string) (model.MatchScore, error) {
	if strings.TrimSpace(matchID) == "" {
		return model.MatchScore{}, ErrInvalidMatch
	}
	if _, err := s.running(); err != nil {
		return model.MatchScore{}, err
	}
	return s.store.Load(ctx, matchID)
}

// Summary returns the scoreboard line of a match.
func (s *Service) Summary(ctx context.Context, matchID string) (scoring.Summary, error) {
	score, err := s.Score(ctx, matchID)
	if err != nil {
		return scoring.Summary{}, err
	}
	return scoring.Summarize(score), nil
}

// Roster returns the directory entry of a match.
func (s *Service) Roster(ctx context.Context, matchID string) (model.MatchInfo, error) {
	if _, err := s.running(); err != nil {
		return model.MatchInfo{}, err
	}
	return s.directory.Match(ctx, matchID)
}

// RecordBall scores one delivery. A ball whose EventID was already applied
// returns the current score with Duplicate set.
func (s *Service) RecordBall(ctx context.Context, matchID string, ev model.BallEvent) (model.CommandResult, error) {
	if err := ev.Validate(); err != nil {
		metrics.RecordRejection("invalid_ball")
		return model.CommandResult{}, err
	}
	return s.submit(ctx, model.Command{MatchID: matchID, Op: types.OpRecordBall, Ball: ev})
}

// Undo reverts the most recent ball. Applied is false when there was
// nothing to undo.
func (s *Service) Undo(ctx context.Context, matchID string) (model.CommandResult, error) {
	return s.submit(ctx, model.Command{MatchID: matchID, Op: types.OpUndo})
}

// SetPlayer assigns a player to a slot. A player without a name takes it
// from the match roster when one is known.
func (s *Service) SetPlayer(ctx context.Context, matchID, slot string, p model.Player) (model.CommandResult, error) {
	if _, err := scoring.ParseSlot(slot); err != nil {
		return model.CommandResult{}, err
	}
	return s.submit(ctx, model.Command{MatchID: matchID, Op: types.OpSetPlayer, Slot: slot, Player: p})
}

// SetBattingTeam starts the innings of teamID.
func (s *Service) SetBattingTeam(ctx context.Context, matchID, teamID string) (model.CommandResult, error) {
	if strings.TrimSpace(teamID) == "" {
		return model.CommandResult{}, fmt.Errorf("%w: team id is required", ErrInvalidTeam)
	}
	return s.submit(ctx, model.Command{MatchID: matchID, Op: types.OpSetBattingTeam, TeamID: teamID})
}

// Handle applies one command. It implements worker.Handler and runs on the
// worker that owns the command's match.
func (s *Service) Handle(ctx context.Context, cmd model.Command) model.CommandResult { //nolint:gocritic // hugeParam: commands travel by value
	start := time.Now()
	defer func() {
		metrics.RecordCommandLatency(string(cmd.Op), float64(time.Since(start).Microseconds())/1000)
	}()

	state, err := s.store.Load(ctx, cmd.MatchID)
	if err != nil {
		metrics.RecordErrorByComponent("service", "load")
		return model.CommandResult{Err: fmt.Errorf("load score %s: %w", cmd.MatchID, err)}
	}
	if state.Version == 0 {
		s.stampTeams(ctx, &state)
	}

	var (
		next    model.MatchScore
		ball    *model.BallRecord
		seenKey string
	)
	switch cmd.Op {
	case types.OpRecordBall:
		if cmd.Ball.EventID != "" {
			seenKey = dedupe.BallKey(cmd.MatchID, cmd.Ball.EventID)
			if s.duplicate(ctx, &state, seenKey, cmd.Ball.EventID) {
				metrics.RecordDuplicateBall()
				return model.CommandResult{Score: state, Duplicate: true}
			}
		}
		next, err = s.machine.RecordBall(state, cmd.Ball)
		if err != nil {
			s.forget(ctx, seenKey)
			s.reject(err)
			return model.CommandResult{Score: state, Err: err}
		}
		ball = &next.BallByBall[len(next.BallByBall)-1]

	case types.OpUndo:
		var applied bool
		next, applied = s.machine.Undo(state)
		metrics.RecordUndo(applied)
		if !applied {
			return model.CommandResult{Score: state}
		}

	case types.OpSetPlayer:
		slot, perr := scoring.ParseSlot(cmd.Slot)
		if perr != nil {
			return model.CommandResult{Score: state, Err: perr}
		}
		next, err = s.machine.SetPlayer(state, slot, s.resolvePlayer(ctx, cmd.MatchID, cmd.Player))
		if err != nil {
			s.reject(err)
			return model.CommandResult{Score: state, Err: err}
		}

	case types.OpSetBattingTeam:
		if err := s.assignTeam(&state, cmd.TeamID); err != nil {
			return model.CommandResult{Score: state, Err: err}
		}
		next = s.machine.SetBattingTeam(state, cmd.TeamID)

	default:
		return model.CommandResult{Score: state, Err: fmt.Errorf("unknown op %q", cmd.Op)}
	}

	saved, err := s.store.Save(ctx, next)
	if err != nil {
		s.forget(ctx, seenKey)
		s.reject(err)
		return model.CommandResult{Score: state, Err: err}
	}
	if cmd.Op == types.OpUndo {
		if n := len(state.BallByBall); n > 0 {
			if id := state.BallByBall[n-1].Ball.EventID; id != "" {
				s.forget(ctx, dedupe.BallKey(cmd.MatchID, id))
			}
		}
	}

	s.observe(cmd, saved)
	s.broadcast(ctx, model.ScoreUpdate{
		MatchID: saved.MatchID,
		Op:      cmd.Op,
		Version: saved.Version,
		Score:   saved.Snapshot(),
		Ball:    ball,
	})
	return model.CommandResult{Score: saved, Applied: true}
}

// stampTeams fills the team ids of a fresh score from the directory.
func (s *Service) stampTeams(ctx context.Context, state *model.MatchScore) {
	info, ok := s.lookup(ctx, state.MatchID)
	if !ok {
		return
	}
	if state.TeamAID == "" {
		state.TeamAID = info.TeamA.ID
	}
	if state.TeamBID == "" {
		state.TeamBID = info.TeamB.ID
	}
}

// assignTeam checks teamID against the match's sides. Without a directory
// entry the first team to bat becomes team A and the next one team B.
func (s *Service) assignTeam(state *model.MatchScore, teamID string) error {
	switch {
	case teamID == state.TeamAID || teamID == state.TeamBID:
		return nil
	case state.TeamAID == "":
		state.TeamAID = teamID
		return nil
	case state.TeamBID == "":
		state.TeamBID = teamID
		return nil
	}
	return fmt.Errorf("%w: %s does not play in %s", ErrInvalidTeam, teamID, state.MatchID)
}

func (s *Service) resolvePlayer(ctx context.Context, matchID string, p model.Player) model.Player {
	if p.Name != "" {
		return p
	}
	info, ok := s.lookup(ctx, matchID)
	if !ok {
		return p
	}
	if known, ok := info.Player(p.ID); ok {
		p.Name = known.Name
		if p.Role == "" {
			p.Role = known.Role
		}
	}
	return p
}

// duplicate reports whether the ball was already applied to state. The
// stored ball log decides, so retries are caught across restarts and across
// instances sharing a store. The key is recorded locally either way and
// forgotten again if the ball is rejected, fails to save or is undone.
func (s *Service) duplicate(ctx context.Context, state *model.MatchScore, key, eventID string) bool {
	// A local hit is not enough: another instance may have undone the ball.
	s.deduper.SeenAndRecord(ctx, key)
	return state.HasBall(eventID)
}

// lookup reads the directory entry of a match. Matches unknown to the
// directory are normal; any other failure is logged.
func (s *Service) lookup(ctx context.Context, matchID string) (model.MatchInfo, bool) {
	info, err := s.directory.Match(ctx, matchID)
	if err == nil {
		return info, true
	}
	if !errors.Is(err, directory.ErrMatchNotFound) {
		metrics.RecordErrorByComponent("service", "directory")
		s.logger.Warn(ctx, "directory lookup failed",
			logger.String("match_id", matchID),
			logger.Error(err),
		)
	}
	return model.MatchInfo{}, false
}

func (s *Service) forget(ctx context.Context, key string) {
	if key != "" {
		s.deduper.Unrecord(ctx, key)
	}
}

func (s *Service) reject(err error) {
	switch {
	case errors.Is(err, model.ErrInvalidBall):
		metrics.RecordRejection("invalid_ball")
	case errors.Is(err, scoring.ErrInvalidState):
		metrics.RecordRejection("invalid_state")
	case errors.Is(err, scoring.ErrInvalidPlayer), errors.Is(err, scoring.ErrInvalidSlot):
		metrics.RecordRejection("invalid_player")
	case errors.Is(err, repository.ErrVersionConflict):
		metrics.RecordRejection("version_conflict")
	default:
		metrics.RecordRejection("internal")
		metrics.RecordErrorByComponent("service", "save")
	}
}

func (s *Service) observe(cmd model.Command, saved model.MatchScore) { //nolint:gocritic // hugeParam: commands travel by value
	switch cmd.Op {
	case types.OpRecordBall:
		metrics.RecordBall(cmd.Ball.Kind())
		if cmd.Ball.IsWicket {
			metrics.RecordWicket(string(cmd.Ball.DismissalType))
		}
		if cmd.Ball.IsLegal() && overs.IsOverBoundary(saved.Batting().Overs) {
			metrics.RecordOverCompleted()
		}
	case types.OpSetPlayer:
		metrics.RecordPlayerChange(cmd.Slot)
	case types.OpSetBattingTeam:
		metrics.RecordInningsStarted()
	}
}

// broadcast delivers an accepted update. It runs on the match's worker so
// viewers see one match's updates in version order; failures are logged and
// never undo the saved state.
func (s *Service) broadcast(ctx context.Context, update model.ScoreUpdate) { //nolint:gocritic // hugeParam: updates travel by value
	bctx, cancel := context.WithTimeout(ctx, s.broadcastTimeout)
	defer cancel()
	if err := s.publisher.Publish(bctx, update); err != nil {
		s.logger.Warn(ctx, "broadcast failed",
			logger.String("match_id", update.MatchID),
			logger.Uint64("version", update.Version),
			logger.Error(err),
		)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		Started:      s.started,
		WorkerCount:  s.workerCount,
		QueueSize:    s.queueSize,
		DedupeSize:   s.Size(),
		StoreBackend: s.storeBackend,
	}
	if s.started {
		stats.QueueLength = s.pool.Len()
		stats.Matches = s.store.Count(context.Background())
		metrics.UpdateActiveMatches(stats.Matches)
	}
	if s.subscribers != nil {
		stats.Subscribers = s.subscribers()
	}
	return stats
}

// Size returns the current number of remembered ball event ids.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
