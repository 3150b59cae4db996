// Package repository persists one MatchScore per match behind a
// version-checked load/save contract.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/metrics"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Store provides read/write access to live scores.
//
// Save succeeds only when score.Version equals the stored version (0 for a
// match that was never saved) and returns the score with Version advanced
// by one. Anything else is ErrVersionConflict.
type Store interface {
	// Load returns the stored score, or a zeroed score at version 0 when the
	// match has none yet. The zeroed score is not persisted.
	Load(ctx context.Context, matchID string) (model.MatchScore, error)
	Save(ctx context.Context, score model.MatchScore) (model.MatchScore, error)

	// Count returns the number of matches with a stored score.
	Count(ctx context.Context) int

	Close() error
}

// ScoreID derives the stable score record id for a match.
func ScoreID(matchID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:crease:match:"+matchID)).String()
}

// NewScore returns the zeroed score a match starts with.
func NewScore(matchID string, now time.Time) model.MatchScore {
	return model.NewMatchScore(ScoreID(matchID), matchID, now.UTC())
}

func checkMatchID(matchID string) error {
	if strings.TrimSpace(matchID) == "" {
		return ErrInvalidMatchID
	}
	return nil
}

// observe records the latency of one store call.
func observe(backend, op string, start time.Time) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}

func conflict(backend string) error {
	metrics.RecordStoreConflict(backend)
	metrics.RecordErrorByComponent("repository", "version_conflict")
	return ErrVersionConflict
}
