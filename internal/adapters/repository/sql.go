package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/crease/internal/domain/model"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name string
	bind func(n int) string
}

var (
	sqliteDialect   = dialect{name: BackendSQLite, bind: func(int) string { return "?" }}
	postgresDialect = dialect{name: BackendPostgres, bind: func(n int) string { return "$" + strconv.Itoa(n) }}
)

// sqlStore implements Store on database/sql. Optimistic concurrency is a
// conditional write: an insert that must not collide for version 0 and an
// update guarded by the expected version otherwise.
type sqlStore struct {
	db  *sql.DB
	d   dialect
	now func() time.Time

	loadQuery   string
	insertQuery string
	updateQuery string
	countQuery  string
}

func newSQLStore(db *sql.DB, d dialect) *sqlStore {
	b := d.bind
	return &sqlStore{
		db:        db,
		d:         d,
		now:       time.Now,
		loadQuery: fmt.Sprintf("SELECT version, payload FROM match_scores WHERE match_id = %s", b(1)),
		insertQuery: fmt.Sprintf(
			"INSERT INTO match_scores (match_id, score_id, version, payload, updated_at) VALUES (%s, %s, %s, %s, %s) ON CONFLICT (match_id) DO NOTHING",
			b(1), b(2), b(3), b(4), b(5)),
		updateQuery: fmt.Sprintf(
			"UPDATE match_scores SET version = %s, payload = %s, updated_at = %s WHERE match_id = %s AND version = %s",
			b(1), b(2), b(3), b(4), b(5)),
		countQuery: "SELECT COUNT(*) FROM match_scores",
	}
}

func (s *sqlStore) Load(ctx context.Context, matchID string) (model.MatchScore, error) {
	defer observe(s.d.name, "load", time.Now())
	if err := checkMatchID(matchID); err != nil {
		return model.MatchScore{}, err
	}

	var (
		version int64
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, s.loadQuery, matchID).Scan(&version, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return NewScore(matchID, s.now()), nil
	}
	if err != nil {
		return model.MatchScore{}, fmt.Errorf("load score %s: %w", matchID, err)
	}
	return decodeScore(payload, uint64(version))
}

func (s *sqlStore) Save(ctx context.Context, score model.MatchScore) (model.MatchScore, error) {
	defer observe(s.d.name, "save", time.Now())
	if err := checkMatchID(score.MatchID); err != nil {
		return model.MatchScore{}, err
	}

	expected := score.Version
	next := score
	next.Version = expected + 1
	if next.ID == "" {
		next.ID = ScoreID(score.MatchID)
	}
	payload, err := encodeScore(next)
	if err != nil {
		return model.MatchScore{}, err
	}
	updatedAt := toMillis(next.UpdatedAt)

	var res sql.Result
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, s.insertQuery, next.MatchID, next.ID, int64(next.Version), string(payload), updatedAt)
	} else {
		res, err = s.db.ExecContext(ctx, s.updateQuery, int64(next.Version), string(payload), updatedAt, next.MatchID, int64(expected))
	}
	if err != nil {
		return model.MatchScore{}, fmt.Errorf("save score %s: %w", score.MatchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.MatchScore{}, fmt.Errorf("save score %s: %w", score.MatchID, err)
	}
	if n == 0 {
		return model.MatchScore{}, conflict(s.d.name)
	}
	return next.Clone(), nil
}

func (s *sqlStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, s.countQuery).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UTC().UnixMilli()
	}
	return t.UTC().UnixMilli()
}
