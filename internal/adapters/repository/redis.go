package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/crease/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "crease:score:"
	redisIndexKey  = "crease:scores"
)

func redisKey(matchID string) string { return redisKeyPrefix + matchID }

// RedisStore keeps each score in a hash {version, payload, updated_at} and
// compare-and-swaps the version under WATCH.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// ConnectRedis dials addr and verifies the connection.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisStore wraps an existing client. Close closes the client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, matchID string) (model.MatchScore, error) {
	defer observe(BackendRedis, "load", time.Now())
	if err := checkMatchID(matchID); err != nil {
		return model.MatchScore{}, err
	}
	fields, err := s.client.HGetAll(ctx, redisKey(matchID)).Result()
	if err != nil {
		return model.MatchScore{}, fmt.Errorf("load score %s: %w", matchID, err)
	}
	if len(fields) == 0 {
		return NewScore(matchID, s.now()), nil
	}
	version, err := parseVersion(fields["version"])
	if err != nil {
		return model.MatchScore{}, err
	}
	return decodeScore([]byte(fields["payload"]), version)
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, score model.MatchScore) (model.MatchScore, error) {
	defer observe(BackendRedis, "save", time.Now())
	if err := checkMatchID(score.MatchID); err != nil {
		return model.MatchScore{}, err
	}

	key := redisKey(score.MatchID)
	next := score
	next.Version = score.Version + 1
	if next.ID == "" {
		next.ID = ScoreID(score.MatchID)
	}
	payload, err := encodeScore(next)
	if err != nil {
		return model.MatchScore{}, err
	}

	stale := false
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, "version").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		current, err := parseVersion(raw)
		if err != nil {
			return err
		}
		if current != score.Version {
			stale = true
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"version", strconv.FormatUint(next.Version, 10),
				"payload", payload,
				"updated_at", toMillis(next.UpdatedAt),
			)
			pipe.SAdd(ctx, redisIndexKey, score.MatchID)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, key)
	if stale || errors.Is(err, redis.TxFailedErr) {
		return model.MatchScore{}, conflict(BackendRedis)
	}
	if err != nil {
		return model.MatchScore{}, fmt.Errorf("save score %s: %w", score.MatchID, err)
	}
	return next.Clone(), nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context) int {
	n, err := s.client.SCard(ctx, redisIndexKey).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// parseVersion reads a stored version; an absent field is version 0.
func parseVersion(raw string) (uint64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: version %q", ErrCorruptScore, raw)
	}
	return v, nil
}
