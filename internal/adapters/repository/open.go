package repository

import (
	"context"
	"fmt"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	ShardCount  int
	SQLitePath  string
	PostgresDSN string
	RedisAddr   string
}

// Open builds the Store named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(ctx, WithShardCount(cfg.ShardCount)), nil
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN)
	case BackendRedis:
		rdb, err := ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(rdb), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
