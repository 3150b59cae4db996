// Package config defines the service configuration and how it is loaded.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store backends accepted by StoreBackend.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogBackend selects slog text output or zap JSON output.
	LogBackend string `koanf:"log_backend"`

	// Env is attached to zap log lines, e.g. "dev" or "prod".
	Env string `koanf:"env"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds each worker's command queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of match workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps the number of remembered ball event ids.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the lock shards of the memory store.
	ShardCount int `koanf:"shard_count"`

	// HistoryDepth bounds the undo stack per match.
	HistoryDepth int `koanf:"history_depth"`

	// Scoring rules.
	NoBallCountsAsBallFaced        bool `koanf:"no_ball_counts_as_ball_faced"`
	WideOddRunsRotateStrike        bool `koanf:"wide_odd_runs_rotate_strike"`
	CompletingBallVisibleInOldOver bool `koanf:"completing_ball_visible_in_old_over"`
	AllOutGuard                    bool `koanf:"all_out_guard"`

	// StoreBackend is one of memory, sqlite, postgres, redis.
	StoreBackend string `koanf:"store_backend"`
	SQLitePath   string `koanf:"sqlite_path"`
	PostgresDSN  string `koanf:"postgres_dsn"`

	// RedisAddr enables the redis store and cross-instance broadcast.
	RedisAddr    string `koanf:"redis_addr"`
	RedisChannel string `koanf:"redis_channel"`

	// KafkaBrokers is a comma separated broker list; empty disables the
	// ball-by-ball log.
	KafkaBrokers string `koanf:"kafka_brokers"`
	KafkaTopic   string `koanf:"kafka_topic"`

	// RosterFile is the YAML match directory.
	RosterFile string `koanf:"roster_file"`

	// BroadcastTimeoutMS bounds the delivery of one update.
	BroadcastTimeoutMS int `koanf:"broadcast_timeout_ms"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogBackend:              "slog",
		Env:                     "dev",
		Addr:                    ":9080",
		QueueSize:               1024,
		WorkerCount:             runtime.NumCPU(),
		DedupeSize:              50_000,
		ShardCount:              16,
		HistoryDepth:            20,
		WideOddRunsRotateStrike: true,
		AllOutGuard:             true,
		StoreBackend:            StoreMemory,
		SQLitePath:              "crease.db",
		RedisChannel:            "crease:score_updates",
		KafkaTopic:              "crease.balls",
		BroadcastTimeoutMS:      2000,
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.HistoryDepth < 1 {
		return fmt.Errorf("%w: history_depth must be positive", ErrInvalidConfig)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	switch c.LogBackend {
	case "", "slog", "zap":
	default:
		return fmt.Errorf("%w: unknown log_backend %q", ErrInvalidConfig, c.LogBackend)
	}
	switch c.StoreBackend {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite store", ErrInvalidConfig)
		}
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres store", ErrInvalidConfig)
		}
	case StoreRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	return nil
}

// KafkaBrokerList splits KafkaBrokers.
func (c *Config) KafkaBrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// BroadcastTimeout returns BroadcastTimeoutMS as a duration.
func (c *Config) BroadcastTimeout() time.Duration {
	if c.BroadcastTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.BroadcastTimeoutMS) * time.Millisecond
}
