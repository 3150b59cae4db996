package repository

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/metrics"
)

const defaultMetricsUpdateInterval = 10 * time.Second

type shard struct {
	mu     sync.RWMutex
	scores map[string]model.MatchScore
}

// MemoryStore keeps scores in sharded maps. Values are deep-copied in and
// out so callers never share slices with the store.
type MemoryStore struct {
	shards                []*shard
	shardCount            int
	metricsUpdateInterval time.Duration
	now                   func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryStore creates a sharded in-memory store. A background goroutine
// publishes per-shard record counts until Close or ctx is done.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		now:                   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{scores: make(map[string]model.MatchScore)}
	}
	metrics.UpdateStoreShardCount(s.shardCount)

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) shardFor(matchID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(matchID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, matchID string) (model.MatchScore, error) {
	defer observe(BackendMemory, "load", time.Now())
	if err := ctx.Err(); err != nil {
		return model.MatchScore{}, err
	}
	if err := checkMatchID(matchID); err != nil {
		return model.MatchScore{}, err
	}

	sh := s.shardFor(matchID)
	sh.mu.RLock()
	cur, ok := sh.scores[matchID]
	sh.mu.RUnlock()
	if !ok {
		return NewScore(matchID, s.now()), nil
	}
	return cur.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, score model.MatchScore) (model.MatchScore, error) {
	defer observe(BackendMemory, "save", time.Now())
	if err := ctx.Err(); err != nil {
		return model.MatchScore{}, err
	}
	if err := checkMatchID(score.MatchID); err != nil {
		return model.MatchScore{}, err
	}

	sh := s.shardFor(score.MatchID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var current uint64
	if cur, ok := sh.scores[score.MatchID]; ok {
		current = cur.Version
	}
	if score.Version != current {
		return model.MatchScore{}, conflict(BackendMemory)
	}

	stored := score.Clone()
	stored.Version = current + 1
	sh.scores[score.MatchID] = stored
	return stored.Clone(), nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.scores)
		sh.mu.RUnlock()
	}
	return n
}

// Close stops the metrics goroutine.
func (s *MemoryStore) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateMetrics()
		}
	}
}

func (s *MemoryStore) updateMetrics() {
	total := 0
	for i, sh := range s.shards {
		sh.mu.RLock()
		n := len(sh.scores)
		sh.mu.RUnlock()
		metrics.UpdateStoreRecordsPerShard(strconv.Itoa(i), n)
		total += n
	}
	metrics.UpdateActiveMatches(total)
}
