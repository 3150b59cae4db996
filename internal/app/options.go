package service

import (
	"time"

	"github.com/okian/crease/internal/adapters/broadcast"
	"github.com/okian/crease/internal/adapters/directory"
	"github.com/okian/crease/internal/adapters/repository"
	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of match workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of each worker's queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many ball event ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRules sets the scoring rules.
func WithRules(r scoring.Rules) Option {
	return func(s *Service) {
		s.rules = r
	}
}

// WithHistoryDepth bounds the undo stack.
func WithHistoryDepth(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyDepth = n
		}
	}
}

// WithStore sets the score store. The service closes it on Stop.
func WithStore(store repository.Store, backend string) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.storeBackend = backend
		}
	}
}

// WithDirectory sets the match directory.
func WithDirectory(d directory.Directory) Option {
	return func(s *Service) {
		if d != nil {
			s.directory = d
		}
	}
}

// WithPublisher sets where accepted updates are broadcast.
func WithPublisher(p broadcast.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithBroadcastTimeout bounds one broadcast.
func WithBroadcastTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.broadcastTimeout = d
		}
	}
}

// WithSubscriberCounter reports live viewers in GetStats.
func WithSubscriberCounter(fn func() int) Option {
	return func(s *Service) {
		s.subscribers = fn
	}
}

// WithClock sets the time source of the state machine.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
