package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/crease/internal/adapters/mq/queue"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/logger"
	"github.com/okian/crease/pkg/metrics"
)

const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Handler applies one command. It runs on the worker owning the command's
// match, so calls for the same match never overlap.
type Handler interface {
	Handle(ctx context.Context, cmd model.Command) model.CommandResult
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd model.Command) model.CommandResult

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, cmd model.Command) model.CommandResult {
	return f(ctx, cmd)
}

// Queue defines how workers receive commands.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Command
}

// Worker consumes a queue until it is closed or stopped.
type Worker interface {
	// Run consumes commands until the queue is closed and drained or the
	// worker is shut down. Cancelling ctx does not stop it.
	Run(ctx context.Context)

	// Shutdown stops the loop after the command in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string
	busy    *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading q.
func NewInMemoryWorker(q Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  h,
		name:     "worker",
		busy:     new(atomic.Int64),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run implements Worker. Commands already accepted by the queue are handled
// even after ctx is cancelled, with a context that keeps ctx's values.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ctx = context.WithoutCancel(ctx)
	commands := w.queue.Dequeue(ctx)
	for {
		select {
		case <-w.shutdown:
			return
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.process(ctx, cmd)
		}
	}
}

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, cmd model.Command) { //nolint:gocritic // hugeParam: commands travel by value
	start := time.Now()
	w.busy.Add(1)
	defer func() {
		w.busy.Add(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
		if !cmd.EnqueuedAt.IsZero() {
			metrics.RecordQueueProcessingLatency(float64(time.Since(cmd.EnqueuedAt).Microseconds()) / 1000)
		}
	}()

	res := w.handle(ctx, cmd)
	if res.Err != nil {
		metrics.RecordWorkerError()
		w.logger.Debug(ctx, "command failed",
			logger.String("match_id", cmd.MatchID),
			logger.String("op", string(cmd.Op)),
			logger.Error(res.Err),
		)
	}
	if cmd.Reply != nil {
		select {
		case cmd.Reply <- res:
		default:
			w.logger.Warn(ctx, "reply channel full, result dropped",
				logger.String("match_id", cmd.MatchID),
				logger.String("op", string(cmd.Op)),
			)
		}
	}
}

func (w *InMemoryWorker) handle(ctx context.Context, cmd model.Command) (res model.CommandResult) { //nolint:gocritic // hugeParam: commands travel by value
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			metrics.RecordErrorByType("panic", "critical")
			w.logger.Error(ctx, "command handler panicked",
				logger.String("match_id", cmd.MatchID),
				logger.Any("panic", r),
			)
			res = model.CommandResult{Err: fmt.Errorf("%s %s: handler panic: %v", cmd.Op, cmd.MatchID, r)}
		}
	}()
	return w.handler.Handle(ctx, cmd)
}

// Pool routes commands to workers by match id. Every worker owns its own
// queue, so one match is always served by the same goroutine.
type Pool struct {
	workers       []*InMemoryWorker
	queues        []*queue.InMemoryQueue
	queueCapacity int
	busy          atomic.Int64

	stopped   chan struct{}
	stopOnce  sync.Once
	started   atomic.Bool
	metricsWG sync.WaitGroup

	logger logger.Logger
}

// NewPool creates workerCount workers running h. A count below 1 means one
// worker per CPU.
func NewPool(workerCount int, h Handler, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queues:  make([]*queue.InMemoryQueue, workerCount),
		stopped: make(chan struct{}),
		logger:  logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workerCount; i++ {
		name := "worker-" + strconv.Itoa(i)
		qopts := []queue.Option{queue.WithName(name)}
		if p.queueCapacity > 0 {
			qopts = append(qopts, queue.WithCapacity(p.queueCapacity))
		}
		p.queues[i] = queue.NewInMemoryQueue(qopts...)
		p.workers[i] = NewInMemoryWorker(p.queues[i], h, WithName(name), WithLogger(p.logger))
		p.workers[i].busy = &p.busy
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateQueueCapacity(p.Capacity())
	return p
}

// Start launches the workers and the metrics updater.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.metricsWG.Add(1)
	go p.startMetricsUpdater(ctx)
}

// Started reports whether Start was called.
func (p *Pool) Started() bool {
	return p.started.Load()
}

// Submit queues cmd on its match's worker and waits for the result.
// A full queue is ErrBackpressure and a stopped pool ErrStopped. Cancelling
// ctx abandons the wait; the queued command still runs.
func (p *Pool) Submit(ctx context.Context, cmd model.Command) (model.CommandResult, error) { //nolint:gocritic // hugeParam: commands travel by value
	select {
	case <-p.stopped:
		return model.CommandResult{}, queue.ErrStopped
	default:
	}

	reply := make(chan model.CommandResult, 1)
	cmd.Reply = reply
	q := p.queues[p.index(cmd.MatchID)]
	if !q.Enqueue(ctx, cmd) {
		if q.IsClosed() {
			return model.CommandResult{}, queue.ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{}, fmt.Errorf("%w: %s", queue.ErrBackpressure, q.Name())
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return model.CommandResult{}, ctx.Err()
	case <-p.stopped:
		// The worker may have answered just before stopping.
		select {
		case res := <-reply:
			return res, nil
		default:
			return model.CommandResult{}, queue.ErrStopped
		}
	}
}

// index maps a match to its worker.
func (p *Pool) index(matchID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(matchID))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return len(p.workers)
}

// Len returns the number of commands waiting across all queues.
func (p *Pool) Len() int {
	n := 0
	for _, q := range p.queues {
		n += q.Len(context.Background())
	}
	return n
}

// Capacity returns the combined queue capacity.
func (p *Pool) Capacity() int {
	n := 0
	for _, q := range p.queues {
		n += q.Cap()
	}
	return n
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	defer p.metricsWG.Done()
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	size, capacity := p.Len(), p.Capacity()
	metrics.UpdateQueueSize(size)
	if capacity > 0 {
		metrics.UpdateQueueUtilization(float64(size) / float64(capacity))
	}
	active := int(p.busy.Load())
	metrics.UpdateWorkerActiveCount(active)
	metrics.UpdateWorkerIdleCount(len(p.workers) - active)
}

// Shutdown closes the queues, lets the workers drain what was accepted and
// waits for them, bounded by ctx and an internal timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	first := false
	p.stopOnce.Do(func() { first = true })
	if !first {
		return nil
	}

	for _, q := range p.queues {
		if err := q.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	if p.started.Load() {
		for i, w := range p.workers {
			select {
			case <-w.done:
			case <-shutdownCtx.Done():
				timedOut = true
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			}
		}
	}
	close(p.stopped)
	p.metricsWG.Wait()

	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
