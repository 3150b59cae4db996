// Package metrics provides Prometheus metrics for the crease scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer
	auto             promauto.Factory

	// Scoring
	ballsRecorded    *prometheus.CounterVec
	wickets          *prometheus.CounterVec
	oversCompleted   prometheus.Counter
	undos            *prometheus.CounterVec
	playerChanges    *prometheus.CounterVec
	inningsStarted   prometheus.Counter
	rejections       *prometheus.CounterVec
	duplicateBalls   prometheus.Counter
	commandLatency   *prometheus.HistogramVec
	activeMatches    prometheus.Gauge
	broadcasts       *prometheus.CounterVec
	broadcastErrors  *prometheus.CounterVec
	wsConnections    prometheus.Gauge
	wsSubscriptions  prometheus.Gauge
	storeLatency     *prometheus.HistogramVec
	storeConflicts   *prometheus.CounterVec
	storeShardCount  prometheus.Gauge
	storeShardRecord *prometheus.GaugeVec

	// Queue and workers
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram
	workerCount            prometheus.Gauge
	workerActiveCount      prometheus.Gauge
	workerIdleCount        prometheus.Gauge
	workerLatency          prometheus.Histogram
	workerErrors           prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level recorders

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry served on /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crease",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.auto = promauto.With(m.registry)
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return m.auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return m.auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return m.auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return m.auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return m.auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return m.auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.ballsRecorded = m.counterVec("balls_recorded_total", "Deliveries recorded by kind", "kind")
	m.wickets = m.counterVec("wickets_total", "Wickets by dismissal type", "dismissal")
	m.oversCompleted = m.counter("overs_completed_total", "Overs completed across all matches")
	m.undos = m.counterVec("undo_total", "Undo requests by result", "result")
	m.playerChanges = m.counterVec("player_changes_total", "Players assigned by slot", "slot")
	m.inningsStarted = m.counter("innings_started_total", "Batting team changes")
	m.rejections = m.counterVec("rejections_total", "Scoring commands rejected by reason", "reason")
	m.duplicateBalls = m.counter("duplicate_balls_total", "Retried balls acknowledged without re-applying")
	m.commandLatency = m.histogramVec("command_latency_milliseconds", "Load, apply and save latency per command", m.histogramBuckets, "op")
	m.activeMatches = m.gauge("matches", "Matches with a stored score")
	m.broadcasts = m.counterVec("broadcasts_total", "Score updates published by sink", "sink")
	m.broadcastErrors = m.counterVec("broadcast_errors_total", "Failed score update publishes by sink", "sink")
	m.wsConnections = m.gauge("websocket_connections", "Open viewer websocket connections")
	m.wsSubscriptions = m.gauge("websocket_subscriptions", "Match subscriptions across all viewer connections")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Score store latency", m.histogramBuckets, "backend", "op")
	m.storeConflicts = m.counterVec("store_version_conflicts_total", "Saves rejected for a stale version", "backend")
	m.storeShardCount = m.gauge("store_shard_count", "Shards in the in-memory score store")
	m.storeShardRecord = m.gaugeVec("store_records_per_shard", "Scores held per in-memory shard", "shard")

	m.queueSize = m.gauge("queue_size", "Commands waiting across all worker queues")
	m.queueCapacity = m.gauge("queue_capacity", "Total command queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size over capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Commands enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Commands dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Commands refused because a queue was full or closed")
	m.queueProcessingLatency = m.histogram("queue_wait_milliseconds", "Time a command spent queued", m.histogramBuckets)
	m.workerCount = m.gauge("worker_count", "Configured scoring workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently applying a command")
	m.workerIdleCount = m.gauge("worker_idle_count", "Workers waiting for a command")
	m.workerLatency = m.histogram("worker_processing_milliseconds", "Time a worker spent on one command", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Commands that finished with an error")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Scoring.

// RecordBall counts a recorded delivery by kind (dot, runs, wide, ...).
func RecordBall(kind string) { globalManager.ballsRecorded.WithLabelValues(kind).Inc() }

// RecordWicket counts a wicket by dismissal type.
func RecordWicket(dismissal string) { globalManager.wickets.WithLabelValues(dismissal).Inc() }

// RecordOverCompleted counts a completed over.
func RecordOverCompleted() { globalManager.oversCompleted.Inc() }

// RecordUndo counts an undo request; applied is false for an empty history.
func RecordUndo(applied bool) {
	result := "applied"
	if !applied {
		result = "empty"
	}
	globalManager.undos.WithLabelValues(result).Inc()
}

// RecordPlayerChange counts a player assignment.
func RecordPlayerChange(slot string) { globalManager.playerChanges.WithLabelValues(slot).Inc() }

// RecordInningsStarted counts a batting team change.
func RecordInningsStarted() { globalManager.inningsStarted.Inc() }

// RecordRejection counts a command refused for reason.
func RecordRejection(reason string) { globalManager.rejections.WithLabelValues(reason).Inc() }

// RecordDuplicateBall counts a retried ball that was not re-applied.
func RecordDuplicateBall() { globalManager.duplicateBalls.Inc() }

// RecordCommandLatency observes the end-to-end latency of one command.
func RecordCommandLatency(op string, latencyMs float64) {
	globalManager.commandLatency.WithLabelValues(op).Observe(latencyMs)
}

// UpdateActiveMatches sets the number of stored scores.
func UpdateActiveMatches(count int) { globalManager.activeMatches.Set(float64(count)) }

// Broadcast.

// RecordBroadcast counts a successful publish to sink.
func RecordBroadcast(sink string) { globalManager.broadcasts.WithLabelValues(sink).Inc() }

// RecordBroadcastError counts a failed publish to sink.
func RecordBroadcastError(sink string) { globalManager.broadcastErrors.WithLabelValues(sink).Inc() }

// UpdateWebsocketConnections sets the open viewer connection count.
func UpdateWebsocketConnections(count int) { globalManager.wsConnections.Set(float64(count)) }

// UpdateWebsocketSubscriptions sets the subscription count.
func UpdateWebsocketSubscriptions(count int) { globalManager.wsSubscriptions.Set(float64(count)) }

// Store.

// RecordStoreLatency observes one store call.
func RecordStoreLatency(backend, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordStoreConflict counts a stale save.
func RecordStoreConflict(backend string) { globalManager.storeConflicts.WithLabelValues(backend).Inc() }

// UpdateStoreShardCount sets the in-memory shard count.
func UpdateStoreShardCount(count int) { globalManager.storeShardCount.Set(float64(count)) }

// UpdateStoreRecordsPerShard sets the record count of one shard.
func UpdateStoreRecordsPerShard(shardID string, count int) {
	globalManager.storeShardRecord.WithLabelValues(shardID).Set(float64(count))
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue counts an enqueued command.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeued command.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a refused enqueue.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency observes how long a command waited in its queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Workers.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) { globalManager.workerIdleCount.Set(float64(count)) }

// RecordWorkerProcessingLatency observes one command's processing time.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError counts a command that failed.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
