// Package metrics provides Prometheus metrics for the gridrank rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ratings
	ratingUpdates     *prometheus.CounterVec
	ratingWriteErrors *prometheus.CounterVec
	ratingDeltaAbs    *prometheus.HistogramVec
	trackedEntities   *prometheus.GaugeVec

	// Orchestrator runs
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	gamesSkipped     *prometheus.CounterVec
	wpnDuration      prometheus.Histogram
	standingsLatency prometheus.Histogram

	// Store
	storeLatency *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueTotal  prometheus.Counter
	queueDequeueTotal  prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Cache
	cacheResults *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps default Go collectors out of the exposition.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gridrank",
		subsystem:        "ratings",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: buckets, ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.ratingUpdates = auto.NewCounterVec(
		m.counterOpts("updates_total", "Rating snapshots written, by entity kind"),
		[]string{"kind"},
	)
	m.ratingWriteErrors = auto.NewCounterVec(
		m.counterOpts("write_errors_total", "Rating snapshot writes rejected or failed, by entity kind"),
		[]string{"kind"},
	)
	m.ratingDeltaAbs = auto.NewHistogramVec(
		m.histogramOpts("delta_abs", "Absolute per-game rating change", []float64{0.1, 0.5, 1, 2, 4, 8, 12, 16, 20, 30}),
		[]string{"kind"},
	)
	m.trackedEntities = auto.NewGaugeVec(
		m.gaugeOpts("tracked_entities", "Entities with at least one rating snapshot"),
		[]string{"kind"},
	)

	m.runsTotal = auto.NewCounterVec(
		m.counterOpts("runs_total", "Metrics update runs by outcome"),
		[]string{"outcome"},
	)
	m.runDuration = auto.NewHistogramVec(
		m.histogramOpts("run_duration_milliseconds", "Duration of metrics update phases", nil),
		[]string{"phase"},
	)
	m.gamesSkipped = auto.NewCounterVec(
		m.counterOpts("games_skipped_total", "Games skipped during a run, by reason"),
		[]string{"reason"},
	)
	m.wpnDuration = auto.NewHistogram(
		m.histogramOpts("wpn_duration_milliseconds", "Duration of a single team wPN computation", nil),
	)
	m.standingsLatency = auto.NewHistogram(
		m.histogramOpts("standings_compile_milliseconds", "Duration of a standings compilation", nil),
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Rating store operation latency", nil),
		[]string{"op"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Tasks currently queued"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Task queue capacity"))
	m.queueEnqueueTotal = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Tasks enqueued"))
	m.queueDequeueTotal = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Tasks dequeued"))
	m.queueEnqueueErrors = auto.NewCounterVec(
		m.counterOpts("queue_enqueue_errors_total", "Rejected enqueues by reason"),
		[]string{"reason"},
	)

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Running rating workers"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Task processing latency", nil),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Tasks that returned an error"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration", nil),
		[]string{"endpoint", "method", "status_code"},
	)

	m.cacheResults = auto.NewCounterVec(
		m.counterOpts("cache_results_total", "Leaderboard cache lookups by result"),
		[]string{"result"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Allocated heap bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Running goroutines"))
}

// RecordRatingUpdate counts a written snapshot and observes the size of its change.
func RecordRatingUpdate(kind string, delta float64) {
	globalManager.ratingUpdates.WithLabelValues(kind).Inc()
	if delta < 0 {
		delta = -delta
	}
	globalManager.ratingDeltaAbs.WithLabelValues(kind).Observe(delta)
}

// RecordRatingWriteError counts a failed snapshot write.
func RecordRatingWriteError(kind string) {
	globalManager.ratingWriteErrors.WithLabelValues(kind).Inc()
}

// UpdateTrackedEntities sets the number of entities with rating history.
func UpdateTrackedEntities(kind string, count int) {
	globalManager.trackedEntities.WithLabelValues(kind).Set(float64(count))
}

// RecordRun counts a finished orchestrator run ("ok" or "error").
func RecordRun(outcome string) {
	globalManager.runsTotal.WithLabelValues(outcome).Inc()
}

// RecordRunPhase observes the duration of a run phase (preseason, week, wpn, season).
func RecordRunPhase(phase string, ms float64) {
	globalManager.runDuration.WithLabelValues(phase).Observe(ms)
}

// RecordGameSkipped counts a game left out of a run.
func RecordGameSkipped(reason string) {
	globalManager.gamesSkipped.WithLabelValues(reason).Inc()
}

// RecordWPNDuration observes one team's wPN computation time.
func RecordWPNDuration(ms float64) {
	globalManager.wpnDuration.Observe(ms)
}

// RecordStandingsLatency observes one standings compilation.
func RecordStandingsLatency(ms float64) {
	globalManager.standingsLatency.Observe(ms)
}

// RecordStoreLatency observes a store operation.
func RecordStoreLatency(op string, ms float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(ms)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueTotal.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueTotal.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records task processing latency.
func RecordWorkerProcessingLatency(ms float64) {
	globalManager.workerProcessingLatency.Observe(ms)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordCacheResult counts a cache lookup ("hit", "miss" or "error").
func RecordCacheResult(result string) {
	globalManager.cacheResults.WithLabelValues(result).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
