// Package metrics provides Prometheus metrics for the airstrum service.
package metrics

import (
	"github.com/okian/airstrum/internal/domain/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tickBuckets covers sub-millisecond to a few frames at 60Hz.
var tickBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 16, 33} //nolint:gochecknoglobals // bucket layout

// Manager owns every metric the service reports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Engine
	ticks       prometheus.Counter
	tickLatency prometheus.Histogram
	strums      *prometheus.CounterVec
	whiffs      prometheus.Counter
	hits        *prometheus.CounterVec
	misses      prometheus.Counter
	spawned     prometheus.Counter
	activeNotes prometheus.Gauge
	combo       prometheus.Gauge
	score       prometheus.Gauge
	sessions    prometheus.Counter

	// Chord channel
	chordMessages *prometheus.CounterVec
	chordDropped  *prometheus.CounterVec

	// Hand frame channel
	frames        prometheus.Counter
	framesDropped prometheus.Counter

	// Outcome dispatch
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	enqueueErrors  prometheus.Counter
	workerCount    prometheus.Gauge
	handlerErrors  *prometheus.CounterVec
	handlerLatency prometheus.Histogram

	// Submissions
	submissions      prometheus.Counter
	submissionErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "airstrum",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.ticks = m.counter("ticks_total", "Total number of engine ticks")
	m.tickLatency = m.histogram("tick_latency_milliseconds", "Engine tick duration in milliseconds", tickBuckets)
	m.strums = m.counterVec("strums_total", "Detected strum events by direction", "direction")
	m.whiffs = m.counter("whiffs_total", "Strums that matched no note")
	m.hits = m.counterVec("hits_total", "Hit notes by rating", "rating")
	m.misses = m.counter("misses_total", "Notes that passed the hit window")
	m.spawned = m.counter("notes_spawned_total", "Notes spawned by the scheduler")
	m.activeNotes = m.gauge("active_notes", "Notes currently on the timeline")
	m.combo = m.gauge("combo", "Current combo")
	m.score = m.gauge("score", "Current session score")
	m.sessions = m.counter("sessions_ended_total", "Sessions ended")

	m.chordMessages = m.counterVec("chord_messages_total", "Inbound chord channel messages by type", "type")
	m.chordDropped = m.counterVec("chord_messages_dropped_total", "Inbound chord messages dropped by reason", "reason")

	m.frames = m.counter("frames_total", "Hand frames accepted from the estimator")
	m.framesDropped = m.counter("frames_dropped_total", "Hand frames that could not be decoded")

	m.queueSize = m.gauge("outcome_queue_size", "Outcomes waiting for dispatch")
	m.queueCapacity = m.gauge("outcome_queue_capacity", "Outcome queue capacity")
	m.enqueueErrors = m.counter("outcome_enqueue_errors_total", "Outcomes dropped because the queue was full or closed")
	m.workerCount = m.gauge("worker_count", "Running dispatcher workers")
	m.handlerErrors = m.counterVec("handler_errors_total", "Outcome handler failures by kind", "kind")
	m.handlerLatency = m.histogram("handler_latency_milliseconds", "Outcome handler duration in milliseconds", m.histogramBuckets)

	m.submissions = m.counter("submissions_total", "Session scores persisted")
	m.submissionErrors = m.counter("submission_errors_total", "Failed score submissions")

	auto := promauto.With(m.registry)
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Heap bytes allocated",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutine_count",
		Help:      "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_time_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	})
}

// RecordTick records one engine tick and its duration.
func RecordTick(latencyMs float64) {
	globalManager.ticks.Inc()
	globalManager.tickLatency.Observe(latencyMs)
}

// RecordStrum counts a detected strum.
func RecordStrum(d model.Direction) {
	globalManager.strums.WithLabelValues(d.String()).Inc()
}

// RecordWhiff counts a strum that hit nothing.
func RecordWhiff() {
	globalManager.whiffs.Inc()
}

// RecordOutcome counts a judge outcome.
func RecordOutcome(o model.Outcome) {
	if o.Kind == model.OutcomeMissed {
		globalManager.misses.Inc()
		return
	}
	globalManager.hits.WithLabelValues(o.Rating.String()).Inc()
}

// RecordSpawn counts a spawned note.
func RecordSpawn() {
	globalManager.spawned.Inc()
}

// UpdateSessionGauges publishes the live score state.
func UpdateSessionGauges(s model.ScoreState, active int) {
	globalManager.score.Set(float64(s.Score))
	globalManager.combo.Set(float64(s.Combo))
	globalManager.activeNotes.Set(float64(active))
}

// RecordSessionEnded counts an ended session.
func RecordSessionEnded() {
	globalManager.sessions.Inc()
}

// RecordChordMessage counts an inbound chord channel message by type.
func RecordChordMessage(msgType string) {
	globalManager.chordMessages.WithLabelValues(msgType).Inc()
}

// RecordChordDropped counts a dropped chord message.
func RecordChordDropped(reason string) {
	globalManager.chordDropped.WithLabelValues(reason).Inc()
}

// RecordFrame counts an inbound hand frame; ok is false for undecodable ones.
func RecordFrame(ok bool) {
	if !ok {
		globalManager.framesDropped.Inc()
		return
	}
	globalManager.frames.Inc()
}

// UpdateQueueSize sets the current outcome queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the outcome queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordEnqueueError counts an outcome that could not be queued.
func RecordEnqueueError() {
	globalManager.enqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHandlerError counts a failed outcome handler call.
func RecordHandlerError(kind model.OutcomeKind) {
	globalManager.handlerErrors.WithLabelValues(kind.String()).Inc()
}

// RecordHandlerLatency records how long a handler call took.
func RecordHandlerLatency(latencyMs float64) {
	globalManager.handlerLatency.Observe(latencyMs)
}

// RecordSubmission counts a persisted score, or a failure when err is non-nil.
func RecordSubmission(err error) {
	if err != nil {
		globalManager.submissionErrors.Inc()
		return
	}
	globalManager.submissions.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the allocated heap size in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
