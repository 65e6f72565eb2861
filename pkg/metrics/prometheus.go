// Package metrics provides Prometheus metrics for the scoreline service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultNamespace = "scoreline"
	defaultSubsystem = "reconciler"
)

// Manager manages all Prometheus metrics for the scoreline service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Polling
	polls          *prometheus.CounterVec
	pollDuration   prometheus.Histogram
	ticksSkipped   prometheus.Counter
	fetchAttempts  prometheus.Counter
	fetchErrors    *prometheus.CounterVec
	lastPollUnix   prometheus.Gauge
	lastPollStatus prometheus.Gauge

	// Reconciliation
	snapshots       *prometheus.CounterVec
	eventsEmitted   *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	trackedMatches  prometheus.Gauge
	evictions       *prometheus.CounterVec

	// View publishing
	viewPublishCount   prometheus.Counter
	viewLastUnix       prometheus.Gauge
	viewLastDurationMs prometheus.Gauge

	// Delivery
	deliveries      *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
	sinkQueueSize   *prometheus.GaugeVec
	wsClients       prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// serviceBuckets stretch to two minutes: a poll pass includes retry backoff
// and rate-limit pauses.
var serviceBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000} //nolint:gochecknoglobals // static bucket layout

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry), WithHistogramBuckets(serviceBuckets))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
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

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.polls = m.counterVec("polls_total", "Polls by outcome (success, failure)", "outcome")
	m.pollDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_duration_milliseconds",
		Help:      "Duration of a full poll pass including retries",
		Buckets:   m.histogramBuckets,
	})
	m.ticksSkipped = m.counter("ticks_skipped_total", "Ticks dropped because a poll was still running")
	m.fetchAttempts = m.counter("fetch_attempts_total", "Feed fetch attempts including retries")
	m.fetchErrors = m.counterVec("fetch_errors_total", "Feed fetch failures by kind", "kind")
	m.lastPollUnix = m.gauge("last_poll_unix", "Unix timestamp of the last finished poll")
	m.lastPollStatus = m.gauge("last_poll_success", "1 if the last poll succeeded, 0 otherwise")

	m.snapshots = m.counterVec("snapshots_total", "Snapshots by result (accepted, rejected, duplicate)", "result")
	m.eventsEmitted = m.counterVec("events_emitted_total", "Notification events emitted by kind", "kind")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Events suppressed because their fingerprint was already announced")
	m.trackedMatches = m.gauge("tracked_matches", "Matches currently held in the state store")
	m.evictions = m.counterVec("evictions_total", "State evictions by reason (absent, ended)", "reason")

	m.viewPublishCount = m.counter("view_publish_total", "Read views published")
	m.viewLastUnix = m.gauge("view_last_unix", "Unix timestamp of the last read view publish")
	m.viewLastDurationMs = m.gauge("view_last_duration_milliseconds", "Time spent building the last read view")

	m.deliveries = m.counterVec("deliveries_total", "Deliveries by sink and outcome (sent, failed, dropped)", "sink", "outcome")
	m.deliveryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_latency_milliseconds",
		Help:      "Sink send latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"sink"})
	m.sinkQueueSize = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_queue_size",
		Help:      "Deliveries waiting per sink",
	}, []string{"sink"})
	m.wsClients = m.gauge("websocket_clients", "Connected websocket subscribers")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
}

// Polling

// RecordPoll counts a finished poll and its duration.
func RecordPoll(success bool, d time.Duration) {
	outcome := "failure"
	status := 0.0
	if success {
		outcome = "success"
		status = 1
	}
	globalManager.polls.WithLabelValues(outcome).Inc()
	globalManager.pollDuration.Observe(float64(d.Milliseconds()))
	globalManager.lastPollUnix.Set(float64(time.Now().Unix()))
	globalManager.lastPollStatus.Set(status)
}

// RecordTickSkipped counts a tick that arrived while a poll was running.
func RecordTickSkipped() {
	globalManager.ticksSkipped.Inc()
}

// RecordFetchAttempt counts one feed request.
func RecordFetchAttempt() {
	globalManager.fetchAttempts.Inc()
}

// RecordFetchError counts a failed feed request by error kind.
func RecordFetchError(kind string) {
	globalManager.fetchErrors.WithLabelValues(kind).Inc()
}

// Reconciliation

// RecordSnapshots adds batch totals per result.
func RecordSnapshots(accepted, rejected, duplicate int) {
	globalManager.snapshots.WithLabelValues("accepted").Add(float64(accepted))
	globalManager.snapshots.WithLabelValues("rejected").Add(float64(rejected))
	globalManager.snapshots.WithLabelValues("duplicate").Add(float64(duplicate))
}

// RecordEventEmitted counts an emitted event.
func RecordEventEmitted(kind string) {
	globalManager.eventsEmitted.WithLabelValues(kind).Inc()
}

// RecordEventDuplicate counts an event suppressed by its fingerprint.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// UpdateTrackedMatches sets the number of tracked matches.
func UpdateTrackedMatches(n int) {
	globalManager.trackedMatches.Set(float64(n))
}

// RecordEviction counts a dropped match record.
func RecordEviction(reason string) {
	globalManager.evictions.WithLabelValues(reason).Inc()
}

// View publishing

// RecordViewPublish records a read view publish.
func RecordViewPublish(d time.Duration) {
	globalManager.viewPublishCount.Inc()
	globalManager.viewLastUnix.Set(float64(time.Now().Unix()))
	globalManager.viewLastDurationMs.Set(float64(d.Microseconds()) / 1000)
}

// Delivery

// RecordDelivery counts a delivery outcome for a sink.
func RecordDelivery(sink, outcome string) {
	globalManager.deliveries.WithLabelValues(sink, outcome).Inc()
}

// RecordDeliveryLatency records how long a sink send took.
func RecordDeliveryLatency(sink string, d time.Duration) {
	globalManager.deliveryLatency.WithLabelValues(sink).Observe(float64(d.Milliseconds()))
}

// UpdateSinkQueueSize sets the backlog of a sink lane.
func UpdateSinkQueueSize(sink string, n int) {
	globalManager.sinkQueueSize.WithLabelValues(sink).Set(float64(n))
}

// UpdateWebsocketClients sets the connected subscriber count.
func UpdateWebsocketClients(n int) {
	globalManager.wsClients.Set(float64(n))
}

// HTTP

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
