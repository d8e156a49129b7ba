package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by callers.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeBusy      = "busy"
	OutcomeWaiting   = "waiting"
	OutcomeTZError   = "tz_unavailable"

	ResultExact = "exact"
	ResultMiss  = "miss"
)

// Manager manages all Prometheus metrics for the whodle service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Daily selection
	selectionRuns     *prometheus.CounterVec
	selectionDuration prometheus.Histogram
	selectionFallback *prometheus.CounterVec
	selectionRows     *prometheus.CounterVec
	schedulerTicks    *prometheus.CounterVec
	schedulerRunning  prometheus.Gauge
	eventsPublished   *prometheus.CounterVec

	// Guessing
	guesses     *prometheus.CounterVec
	guessErrors *prometheus.CounterVec
	poolSize    prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "whodle",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.selectionRuns = m.counterVec("selection_runs_total",
		"Daily selection runs by outcome", "outcome")
	m.selectionDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "selection_run_duration_seconds",
		Help:        "Duration of daily selection runs in seconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	m.selectionFallback = m.counterVec("selection_fallback_total",
		"Variants that fell back to the classic pick", "variant")
	m.selectionRows = m.counterVec("selection_rows_total",
		"Daily selection rows written, by kind (added or updated)", "kind")
	m.schedulerTicks = m.counterVec("scheduler_ticks_total",
		"Scheduler ticks by outcome", "outcome")
	m.schedulerRunning = m.gauge("scheduler_running",
		"1 while a daily selection run is in flight")
	m.eventsPublished = m.counterVec("events_published_total",
		"Selection-completed events by publish result", "result")

	m.guesses = m.counterVec("guesses_total",
		"Evaluated guesses by variant and result", "variant", "result")
	m.guessErrors = m.counterVec("guess_errors_total",
		"Rejected guesses by error kind", "variant", "kind")
	m.poolSize = m.gauge("candidate_pool_size",
		"Candidates in the eligible pool at the last selection run")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")
}

// RecordSelectionRun counts a finished selection run and its duration.
func RecordSelectionRun(outcome string, seconds float64) {
	globalManager.selectionRuns.WithLabelValues(outcome).Inc()
	globalManager.selectionDuration.Observe(seconds)
}

// RecordSelectionFallback counts a variant served by the classic pick.
func RecordSelectionFallback(variant string) {
	globalManager.selectionFallback.WithLabelValues(variant).Inc()
}

// RecordSelectionRows adds committed row counts.
func RecordSelectionRows(added, updated int) {
	globalManager.selectionRows.WithLabelValues("added").Add(float64(added))
	globalManager.selectionRows.WithLabelValues("updated").Add(float64(updated))
}

// RecordSchedulerTick counts a scheduler tick.
func RecordSchedulerTick(outcome string) {
	globalManager.schedulerTicks.WithLabelValues(outcome).Inc()
}

// UpdateSchedulerRunning flips the in-flight gauge.
func UpdateSchedulerRunning(running bool) {
	v := 0.0
	if running {
		v = 1
	}
	globalManager.schedulerRunning.Set(v)
}

// RecordEventPublished counts a publish attempt; ok=false means it failed.
func RecordEventPublished(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	globalManager.eventsPublished.WithLabelValues(result).Inc()
}

// RecordGuess counts an evaluated guess.
func RecordGuess(variant string, exact bool) {
	result := ResultMiss
	if exact {
		result = ResultExact
	}
	globalManager.guesses.WithLabelValues(variant, result).Inc()
}

// RecordGuessError counts a rejected guess.
func RecordGuessError(variant, kind string) {
	globalManager.guessErrors.WithLabelValues(variant, kind).Inc()
}

// UpdateCandidatePoolSize sets the eligible pool size.
func UpdateCandidatePoolSize(n int) {
	globalManager.poolSize.Set(float64(n))
}

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
