package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the danmaku overlay service.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	activationsTotal  *prometheus.CounterVec
	dropsTotal        *prometheus.CounterVec
	expiriesTotal     prometheus.Counter
	loadsTotal        prometheus.Counter
	loadFailuresTotal prometheus.Counter
	annotationsLoaded prometheus.Counter
	activeSessions    prometheus.Gauge
	visibleItems      prometheus.Gauge
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	activationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "danmaku_activations_total",
		Help: "Annotations placed into a lane, by mode",
	}, []string{"mode"})
	dropsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "danmaku_drops_total",
		Help: "Due annotations dropped because no lane was available, by mode",
	}, []string{"mode"})
	expiriesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_expiries_total",
		Help: "Visible items removed after their display time ran out",
	})
	loadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_loads_total",
		Help: "Annotation sources loaded successfully",
	})
	loadFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_load_failures_total",
		Help: "Annotation source loads that failed",
	})
	annotationsLoaded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "danmaku_annotations_loaded_total",
		Help: "Annotations read from successfully loaded sources",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "danmaku_active_sessions",
		Help: "Number of sessions with an attached overlay",
	})
	visibleItems := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "danmaku_visible_items",
		Help: "Annotations currently on screen across all sessions",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		activationsTotal,
		dropsTotal,
		expiriesTotal,
		loadsTotal,
		loadFailuresTotal,
		annotationsLoaded,
		activeSessions,
		visibleItems,
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		activationsTotal:  activationsTotal,
		dropsTotal:        dropsTotal,
		expiriesTotal:     expiriesTotal,
		loadsTotal:        loadsTotal,
		loadFailuresTotal: loadFailuresTotal,
		annotationsLoaded: annotationsLoaded,
		activeSessions:    activeSessions,
		visibleItems:      visibleItems,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncActivations counts an annotation placed into a lane.
func (m *Metrics) IncActivations(mode string) {
	m.activationsTotal.WithLabelValues(mode).Inc()
}

// IncDrops counts a due annotation that found no free lane.
func (m *Metrics) IncDrops(mode string) {
	m.dropsTotal.WithLabelValues(mode).Inc()
}

// IncExpiries counts a visible item removed by cleanup.
func (m *Metrics) IncExpiries() {
	m.expiriesTotal.Inc()
}

// ObserveLoad records a successful load of n annotations.
func (m *Metrics) ObserveLoad(n int) {
	m.loadsTotal.Inc()
	m.annotationsLoaded.Add(float64(n))
}

// IncLoadFailures increments the failed load counter.
func (m *Metrics) IncLoadFailures() {
	m.loadFailuresTotal.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// SetVisibleItems sets the visible items gauge.
func (m *Metrics) SetVisibleItems(n int) {
	m.visibleItems.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
