package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service. All methods are
// safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	llmRequests  *prometheus.CounterVec
	llmDuration  *prometheus.HistogramVec
	attributions *prometheus.CounterVec
	chunks       *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	carePlans    *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on a fresh registry
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.llmRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careplan_llm_requests_total",
			Help: "Completion provider calls by provider, call type and outcome",
		},
		[]string{"provider", "call_type", "outcome"},
	)

	m.llmDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "careplan_llm_request_duration_seconds",
			Help:    "Completion provider call latency in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "call_type"},
	)

	m.attributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careplan_attribution_total",
			Help: "Source attribution runs by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	m.chunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careplan_attribution_chunks_total",
			Help: "Chunked attribution calls by outcome",
		},
		[]string{"outcome"},
	)

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careplan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "careplan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.carePlans = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "careplan_care_plans",
			Help: "Stored care plans by attribution state",
		},
		[]string{"state"},
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.llmRequests,
		m.llmDuration,
		m.attributions,
		m.chunks,
		m.httpRequests,
		m.httpDuration,
		m.carePlans,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry, or an empty one when m is nil.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// ObserveLLMRequest records one provider call.
func (m *Metrics) ObserveLLMRequest(provider, callType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(provider, callType, outcome).Inc()
	m.llmDuration.WithLabelValues(provider, callType).Observe(d.Seconds())
}

// ObserveAttribution records one attribution run.
func (m *Metrics) ObserveAttribution(strategy, outcome string) {
	if m == nil {
		return
	}
	m.attributions.WithLabelValues(strategy, outcome).Inc()
}

// ObserveChunk records the outcome of one chunk of a chunked run.
func (m *Metrics) ObserveChunk(outcome string) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SetSnapshot publishes stored care plan counts as gauges.
func (m *Metrics) SetSnapshot(s *Snapshot) {
	if m == nil || s == nil {
		return
	}
	m.carePlans.WithLabelValues("total").Set(float64(s.CarePlans))
	m.carePlans.WithLabelValues("attributed").Set(float64(s.Attributed))
	m.carePlans.WithLabelValues("fallback").Set(float64(s.Fallback))
}
