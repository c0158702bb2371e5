// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PredictionsTotal     *prometheus.CounterVec
	PredictionLatency    *prometheus.HistogramVec
	PredictionErrors     *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	FeedbackTotal        *prometheus.CounterVec
	ArticlesScoredTotal  *prometheus.CounterVec
	ModelsLoaded         prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg, or with the
// default Prometheus registry when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictions_total",
				Help: "Total predictions by model and predicted label.",
			},
			[]string{"model", "label"},
		),
		PredictionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prediction_latency_seconds",
				Help:    "Prediction latency in seconds, from cleaning to label.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"model"},
		),
		PredictionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prediction_errors_total",
				Help: "Failed predictions by model and error code.",
			},
			[]string{"model", "code"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of prediction cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of prediction cache misses.",
			},
		),
		FeedbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_records_total",
				Help: "Feedback records stored by model and correctness.",
			},
			[]string{"model", "correctness"},
		),
		ArticlesScoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "articles_scored_total",
				Help: "Articles scored by the batch and stream scorers, by source and status.",
			},
			[]string{"source", "status"},
		),
		ModelsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "models_loaded",
				Help: "Number of classifier artifacts registered at startup.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PredictionsTotal,
		m.PredictionLatency,
		m.PredictionErrors,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.FeedbackTotal,
		m.ArticlesScoredTotal,
		m.ModelsLoaded,
		m.CircuitBreakerState,
	)

	return m
}

// ObservePrediction records one successful prediction. Safe on a nil
// receiver so that batch tools can run without a registry.
func (m *Metrics) ObservePrediction(model, label string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(model, label).Inc()
	m.PredictionLatency.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePredictionError(model, code string) {
	if m == nil {
		return
	}
	m.PredictionErrors.WithLabelValues(model, code).Inc()
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) ObserveFeedback(model, correctness string) {
	if m != nil {
		m.FeedbackTotal.WithLabelValues(model, correctness).Inc()
	}
}

func (m *Metrics) ObserveScored(source, status string) {
	if m != nil {
		m.ArticlesScoredTotal.WithLabelValues(source, status).Inc()
	}
}

// SetBreakerState publishes a circuit breaker transition. The state values
// match resilience.State.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	}
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
