package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePrediction(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObservePrediction("xgboost", "FAKE", 3*time.Millisecond)
	m.ObservePrediction("xgboost", "FAKE", time.Millisecond)
	m.ObservePrediction("xgboost", "REAL", time.Millisecond)
	m.ObservePredictionError("bert", "model_inference")

	if got := testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("xgboost", "FAKE")); got != 2 {
		t.Errorf("FAKE predictions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PredictionErrors.WithLabelValues("bert", "model_inference")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.PredictionLatency); n != 1 {
		t.Errorf("latency series = %d, want 1", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePrediction("x", "REAL", time.Second)
	m.ObservePredictionError("x", "internal")
	m.CacheHit()
	m.CacheMiss()
	m.ObserveFeedback("x", "correct")
	m.ObserveScored("csv", "ok")
	m.SetBreakerState("x", 1)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()
	m.ObserveFeedback("randomforest", "incorrect")
	m.ObserveScored("stream", "ok")
	m.SetBreakerState("transformer", 1)

	if got := testutil.ToFloat64(m.CacheMissesTotal); got != 2 {
		t.Errorf("misses = %v", got)
	}
	if got := testutil.ToFloat64(m.FeedbackTotal.WithLabelValues("randomforest", "incorrect")); got != 1 {
		t.Errorf("feedback = %v", got)
	}
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("transformer")); got != 1 {
		t.Errorf("breaker = %v", got)
	}
}
