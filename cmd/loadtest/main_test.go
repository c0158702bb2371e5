package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0, 1}, {50, 5}, {90, 9}, {99, 10}, {100, 10},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if percentile(nil, 50) != 0 {
		t.Error("empty input")
	}
}

func TestRunAgainstStubAPI(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			http.NotFound(w, r)
			return
		}
		var req struct{ Text, Model string }
		json.NewDecoder(r.Body).Decode(&req)
		n := calls.Add(1)
		if n%2 == 0 {
			w.Header().Set("X-Cache", "HIT")
		}
		label := "REAL"
		if strings.Contains(strings.ToLower(req.Text), "shocking") {
			label = "FAKE"
		}
		json.NewEncoder(w).Encode(map[string]any{"prediction": label})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	cfg := Config{BaseURL: srv.URL, Models: []string{"xgboost"}, Concurrency: 2, RPS: 100, Texts: sampleTexts}
	stats := Run(ctx, cfg, srv.Client())

	if stats.total.Load() == 0 || stats.failed.Load() != 0 {
		t.Fatalf("total %d failed %d", stats.total.Load(), stats.failed.Load())
	}
	if stats.labels["FAKE"] == 0 || stats.labels["REAL"] == 0 {
		t.Errorf("labels %v", stats.labels)
	}
	var out bytes.Buffer
	if !printReport(&out, stats, 200*time.Millisecond) {
		t.Error("report says nothing completed")
	}
	if !strings.Contains(out.String(), "Cache Hit Rate") {
		t.Errorf("report:\n%s", out.String())
	}
}

func TestReportEmpty(t *testing.T) {
	var out bytes.Buffer
	if printReport(&out, NewStats(), time.Second) {
		t.Error("empty run reported success")
	}
}
