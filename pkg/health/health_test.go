package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadiness(t *testing.T) {
	down := func(context.Context) error { return errors.New("connection refused") }
	up := func(context.Context) error { return nil }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus Status
		wantCode   int
	}{
		{"all up", map[string]Check{"models": Ping(up, true), "redis": Ping(up, false)}, StatusUp, http.StatusOK},
		{"cache down", map[string]Check{"models": Ping(up, true), "redis": Ping(down, false)}, StatusDegraded, http.StatusOK},
		{"models down", map[string]Check{"models": Ping(down, true), "redis": Ping(down, false)}, StatusDown, http.StatusServiceUnavailable},
		{"no checks", nil, StatusUp, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatal(err)
			}
			if report.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", report.Status, tt.wantStatus)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %v", report.Components)
			}
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d", rec.Code)
	}
}
