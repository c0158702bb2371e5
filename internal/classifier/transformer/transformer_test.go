package transformer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/resilience"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"a b c d", 2, "a b"},
		{"a b", 5, "a b"},
		{"  a   b  ", 5, "a b"},
		{"", 3, ""},
		{"a b c", 0, "a b c"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestPredictText(t *testing.T) {
	var gotInput string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs string `json:"inputs"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotInput = req.Inputs
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[[{"label":"LABEL_1","score":0.75},{"label":"LABEL_0","score":0.25}]]`))
	}))
	defer srv.Close()

	c, err := New(Manifest{Endpoint: srv.URL, MaxTokens: 3}, Options{APIKey: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := c.PredictText(context.Background(), "one two three four five")
	if err != nil {
		t.Fatalf("PredictText: %v", err)
	}
	if p.Fake != 0.75 || p.Real != 0.25 {
		t.Errorf("probabilities = %+v", p)
	}
	if gotInput != "one two three" {
		t.Errorf("sent %q, want truncated input", gotInput)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestInterpret(t *testing.T) {
	c, _ := New(Manifest{Endpoint: "http://unused"}, Options{})
	tests := []struct {
		name     string
		body     string
		wantFake float64
		wantErr  bool
	}{
		{"flat top label negative", `[{"label":"LABEL_0","score":0.9}]`, 0.1, false},
		{"flat top label positive", `[{"label":"LABEL_1","score":0.6}]`, 0.6, false},
		{"nested", `[[{"label":"LABEL_0","score":0.3},{"label":"LABEL_1","score":0.7}]]`, 0.7, false},
		{"empty", `[]`, 0, true},
		{"foreign labels", `[{"label":"A","score":0.5},{"label":"B","score":0.5}]`, 0, true},
		{"garbage", `{"error":"loading"}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, err := parseScores([]byte(tt.body))
			var p classifier.Probabilities
			if err == nil {
				p, err = c.interpret(scores)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (p.Fake < tt.wantFake-1e-9 || p.Fake > tt.wantFake+1e-9) {
				t.Errorf("Fake = %v, want %v", p.Fake, tt.wantFake)
			}
		})
	}
}

func TestBreakerOpensOnFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := New(Manifest{Endpoint: srv.URL}, Options{
		Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute},
	})
	for i := 0; i < 2; i++ {
		if _, err := c.PredictText(context.Background(), "text"); err == nil || !strings.Contains(err.Error(), "503") {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	_, err := c.PredictText(context.Background(), "text")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
	if c.BreakerState() != resilience.StateOpen {
		t.Errorf("state = %v", c.BreakerState())
	}
}

func TestPredictTextHonoursDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, _ := New(Manifest{Endpoint: srv.URL}, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.PredictText(ctx, "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	c, _ := New(Manifest{Endpoint: "http://models.local/bert", ModelName: "bert-base-uncased"}, Options{APIKey: "k"})
	path := filepath.Join(t.TempDir(), "bert.fnda")
	if err := classifier.Save(path, Family, c); err != nil {
		t.Fatal(err)
	}
	_, a, err := classifier.Load(path, map[string]classifier.Decoder{Family: NewDecoder(Options{})})
	if err != nil {
		t.Fatal(err)
	}
	got := a.(*Client).Manifest()
	want := Manifest{Endpoint: "http://models.local/bert", ModelName: "bert-base-uncased", PositiveLabel: "LABEL_1", MaxTokens: 512}
	if got != want {
		t.Errorf("manifest = %+v, want %+v", got, want)
	}
	if a.Kind() != classifier.KindText || a.VocabularyVersion() != "" {
		t.Error("transformer must be a text model without vocabulary")
	}
}
