package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feedback"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/scraper"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/redis"
)

type stubPredictor struct {
	mu    sync.Mutex
	calls int
	seen  []string
}

func (p *stubPredictor) Predict(ctx context.Context, rawText, modelID string) (predictor.Result, error) {
	p.mu.Lock()
	p.calls++
	p.seen = append(p.seen, rawText)
	p.mu.Unlock()
	switch modelID {
	case "xgboost":
		if strings.Contains(strings.ToLower(rawText), "shocking") {
			return predictor.Result{Model: modelID, Label: textnorm.Fake, PFake: 0.87654, PReal: 0.12346}, nil
		}
		return predictor.Result{Model: modelID, Label: textnorm.Real, PFake: 0.2, PReal: 0.8}, nil
	case "bert":
		return predictor.Result{}, fmt.Errorf("model bert: %w", errors.Join(apperrors.ErrModelInference, errors.New("connection reset")))
	default:
		return predictor.Result{}, fmt.Errorf("model %q: %w", modelID, apperrors.ErrUnknownModel)
	}
}

func (p *stubPredictor) Models() []predictor.ModelInfo {
	return []predictor.ModelInfo{{ID: "xgboost", Family: "xgboost", Kind: "vector", VocabularyVersion: "v1"}}
}

func (p *stubPredictor) VocabularyVersion() string { return "v1" }

type recordingSink struct {
	mu     sync.Mutex
	events []analytics.PredictionEvent
}

func (s *recordingSink) Track(e analytics.PredictionEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

type stubFetcher map[string]scraper.Article

func (f stubFetcher) Fetch(_ context.Context, rawURL string) (scraper.Article, error) {
	switch rawURL {
	case "http://news.test/short":
		return scraper.Article{}, fmt.Errorf("%s: %w", rawURL, scraper.ErrTooShort)
	case "http://news.test/down":
		return scraper.Article{}, fmt.Errorf("%s: %w", rawURL, scraper.ErrFetch)
	}
	art, ok := f[rawURL]
	if !ok {
		return scraper.Article{}, fmt.Errorf("bad url: %w", apperrors.ErrInvalidInput)
	}
	return art, nil
}

type memFeedback struct {
	records []feedback.Record
}

func (m *memFeedback) Record(_ context.Context, r feedback.Record) (feedback.Record, error) {
	r, err := feedback.Normalize(r)
	if err != nil {
		return feedback.Record{}, err
	}
	r.CreatedAt = time.Now().UTC()
	m.records = append(m.records, r)
	return r, nil
}

func (m *memFeedback) Stats(_ context.Context, model string) (feedback.Stats, error) {
	s := feedback.Stats{ByCorrectness: map[feedback.Correctness]int64{}}
	for _, r := range m.records {
		if model == "" || r.Model == model {
			s.Total++
			s.ByCorrectness[r.Correctness]++
		}
	}
	return s, nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = map[string]string{}
	return n, nil
}

type fixture struct {
	h        *Handler
	pred     *stubPredictor
	sink     *recordingSink
	feedback *memFeedback
}

func newFixture() *fixture {
	f := &fixture{pred: &stubPredictor{}, sink: &recordingSink{}, feedback: &memFeedback{}}
	f.h = New(f.pred,
		WithCache(cache.New(&memStore{data: map[string]string{}}, time.Minute, nil)),
		WithFetcher(stubFetcher{"http://news.test/a": {URL: "http://news.test/a", Title: "Aliens", Text: "SHOCKING aliens story", Extractor: "goquery"}}),
		WithFeedback(f.feedback),
		WithEvents(f.sink),
		WithMaxBodyBytes(1024),
	)
	return f
}

func do(handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestPredict(t *testing.T) {
	f := newFixture()
	rec := do(f.h.Predict, http.MethodPost, "/predict", `{"text":"SHOCKING news","model":"XGBoost"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var resp PredictResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Prediction != "FAKE" || resp.Probabilities.Fake != 0.877 || resp.Probabilities.Real != 0.123 {
		t.Errorf("response = %+v", resp)
	}
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q", rec.Header().Get("X-Cache"))
	}

	// Same cleaned text, different punctuation: served from the cache.
	rec = do(f.h.Predict, http.MethodPost, "/predict", `{"text":"shocking  NEWS!!","model":"xgboost"}`)
	if rec.Header().Get("X-Cache") != "HIT" || f.pred.calls != 1 {
		t.Errorf("X-Cache = %q, predictor calls = %d", rec.Header().Get("X-Cache"), f.pred.calls)
	}
	if len(f.sink.events) != 2 || !f.sink.events[1].CacheHit || f.sink.events[0].Label != "FAKE" {
		t.Errorf("events = %+v", f.sink.events)
	}
}

func TestPredictRawJSONShape(t *testing.T) {
	f := newFixture()
	rec := do(f.h.Predict, http.MethodPost, "/predict", `{"text":"budget","model":"xgboost"}`)
	body := decodeBody(t, rec)
	probs, ok := body["probabilities"].(map[string]any)
	if !ok || body["prediction"] != "REAL" || probs["FAKE"] != 0.2 || probs["REAL"] != 0.8 {
		t.Errorf("body = %v", body)
	}
}

func TestPredictErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown model", `{"text":"x","model":"naive_bayes"}`, http.StatusNotFound, "unknown_model"},
		{"missing model", `{"text":"x"}`, http.StatusBadRequest, "invalid_input"},
		{"missing text", `{"model":"xgboost"}`, http.StatusBadRequest, "invalid_input"},
		{"bad json", `{"text":`, http.StatusBadRequest, "invalid_input"},
		{"too large", `{"text":"` + strings.Repeat("a", 2048) + `","model":"xgboost"}`, http.StatusRequestEntityTooLarge, "invalid_input"},
		{"inference failure", `{"text":"x","model":"bert"}`, http.StatusBadGateway, "model_inference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec := do(f.h.Predict, http.MethodPost, "/predict", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body)
			}
			body := decodeBody(t, rec)
			if body["code"] != tt.wantErr {
				t.Errorf("code = %v, want %s", body["code"], tt.wantErr)
			}
			if _, ok := body["prediction"]; ok {
				t.Error("error response carries a prediction")
			}
		})
	}
}

func TestPredictInferenceDetailHidden(t *testing.T) {
	f := newFixture()
	rec := do(f.h.Predict, http.MethodPost, "/predict", `{"text":"x","model":"bert"}`)
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Errorf("internal detail leaked: %s", rec.Body)
	}
	if f.sink.events[0].ErrorCode != "model_inference" {
		t.Errorf("failure not tracked: %+v", f.sink.events)
	}
}

func TestPredictEmptyText(t *testing.T) {
	f := newFixture()
	rec := do(f.h.Predict, http.MethodPost, "/predict", `{"text":"","model":"xgboost"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("empty text status = %d", rec.Code)
	}
}

func TestPredictURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantCode int
		wantErr  string
	}{
		{"ok", "http://news.test/a", http.StatusOK, ""},
		{"too short", "http://news.test/short", http.StatusUnprocessableEntity, "article_too_short"},
		{"upstream down", "http://news.test/down", http.StatusBadGateway, "fetch_failed"},
		{"invalid url", "not a url", http.StatusBadRequest, "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec := do(f.h.PredictURL, http.MethodPost, "/predict/url", `{"url":"`+tt.url+`","model":"xgboost"}`)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body)
			}
			body := decodeBody(t, rec)
			if tt.wantErr != "" {
				if body["code"] != tt.wantErr {
					t.Errorf("code = %v", body["code"])
				}
				return
			}
			if body["prediction"] != "FAKE" || body["title"] != "Aliens" || body["url"] != tt.url {
				t.Errorf("body = %v", body)
			}
			if e := f.sink.events[0]; e.Type != analytics.EventPredictURL || e.Source != tt.url {
				t.Errorf("event = %+v", e)
			}
		})
	}
}

func TestPredictURLRejectsLoopback(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("<html><body><p>internal</p></body></html>"))
	}))
	defer srv.Close()

	h := New(&stubPredictor{}, WithFetcher(scraper.New(config.ScraperConfig{})))
	rec := do(h.PredictURL, http.MethodPost, "/predict/url", `{"url":"`+srv.URL+`/admin","model":"xgboost"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body)
	}
	if body := decodeBody(t, rec); body["code"] != "invalid_input" {
		t.Errorf("code = %v", body["code"])
	}
	if hits != 0 {
		t.Errorf("loopback server received %d requests", hits)
	}
}

func TestDisabledFeatures(t *testing.T) {
	h := New(&stubPredictor{})
	for name, fn := range map[string]http.HandlerFunc{
		"predict url":      h.PredictURL,
		"feedback":         h.Feedback,
		"feedback stats":   h.FeedbackStats,
		"cache invalidate": h.CacheInvalidate,
	} {
		if rec := do(fn, http.MethodPost, "/", `{}`); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d", name, rec.Code)
		}
	}
	rec := do(h.CacheStats, http.MethodGet, "/cache/stats", "")
	if body := decodeBody(t, rec); body["status"] != "disabled" {
		t.Errorf("cache stats = %v", body)
	}
	rec = do(h.Predict, http.MethodPost, "/predict", `{"text":"shocking","model":"xgboost"}`)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("uncached predict status %d", rec.Code)
	}
}

func TestFeedback(t *testing.T) {
	f := newFixture()
	rec := do(f.h.Feedback, http.MethodPost, "/feedback",
		`{"model":"XGBoost","text":"aliens","predicted_label":"fake","correctness":"yes","comment":" spot on "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	if body["model"] != "xgboost" || body["predicted_label"] != "FAKE" || body["correctness"] != "correct" || body["comment"] != "spot on" {
		t.Errorf("stored = %v", body)
	}
	if f.sink.events[0].Type != analytics.EventFeedback {
		t.Errorf("event = %+v", f.sink.events[0])
	}

	rec = do(f.h.Feedback, http.MethodPost, "/feedback", `{"model":"xgboost","text":"","predicted_label":"maybe","correctness":"?"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid feedback status = %d", rec.Code)
	}
	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	for _, k := range []string{"text", "predicted_label", "correctness"} {
		if _, ok := fields[k]; !ok {
			t.Errorf("field %s not reported: %v", k, fields)
		}
	}

	rec = do(f.h.FeedbackStats, http.MethodGet, "/feedback/stats?model=XGBOOST", "")
	var stats feedback.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.ByCorrectness[feedback.Correct] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestModelsAndHome(t *testing.T) {
	f := newFixture()
	body := decodeBody(t, do(f.h.Models, http.MethodGet, "/models", ""))
	if body["count"] != 1.0 || body["vocabulary_version"] != "v1" {
		t.Errorf("models = %v", body)
	}
	body = decodeBody(t, do(f.h.Home, http.MethodGet, "/", ""))
	if body["message"] != Banner {
		t.Errorf("banner = %v", body)
	}
	if rec := do(f.h.Home, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rec.Code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture()
	do(f.h.Predict, http.MethodPost, "/predict", `{"text":"a","model":"xgboost"}`)
	do(f.h.Predict, http.MethodPost, "/predict", `{"text":"a","model":"xgboost"}`)

	body := decodeBody(t, do(f.h.CacheStats, http.MethodGet, "/cache/stats", ""))
	if body["hits"] != 1.0 || body["hit_rate"] != "50.0%" {
		t.Errorf("stats = %v", body)
	}
	body = decodeBody(t, do(f.h.CacheInvalidate, http.MethodPost, "/cache/invalidate", ""))
	if body["keys_deleted"] != 1.0 {
		t.Errorf("invalidate = %v", body)
	}
	do(f.h.Predict, http.MethodPost, "/predict", `{"text":"a","model":"xgboost"}`)
	if f.pred.calls != 2 {
		t.Errorf("predictor calls after invalidate = %d", f.pred.calls)
	}
}

func BenchmarkPredictCached(b *testing.B) {
	f := newFixture()
	body := []byte(`{"text":"SHOCKING secret exposed","model":"xgboost"}`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		f.h.Predict(rec, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))
	}
}
