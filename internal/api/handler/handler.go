// Package handler serves the prediction API: single-text and URL
// predictions, model listing, feedback and cache administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feedback"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/scraper"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/metrics"
)

const Banner = "Fake News Detection API is running"

type Predictor interface {
	Predict(ctx context.Context, rawText, modelID string) (predictor.Result, error)
	Models() []predictor.ModelInfo
	VocabularyVersion() string
}

type ArticleFetcher interface {
	Fetch(ctx context.Context, rawURL string) (scraper.Article, error)
}

type FeedbackStore interface {
	Record(ctx context.Context, r feedback.Record) (feedback.Record, error)
	Stats(ctx context.Context, model string) (feedback.Stats, error)
}

type EventSink interface {
	Track(e analytics.PredictionEvent)
}

type Handler struct {
	predictor    Predictor
	cache        *cache.PredictionCache
	fetcher      ArticleFetcher
	feedback     FeedbackStore
	events       EventSink
	metrics      *metrics.Metrics
	maxBodyBytes int64
	logger       *slog.Logger
}

type Option func(*Handler)

func WithCache(c *cache.PredictionCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithFetcher(f ArticleFetcher) Option {
	return func(h *Handler) { h.fetcher = f }
}

func WithFeedback(s FeedbackStore) Option {
	return func(h *Handler) { h.feedback = s }
}

func WithEvents(s EventSink) Option {
	return func(h *Handler) { h.events = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithMaxBodyBytes caps JSON request bodies. Larger bodies get 413.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) { h.maxBodyBytes = n }
}

func New(p Predictor, opts ...Option) *Handler {
	h := &Handler{
		predictor:    p,
		maxBodyBytes: 1 << 20,
		logger:       slog.Default().With("component", "api-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.writeError(w, http.StatusNotFound, "not found", "not_found")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": Banner})
}

func (h *Handler) track(e analytics.PredictionEvent) {
	if h.events != nil {
		h.events.Track(e)
	}
}

// decode reads a JSON body into dst. The returned error is ready for
// writeAppError.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
				"request body exceeds %d bytes", tooLarge.Limit)
		}
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, map[string]string{"error": message, "code": code})
}

// writeAppError maps err onto a status and a stable code. Server-side
// failures are logged in full and reported without internal detail.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	code := apperrors.Code(err)

	var validation *feedback.ValidationError
	if errors.As(err, &validation) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"code":   code,
			"fields": validation.Fields,
		})
		return
	}

	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
		message = http.StatusText(status)
	}
	h.writeError(w, status, message, code)
}
