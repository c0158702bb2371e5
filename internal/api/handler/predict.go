package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/scraper"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/logger"
)

type PredictRequest struct {
	Text  *string `json:"text"`
	Model string  `json:"model"`
}

type PredictResponse struct {
	Prediction    string                   `json:"prediction"`
	Probabilities classifier.Probabilities `json:"probabilities"`
}

type PredictURLRequest struct {
	URL   string `json:"url"`
	Model string `json:"model"`
}

type PredictURLResponse struct {
	PredictResponse
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Chars     int    `json:"chars"`
	Extractor string `json:"extractor"`
}

func newPredictResponse(r predictor.Result) PredictResponse {
	r = r.Rounded()
	return PredictResponse{
		Prediction:    r.Label.String(),
		Probabilities: classifier.Probabilities{Fake: r.PFake, Real: r.PReal},
	}
}

// Predict scores {text, model}. Empty text is valid and is scored like any
// other input; a missing text field is not.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	model, err := modelID(req.Model)
	if err == nil && req.Text == nil {
		err = apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "text is required")
	}
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	res, cacheHit, err := h.score(r, analytics.EventPredict, *req.Text, model, "")
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	h.writeJSON(w, http.StatusOK, newPredictResponse(res))
}

// PredictURL fetches an article and scores its extracted text.
func (h *Handler) PredictURL(w http.ResponseWriter, r *http.Request) {
	if h.fetcher == nil {
		h.writeError(w, http.StatusServiceUnavailable, "url scoring is disabled", "disabled")
		return
	}
	var req PredictURLRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	model, err := modelID(req.Model)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	art, err := h.fetcher.Fetch(r.Context(), req.URL)
	switch {
	case errors.Is(err, scraper.ErrTooShort):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error(), "article_too_short")
		return
	case errors.Is(err, scraper.ErrFetch):
		logger.FromContext(r.Context()).Warn("article fetch failed", "url", req.URL, "error", err)
		h.writeError(w, http.StatusBadGateway, "could not fetch article", "fetch_failed")
		return
	case err != nil:
		h.writeAppError(w, r, err)
		return
	}

	res, _, err := h.score(r, analytics.EventPredictURL, art.Text, model, art.URL)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PredictURLResponse{
		PredictResponse: newPredictResponse(res),
		URL:             art.URL,
		Title:           art.Title,
		Chars:           len(art.Text),
		Extractor:       art.Extractor,
	})
}

// score runs one prediction through the cache and records it.
func (h *Handler) score(r *http.Request, kind analytics.EventType, text, model, source string) (predictor.Result, bool, error) {
	ctx := r.Context()
	start := time.Now()

	var (
		res      predictor.Result
		cacheHit bool
		err      error
	)
	compute := func(ctx context.Context) (predictor.Result, error) {
		return h.predictor.Predict(ctx, text, model)
	}
	if h.cache != nil {
		res, cacheHit, err = h.cache.GetOrCompute(ctx, model, h.predictor.VocabularyVersion(), textnorm.Clean(text), compute)
	} else {
		res, err = compute(ctx)
	}

	event := analytics.NewEvent(kind, model)
	event.CacheHit = cacheHit
	event.TextChars = len(text)
	event.LatencyMs = time.Since(start).Milliseconds()
	event.Source = source
	event.RequestID = logger.RequestID(ctx)
	if err != nil {
		event.ErrorCode = apperrors.Code(err)
		h.track(event)
		return predictor.Result{}, false, err
	}
	event.Label = res.Label.String()
	event.PFake = res.PFake
	h.track(event)

	logger.FromContext(ctx).Info("prediction served",
		"model", model,
		"label", event.Label,
		"cache_hit", cacheHit,
		"latency_ms", event.LatencyMs,
	)
	return res, cacheHit, nil
}

// Models lists the loaded models.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	models := h.predictor.Models()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"models":             models,
		"count":              len(models),
		"vocabulary_version": h.predictor.VocabularyVersion(),
	})
}

// modelID normalises the requested model id. Ids are matched case
// insensitively.
func modelID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "model is required")
	}
	return id, nil
}
