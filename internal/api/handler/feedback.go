package handler

import (
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feedback"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/logger"
)

// Feedback appends a user verdict on an earlier prediction.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	if h.feedback == nil {
		h.writeError(w, http.StatusServiceUnavailable, "feedback storage is disabled", "disabled")
		return
	}
	var req feedback.Record
	if err := h.decode(w, r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	req.Model = strings.ToLower(req.Model)
	rec, err := h.feedback.Record(r.Context(), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	h.metrics.ObserveFeedback(rec.Model, string(rec.Correctness))
	event := analytics.NewEvent(analytics.EventFeedback, rec.Model)
	event.Label = rec.PredictedLabel
	event.RequestID = logger.RequestID(r.Context())
	h.track(event)
	h.writeJSON(w, http.StatusCreated, rec)
}

// FeedbackStats reports feedback counts, optionally for one ?model=.
func (h *Handler) FeedbackStats(w http.ResponseWriter, r *http.Request) {
	if h.feedback == nil {
		h.writeError(w, http.StatusServiceUnavailable, "feedback storage is disabled", "disabled")
		return
	}
	model := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("model")))
	stats, err := h.feedback.Stats(r.Context(), model)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}
