package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// SnapshotLister returns persisted statistics, newest first.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

const (
	defaultHistoryLimit = 24
	maxHistoryLimit     = 500
)

type Handler struct {
	aggregator *Aggregator
	history    SnapshotLister
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// WithHistory enables the History endpoint.
func (h *Handler) WithHistory(l SnapshotLister) *Handler {
	h.history = l
	return h
}

// Stats serves the aggregated statistics. With ?model=<id> only that
// model's label breakdown is returned.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	var body any = stats
	if model := r.URL.Query().Get("model"); model != "" {
		ms, ok := stats.ByModel[model]
		if !ok {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no predictions recorded for model " + model, "code": "unknown_model"})
			return
		}
		body = map[string]any{"model": model, "stats": ms}
	}
	h.writeJSON(w, http.StatusOK, body)
}

// History serves the last ?limit= persisted snapshots.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshot storage is disabled", "code": "unavailable"})
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer", "code": "invalid_input"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	snapshots, err := h.history.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error", "code": "internal"})
		return
	}
	if snapshots == nil {
		snapshots = []AggregatedStats{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots, "count": len(snapshots)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
