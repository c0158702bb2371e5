package analytics

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPredict    EventType = "predict"
	EventPredictURL EventType = "predict_url"
	EventScored     EventType = "scored"
	EventFeedback   EventType = "feedback"
)

// PredictionEvent is published for every served or batch-scored
// prediction. Failed predictions carry ErrorCode and no label.
type PredictionEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	Model     string    `json:"model"`
	Label     string    `json:"label,omitempty"`
	PFake     float64   `json:"p_fake"`
	CacheHit  bool      `json:"cache_hit"`
	TextChars int       `json:"text_chars"`
	LatencyMs int64     `json:"latency_ms"`
	ErrorCode string    `json:"error_code,omitempty"`
	Source    string    `json:"source,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with a fresh id and the current UTC time.
func NewEvent(t EventType, model string) PredictionEvent {
	return PredictionEvent{
		ID:        uuid.New(),
		Type:      t,
		Model:     model,
		Timestamp: time.Now().UTC(),
	}
}
