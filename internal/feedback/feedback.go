// Package feedback stores user verdicts on served predictions. The log is
// append-only and is never read by the prediction path; it exists for
// auditing model quality.
package feedback

import (
	"fmt"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
	"github.com/google/uuid"
)

type Correctness string

const (
	Correct   Correctness = "correct"
	Incorrect Correctness = "incorrect"
)

const (
	maxTextLength    = 100_000
	maxCommentLength = 2_000
)

// Record is one feedback entry.
type Record struct {
	ID             uuid.UUID   `json:"id"`
	CreatedAt      time.Time   `json:"timestamp"`
	Model          string      `json:"model"`
	Text           string      `json:"text"`
	PredictedLabel string      `json:"predicted_label"`
	Correctness    Correctness `json:"correctness"`
	Comment        string      `json:"comment,omitempty"`
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Normalize trims r, canonicalises the label and correctness spellings and
// validates the result.
func Normalize(r Record) (Record, error) {
	errs := make(map[string]string)

	r.Model = strings.TrimSpace(r.Model)
	if r.Model == "" {
		errs["model"] = "model is required"
	}
	if strings.TrimSpace(r.Text) == "" {
		errs["text"] = "text is required"
	} else if len(r.Text) > maxTextLength {
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxTextLength)
	}
	if label, ok := textnorm.ParseLabel(r.PredictedLabel); ok {
		r.PredictedLabel = label.String()
	} else {
		errs["predicted_label"] = "predicted_label must be FAKE or REAL"
	}
	switch Correctness(strings.ToLower(strings.TrimSpace(string(r.Correctness)))) {
	case Correct, "yes", "true":
		r.Correctness = Correct
	case Incorrect, "no", "false":
		r.Correctness = Incorrect
	default:
		errs["correctness"] = "correctness must be correct or incorrect"
	}
	r.Comment = strings.TrimSpace(r.Comment)
	if len(r.Comment) > maxCommentLength {
		errs["comment"] = fmt.Sprintf("comment must be at most %d bytes", maxCommentLength)
	}

	if len(errs) > 0 {
		return Record{}, &ValidationError{Fields: errs}
	}
	return r, nil
}

// Stats summarises the feedback log.
type Stats struct {
	Total         int64                            `json:"total"`
	ByCorrectness map[Correctness]int64            `json:"by_correctness"`
	ByModel       map[string]map[Correctness]int64 `json:"by_model"`
}

func (s *Stats) add(model string, c Correctness, n int64) {
	if s.ByCorrectness == nil {
		s.ByCorrectness = make(map[Correctness]int64)
	}
	if s.ByModel == nil {
		s.ByModel = make(map[string]map[Correctness]int64)
	}
	if s.ByModel[model] == nil {
		s.ByModel[model] = make(map[Correctness]int64)
	}
	s.Total += n
	s.ByCorrectness[c] += n
	s.ByModel[model][c] += n
}
