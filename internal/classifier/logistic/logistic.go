// Package logistic implements L2-regularised logistic regression trained by
// full-batch gradient descent over sparse vectors.
package logistic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feature"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

const Family = classifier.LogisticRegression

type Config struct {
	MaxIter      int
	LearningRate float64
	L2           float64
	Tolerance    float64
}

func Defaults() Config {
	return Config{MaxIter: 1000, LearningRate: 0.5, L2: 1e-4, Tolerance: 1e-6}
}

type Model struct {
	Weights    []float64 `json:"weights"`
	Bias       float64   `json:"bias"`
	Iterations int       `json:"iterations"`
	vocab      string
}

var _ classifier.VectorModel = (*Model)(nil)

// Train minimises mean log-loss plus L2/2·|w|². It stops after MaxIter
// steps or once the largest gradient component drops below Tolerance.
func Train(ctx context.Context, ds classifier.Dataset, cfg Config) (*Model, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("training logistic regression: %w", apperrors.ErrEmptyCorpus)
	}
	if cfg.MaxIter <= 0 || cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("max iterations and learning rate must be positive: %w", apperrors.ErrInvalidInput)
	}

	n := float64(ds.Len())
	w := make([]float64, ds.Dim)
	grad := make([]float64, ds.Dim)
	var b float64
	m := &Model{Weights: w, vocab: ds.VocabularyVersion}

	for iter := 1; iter <= cfg.MaxIter; iter++ {
		if iter%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("training logistic regression: %w", err)
			}
		}
		for j := range grad {
			grad[j] = cfg.L2 * w[j]
		}
		var gb float64
		for i, x := range ds.X {
			r := (classifier.Sigmoid(x.Dot(w)+b) - ds.Target(i)) / n
			gb += r
			for k, j := range x.Indices {
				grad[j] += r * x.Values[k]
			}
		}

		maxGrad := math.Abs(gb)
		for j := range w {
			if a := math.Abs(grad[j]); a > maxGrad {
				maxGrad = a
			}
			w[j] -= cfg.LearningRate * grad[j]
		}
		b -= cfg.LearningRate * gb
		m.Iterations = iter
		if maxGrad < cfg.Tolerance {
			break
		}
	}
	m.Bias = b
	return m, nil
}

func (m *Model) Family() string            { return Family }
func (m *Model) Kind() classifier.Kind     { return classifier.KindVector }
func (m *Model) VocabularyVersion() string { return m.vocab }
func (m *Model) Payload() any              { return m }

func (m *Model) PredictProba(v feature.Vector) (classifier.Probabilities, error) {
	if v.Dim != len(m.Weights) {
		return classifier.Probabilities{}, fmt.Errorf("vector dimension %d, model expects %d", v.Dim, len(m.Weights))
	}
	return classifier.FromFake(classifier.Sigmoid(v.Dot(m.Weights) + m.Bias)), nil
}

func Decode(meta artifact.Meta, raw json.RawMessage) (classifier.Artifact, error) {
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing logistic regression: %w", err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("logistic regression without weights: %w", artifact.ErrCorrupt)
	}
	m.vocab = meta.VocabularyVersion
	return &m, nil
}
