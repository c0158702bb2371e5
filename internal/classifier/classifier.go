// Package classifier defines the artifacts produced by training and consumed
// by the prediction service, and the registry that holds them at serving
// time.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feature"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
)

// Model ids as exposed over the API.
const (
	RandomForest       = "randomforest"
	XGBoost            = "xgboost"
	GradientBoosting   = "gradient_boosting"
	LogisticRegression = "logistic_regression"
	Transformer        = "bert"
)

// Kind tells the predictor which input an artifact consumes.
type Kind int

const (
	KindVector Kind = iota
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Probabilities is the two-class output of every model.
type Probabilities struct {
	Fake float64 `json:"FAKE"`
	Real float64 `json:"REAL"`
}

// FromFake builds Probabilities from P(FAKE).
func FromFake(p float64) Probabilities {
	return Probabilities{Fake: p, Real: 1 - p}
}

// Validate checks that both values are finite, within [0,1] and sum to
// one within tolerance.
func (p Probabilities) Validate() error {
	for _, v := range []float64{p.Fake, p.Real} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return fmt.Errorf("probability %v out of range", v)
		}
	}
	if math.Abs(p.Fake+p.Real-1) > 1e-6 {
		return fmt.Errorf("probabilities sum to %v", p.Fake+p.Real)
	}
	return nil
}

// Artifact is a trained model. Concrete artifacts implement exactly one of
// VectorModel or TextModel according to Kind.
type Artifact interface {
	Family() string
	Kind() Kind
	// VocabularyVersion is the version of the vocabulary the artifact was
	// trained against, empty for text-native models.
	VocabularyVersion() string
	// Payload returns the value persisted as the artifact body.
	Payload() any
}

// VectorModel scores TF-IDF vectors produced by the vocabulary the
// artifact was trained against.
type VectorModel interface {
	Artifact
	PredictProba(v feature.Vector) (Probabilities, error)
}

// TextModel scores cleaned text directly and needs no vocabulary.
type TextModel interface {
	Artifact
	PredictText(ctx context.Context, cleaned string) (Probabilities, error)
}

// Dataset is a vectorised training partition.
type Dataset struct {
	X                 []feature.Vector
	Y                 []textnorm.Label
	Dim               int
	VocabularyVersion string
}

func (d Dataset) Len() int { return len(d.X) }

// Target returns the label of sample i as 1 for FAKE and 0 for REAL.
func (d Dataset) Target(i int) float64 {
	if d.Y[i] == textnorm.Fake {
		return 1
	}
	return 0
}

// Decoder rebuilds an artifact of one family from its persisted payload.
type Decoder func(meta artifact.Meta, payload json.RawMessage) (Artifact, error)

// Save writes a to path under the given model id.
func Save(path, id string, a Artifact) error {
	meta := artifact.Meta{
		Kind:              artifact.KindClassifier,
		ModelID:           id,
		Family:            a.Family(),
		VocabularyVersion: a.VocabularyVersion(),
	}
	if err := artifact.WriteFile(path, meta, a.Payload()); err != nil {
		return fmt.Errorf("saving classifier %s: %w", id, err)
	}
	return nil
}

// Load reads the classifier at path, choosing a decoder by family.
func Load(path string, decoders map[string]Decoder) (string, Artifact, error) {
	meta, raw, err := artifact.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	if meta.Kind != artifact.KindClassifier {
		return "", nil, fmt.Errorf("%s holds a %q artifact: %w", path, meta.Kind, artifact.ErrCorrupt)
	}
	decode, ok := decoders[meta.Family]
	if !ok {
		return "", nil, fmt.Errorf("%s: unknown classifier family %q", path, meta.Family)
	}
	a, err := decode(meta, raw)
	if err != nil {
		return "", nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return meta.ModelID, a, nil
}

// Sigmoid is the logistic function, clamped to avoid overflow.
func Sigmoid(z float64) float64 {
	if z < -500 {
		z = -500
	} else if z > 500 {
		z = 500
	}
	return 1 / (1 + math.Exp(-z))
}
