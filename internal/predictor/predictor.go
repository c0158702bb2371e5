// Package predictor is the serving core: it cleans raw text, looks the model
// up in the sealed registry, dispatches on the artifact kind and turns the
// model output into a labelled, validated result.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/tracing"
)

// TiePolicy decides the label when P(FAKE) == P(REAL).
type TiePolicy int

const (
	TieReal TiePolicy = iota
	TieFake
)

func (p TiePolicy) String() string {
	if p == TieFake {
		return "fake"
	}
	return "real"
}

// Label returns the label for the two class probabilities, using p only
// when they are equal.
func (p TiePolicy) Label(pFake, pReal float64) textnorm.Label {
	switch {
	case pFake > pReal:
		return textnorm.Fake
	case pFake < pReal:
		return textnorm.Real
	case p == TieFake:
		return textnorm.Fake
	default:
		return textnorm.Real
	}
}

// ParseTiePolicy accepts "real" or "fake" in any case.
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "real":
		return TieReal, nil
	case "fake":
		return TieFake, nil
	default:
		return TieReal, fmt.Errorf("tie policy %q: %w", s, apperrors.ErrInvalidInput)
	}
}

// Result is one prediction. PFake and PReal are unrounded; use Rounded for
// reporting.
type Result struct {
	Model string
	Label textnorm.Label
	PFake float64
	PReal float64
}

// Rounded returns r with both probabilities rounded to three decimals. The
// label is not recomputed.
func (r Result) Rounded() Result {
	r.PFake = round3(r.PFake)
	r.PReal = round3(r.PReal)
	return r
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// ModelInfo describes one loaded model.
type ModelInfo struct {
	ID                string `json:"id"`
	Family            string `json:"family"`
	Kind              string `json:"kind"`
	VocabularyVersion string `json:"vocabulary_version,omitempty"`
}

// Service is the prediction service: it cleans text, routes it to the
// requested model and labels the result. It is safe for concurrent use
// once built.
type Service struct {
	registry         *classifier.Registry
	vocab            *vocabulary.Store
	tie              TiePolicy
	inferenceTimeout time.Duration
	tracer           *tracing.Tracer
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTiePolicy sets the label used when both probabilities are equal.
// The default is TieReal.
func WithTiePolicy(p TiePolicy) Option {
	return func(s *Service) { s.tie = p }
}

// WithInferenceTimeout bounds a single model call. Zero leaves only the
// caller's deadline in force.
func WithInferenceTimeout(d time.Duration) Option {
	return func(s *Service) { s.inferenceTimeout = d }
}

func WithTracer(t *tracing.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithMetrics records per-model prediction counts, latency and inference
// errors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds a Service over a registry populated at startup. vocab may be
// nil when only text models are served.
func New(registry *classifier.Registry, vocab *vocabulary.Store, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		vocab:    vocab,
		tracer:   tracing.NewTracer(false, 0),
		logger:   slog.Default().With("component", "predictor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict scores rawText with the model registered as modelID.
func (s *Service) Predict(ctx context.Context, rawText, modelID string) (Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "predict", logger.RequestID(ctx))
	span.SetAttr("model", modelID)
	defer s.tracer.Finish(span)

	res, err := s.predict(ctx, rawText, modelID)
	if err != nil {
		span.SetAttr("error", err.Error())
		s.metrics.ObservePredictionError(modelID, apperrors.Code(err))
		return Result{}, err
	}
	span.SetAttr("label", res.Label.String())
	s.metrics.ObservePrediction(modelID, res.Label.String(), time.Since(start))
	return res, nil
}

func (s *Service) predict(ctx context.Context, rawText, modelID string) (Result, error) {
	_, cleanSpan := tracing.StartChildSpan(ctx, "clean")
	cleaned := textnorm.Clean(rawText)
	cleanSpan.SetAttr("chars", len(cleaned))
	cleanSpan.End()

	a, err := s.registry.Get(modelID)
	if err != nil {
		return Result{}, err
	}

	var probs classifier.Probabilities
	switch a.Kind() {
	case classifier.KindVector:
		m, ok := a.(classifier.VectorModel)
		if !ok {
			err = fmt.Errorf("vector artifact %s cannot score vectors", a.Family())
			break
		}
		if !s.vocab.Fitted() {
			return Result{}, fmt.Errorf("model %s: %w", modelID, apperrors.ErrNotFitted)
		}
		if m.VocabularyVersion() != s.vocab.Version() {
			return Result{}, fmt.Errorf("model %s: %w", modelID, apperrors.ErrVocabularyMismatch)
		}
		_, vecSpan := tracing.StartChildSpan(ctx, "vectorize")
		v := s.vocab.Transform(cleaned)
		vecSpan.SetAttr("nnz", v.NNZ())
		vecSpan.End()

		_, scoreSpan := tracing.StartChildSpan(ctx, "score")
		probs, err = m.PredictProba(v)
		scoreSpan.End()
	case classifier.KindText:
		m, ok := a.(classifier.TextModel)
		if !ok {
			err = fmt.Errorf("text artifact %s cannot score text", a.Family())
			break
		}
		_, scoreSpan := tracing.StartChildSpan(ctx, "score")
		probs, err = resilience.CallWithTimeout(ctx, s.inferenceTimeout, "predict-"+modelID, func(ctx context.Context) (classifier.Probabilities, error) {
			return m.PredictText(ctx, cleaned)
		})
		scoreSpan.End()
	default:
		err = fmt.Errorf("artifact %s has unknown kind %s", a.Family(), a.Kind())
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("model %s: %w", modelID, errors.Join(apperrors.ErrTimeout, err))
		}
		return Result{}, fmt.Errorf("model %s: %w", modelID, errors.Join(apperrors.ErrModelInference, err))
	}
	if err := probs.Validate(); err != nil {
		return Result{}, fmt.Errorf("model %s: %w", modelID, errors.Join(apperrors.ErrModelInference, err))
	}
	return Result{
		Model: modelID,
		Label: s.label(probs),
		PFake: probs.Fake,
		PReal: probs.Real,
	}, nil
}

func (s *Service) label(p classifier.Probabilities) textnorm.Label {
	return s.tie.Label(p.Fake, p.Real)
}

// Models lists the loaded models in id order.
func (s *Service) Models() []ModelInfo {
	ids := s.registry.IDs()
	out := make([]ModelInfo, 0, len(ids))
	for _, id := range ids {
		a, err := s.registry.Get(id)
		if err != nil {
			continue
		}
		out = append(out, ModelInfo{
			ID:                id,
			Family:            a.Family(),
			Kind:              a.Kind().String(),
			VocabularyVersion: a.VocabularyVersion(),
		})
	}
	return out
}

// VocabularyVersion is the version of the loaded vocabulary, or "".
func (s *Service) VocabularyVersion() string {
	return s.vocab.Version()
}

// Ready reports whether at least one model can be served.
func (s *Service) Ready() bool {
	return s.registry.Sealed() && s.registry.Len() > 0
}

// TiePolicy returns the configured tie policy.
func (s *Service) TiePolicy() TiePolicy {
	return s.tie
}
