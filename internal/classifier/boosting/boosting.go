// Package boosting implements gradient-boosted trees on log-loss in two
// flavours: classic gradient boosting (first-order split search, Newton
// leaves) and the XGBoost formulation (second-order gain with L2 leaf
// regularisation, split penalty and column subsampling).
package boosting

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier/tree"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feature"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

type Variant string

const (
	Gradient Variant = classifier.GradientBoosting
	XGBoost  Variant = classifier.XGBoost
)

type Config struct {
	Variant         Variant
	Rounds          int
	LearningRate    float64
	MaxDepth        int
	MinSamplesLeaf  int
	Lambda          float64
	Gamma           float64
	MinChildWeight  float64
	ColSampleByTree float64
	// Subsample is the fraction of rows each tree is fitted on; values
	// outside (0,1) use every row.
	Subsample float64
	Seed      int64
}

// GradientDefaults mirrors a stock gradient boosting classifier.
func GradientDefaults() Config {
	return Config{Variant: Gradient, Rounds: 100, LearningRate: 0.1, MaxDepth: 3, MinSamplesLeaf: 1}
}

// XGBoostDefaults mirrors stock XGBoost parameters.
func XGBoostDefaults() Config {
	return Config{Variant: XGBoost, Rounds: 100, LearningRate: 0.3, MaxDepth: 6, Lambda: 1, MinChildWeight: 1, ColSampleByTree: 1}
}

type Model struct {
	Variant      Variant      `json:"variant"`
	Dim          int          `json:"dim"`
	Base         float64      `json:"base"`
	LearningRate float64      `json:"learning_rate"`
	Trees        []*tree.Tree `json:"trees"`
	vocab        string
}

var _ classifier.VectorModel = (*Model)(nil)

func (c Config) criterion() tree.Criterion {
	if c.Variant == XGBoost {
		return tree.SecondOrder{Lambda: c.Lambda, Gamma: c.Gamma, MinChildWeight: c.MinChildWeight}
	}
	return tree.Newton{MinLeafSamples: float64(c.MinSamplesLeaf)}
}

// Train fits cfg.Rounds trees, each on the gradients of the current
// ensemble.
func Train(ctx context.Context, ds classifier.Dataset, cfg Config) (*Model, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("training %s: %w", cfg.Variant, apperrors.ErrEmptyCorpus)
	}
	if cfg.Variant != Gradient && cfg.Variant != XGBoost {
		return nil, fmt.Errorf("unknown boosting variant %q: %w", cfg.Variant, apperrors.ErrInvalidInput)
	}
	if cfg.Rounds <= 0 || cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("rounds and learning rate must be positive: %w", apperrors.ErrInvalidInput)
	}

	n := ds.Len()
	var pos float64
	for i := 0; i < n; i++ {
		pos += ds.Target(i)
	}
	prior := math.Min(math.Max(pos/float64(n), 1e-6), 1-1e-6)

	m := &Model{
		Variant:      cfg.Variant,
		Dim:          ds.Dim,
		Base:         math.Log(prior / (1 - prior)),
		LearningRate: cfg.LearningRate,
		vocab:        ds.VocabularyVersion,
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	crit := cfg.criterion()

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = m.Base
	}
	samples := make([]int, n)
	for i := range samples {
		samples[i] = i
	}
	stats := make([]tree.Stats, n)

	for round := 0; round < cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training %s: %w", cfg.Variant, err)
		}
		for i := 0; i < n; i++ {
			p := classifier.Sigmoid(margin[i])
			stats[i] = tree.Stats{W: 1, G: p - ds.Target(i), H: p * (1 - p)}
		}
		params := tree.Params{MaxDepth: cfg.MaxDepth, Allowed: columnSample(ds.Dim, cfg.ColSampleByTree, rng)}
		t := tree.Build(ds.X, stats, rowSample(samples, cfg.Subsample, rng), crit, params)
		for i := 0; i < n; i++ {
			margin[i] += cfg.LearningRate * t.Predict(ds.X[i])
		}
		m.Trees = append(m.Trees, t)
	}
	return m, nil
}

func rowSample(all []int, frac float64, rng *rand.Rand) []int {
	if frac <= 0 || frac >= 1 {
		return all
	}
	k := int(math.Max(2, math.Round(frac*float64(len(all)))))
	if k >= len(all) {
		return all
	}
	picked := rng.Perm(len(all))[:k]
	sort.Ints(picked)
	out := make([]int, k)
	for i, j := range picked {
		out[i] = all[j]
	}
	return out
}

// columnSample returns a feature filter keeping each column with
// probability frac, or nil when every column is kept.
func columnSample(dim int, frac float64, rng *rand.Rand) func(int) bool {
	if frac <= 0 || frac >= 1 || dim == 0 {
		return nil
	}
	keep := int(math.Max(1, math.Round(frac*float64(dim))))
	perm := rng.Perm(dim)[:keep]
	allowed := make(map[int]struct{}, keep)
	for _, f := range perm {
		allowed[f] = struct{}{}
	}
	return func(f int) bool {
		_, ok := allowed[f]
		return ok
	}
}

func (m *Model) Family() string            { return string(m.Variant) }
func (m *Model) Kind() classifier.Kind     { return classifier.KindVector }
func (m *Model) VocabularyVersion() string { return m.vocab }
func (m *Model) Payload() any              { return m }

func (m *Model) PredictProba(v feature.Vector) (classifier.Probabilities, error) {
	if v.Dim != m.Dim {
		return classifier.Probabilities{}, fmt.Errorf("vector dimension %d, model expects %d", v.Dim, m.Dim)
	}
	z := m.Base
	for _, t := range m.Trees {
		z += m.LearningRate * t.Predict(v)
	}
	return classifier.FromFake(classifier.Sigmoid(z)), nil
}

// Decode is the classifier.Decoder for both boosting families.
func Decode(meta artifact.Meta, raw json.RawMessage) (classifier.Artifact, error) {
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing boosted trees: %w", err)
	}
	if string(m.Variant) != meta.Family {
		return nil, fmt.Errorf("payload variant %q under family %q: %w", m.Variant, meta.Family, artifact.ErrCorrupt)
	}
	for i, t := range m.Trees {
		if t == nil || !t.Valid(m.Dim) {
			return nil, fmt.Errorf("boosted tree %d: %w", i, artifact.ErrCorrupt)
		}
	}
	m.vocab = meta.VocabularyVersion
	return &m, nil
}
