// Package forest implements the random forest classifier: bagged Gini
// trees with a random subset of the present features tried at each split.
package forest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier/tree"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feature"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

const Family = classifier.RandomForest

type Config struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
}

type Model struct {
	Dim   int          `json:"dim"`
	Trees []*tree.Tree `json:"trees"`
	vocab string
}

var _ classifier.VectorModel = (*Model)(nil)

// Train fits cfg.Trees trees, each on a bootstrap sample of ds.
func Train(ctx context.Context, ds classifier.Dataset, cfg Config) (*Model, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("training random forest: %w", apperrors.ErrEmptyCorpus)
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	n := ds.Len()
	crit := tree.Gini{MinLeafWeight: float64(cfg.MinSamplesLeaf)}
	params := tree.Params{
		MaxDepth:    cfg.MaxDepth,
		MaxFeatures: sqrtFeatures,
		Rand:        rng,
	}

	m := &Model{Dim: ds.Dim, Trees: make([]*tree.Tree, 0, cfg.Trees), vocab: ds.VocabularyVersion}
	counts := make([]int, n)
	stats := make([]tree.Stats, n)
	for t := 0; t < cfg.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training random forest: %w", err)
		}
		for i := range counts {
			counts[i] = 0
		}
		for i := 0; i < n; i++ {
			counts[rng.Intn(n)]++
		}
		samples := make([]int, 0, n)
		for i, c := range counts {
			if c == 0 {
				stats[i] = tree.Stats{}
				continue
			}
			w := float64(c)
			stats[i] = tree.Stats{W: w, G: w * ds.Target(i)}
			samples = append(samples, i)
		}
		m.Trees = append(m.Trees, tree.Build(ds.X, stats, samples, crit, params))
	}
	return m, nil
}

func sqrtFeatures(candidates int) int {
	k := int(math.Ceil(math.Sqrt(float64(candidates))))
	if k < 1 {
		k = 1
	}
	return k
}

func (m *Model) Family() string            { return Family }
func (m *Model) Kind() classifier.Kind     { return classifier.KindVector }
func (m *Model) VocabularyVersion() string { return m.vocab }
func (m *Model) Payload() any              { return m }

// PredictProba averages the leaf class frequencies of all trees.
func (m *Model) PredictProba(v feature.Vector) (classifier.Probabilities, error) {
	if v.Dim != m.Dim {
		return classifier.Probabilities{}, fmt.Errorf("vector dimension %d, model expects %d", v.Dim, m.Dim)
	}
	if len(m.Trees) == 0 {
		return classifier.Probabilities{}, fmt.Errorf("random forest has no trees")
	}
	var sum float64
	for _, t := range m.Trees {
		sum += t.Predict(v)
	}
	return classifier.FromFake(sum / float64(len(m.Trees))), nil
}

// Decode is the classifier.Decoder for random forests.
func Decode(meta artifact.Meta, raw json.RawMessage) (classifier.Artifact, error) {
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing random forest: %w", err)
	}
	for i, t := range m.Trees {
		if t == nil || !t.Valid(m.Dim) {
			return nil, fmt.Errorf("random forest tree %d: %w", i, artifact.ErrCorrupt)
		}
	}
	m.vocab = meta.VocabularyVersion
	return &m, nil
}
