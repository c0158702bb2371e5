// Package testutil builds small trained artifact directories for the tests
// of the serving and scoring packages.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/training"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
)

var FakeWords = []string{"shocking", "secret", "exposed", "miracle", "hoax", "aliens", "conspiracy", "banned"}
var RealWords = []string{"parliament", "budget", "committee", "quarterly", "minister", "report", "election", "economy"}

// FakeText and RealText are scored confidently by models trained on Corpus.
const (
	FakeText = "SHOCKING secret EXPOSED: miracle hoax the aliens conspiracy banned!"
	RealText = "The parliament budget committee published its quarterly report on the economy."
)

// Corpus returns n labelled documents; every third one is FAKE.
func Corpus(n int) []textnorm.RawDocument {
	docs := make([]textnorm.RawDocument, 0, n)
	for i := 0; i < n; i++ {
		words, label := RealWords, textnorm.Real
		if i%3 == 0 {
			words, label = FakeWords, textnorm.Fake
		}
		text := fmt.Sprintf("%s %s %s! http://example.com/%d %s",
			strings.ToUpper(words[i%len(words)]), words[(i+1)%len(words)], words[(i+3)%len(words)], i, words[(i+5)%len(words)])
		l := label
		docs = append(docs, textnorm.RawDocument{Text: text, Label: &l})
	}
	return docs
}

// TrainingConfig keeps every family small enough to fit in milliseconds.
func TrainingConfig() config.TrainingConfig {
	return config.TrainingConfig{
		Seed:           7,
		TestRatio:      0.2,
		MaxTerms:       100,
		Balance:        true,
		SMOTENeighbors: 5,
		Logistic:       config.LogisticConfig{MaxIter: 300, LearningRate: 1, L2: 1e-4, Tolerance: 1e-6},
		Forest:         config.ForestConfig{Trees: 10, MaxDepth: 8, MinSamplesLeaf: 1},
		Boosting:       config.BoostingConfig{Stages: 10, LearningRate: 0.3, MaxDepth: 3, Subsample: 1},
		XGBoost:        config.XGBoostConfig{Rounds: 10, LearningRate: 0.3, MaxDepth: 4, Lambda: 1, MinChildWeight: 0.1, ColsampleByTree: 1},
	}
}

// ArtifactDir trains the given vector families on one shared vocabulary and
// persists them into dir. It returns that vocabulary.
func ArtifactDir(tb testing.TB, dir string, ids ...string) *vocabulary.Store {
	tb.Helper()
	ctx := context.Background()
	corpus := Corpus(90)
	var vocab *vocabulary.Store
	for _, id := range ids {
		var opts []training.Option
		if vocab != nil {
			opts = append(opts, training.WithVocabulary(vocab))
		}
		p, err := training.NewPipeline(id, TrainingConfig(), config.TransformerConfig{}, opts...)
		if err != nil {
			tb.Fatalf("pipeline %s: %v", id, err)
		}
		res, err := p.Train(ctx, corpus)
		if err != nil {
			tb.Fatalf("training %s: %v", id, err)
		}
		if err := training.Persist(ctx, dir, res, nil); err != nil {
			tb.Fatalf("persisting %s: %v", id, err)
		}
		if res.Vocabulary != nil {
			vocab = res.Vocabulary
		}
	}
	return vocab
}
