// Package training turns labelled articles into persisted artifacts: it
// cleans and splits the corpus, fits the vocabulary on the training
// partition, optionally rebalances it with SMOTE, fits one classifier
// family and evaluates it on the held-out partition.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

// Mirror receives a copy of every persisted artifact file.
type Mirror interface {
	PutFile(ctx context.Context, name, path string) error
}

// Pipeline trains one classifier family. It is used for a single run at a
// time.
type Pipeline struct {
	modelID     string
	family      Family
	cfg         config.TrainingConfig
	transformer config.TransformerConfig
	vocab       *vocabulary.Store
	stopWords   map[string]struct{}
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithVocabulary reuses a frozen vocabulary instead of fitting a new one, so
// the new artifact stays compatible with models already trained on it.
func WithVocabulary(s *vocabulary.Store) Option {
	return func(p *Pipeline) { p.vocab = s }
}

// WithStopWords replaces the default English stop words.
func WithStopWords(words map[string]struct{}) Option {
	return func(p *Pipeline) { p.stopWords = words }
}

// NewPipeline returns a pipeline for modelID, or ErrUnknownModel when no
// family is registered under it.
func NewPipeline(modelID string, cfg config.TrainingConfig, tcfg config.TransformerConfig, opts ...Option) (*Pipeline, error) {
	fam, err := LookupFamily(modelID)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		modelID:     modelID,
		family:      fam,
		cfg:         cfg,
		transformer: tcfg,
		stopWords:   vocabulary.DefaultStopWords(),
		logger:      slog.Default().With("component", "training", "model", modelID),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Result is everything a training run produces.
type Result struct {
	ModelID    string
	Artifact   classifier.Artifact
	Vocabulary *vocabulary.Store
	Report     Report
	TrainSize  int
	TestSize   int
	Synthetic  int
	Duration   time.Duration
}

type example struct {
	text  string
	label textnorm.Label
}

// Train runs the pipeline on corpus. Documents without a label or whose
// cleaned text is empty are dropped.
func (p *Pipeline) Train(ctx context.Context, corpus []textnorm.RawDocument) (*Result, error) {
	start := time.Now()
	examples := make([]example, 0, len(corpus))
	for _, d := range corpus {
		if d.Label == nil {
			continue
		}
		cleaned := textnorm.Clean(d.Text)
		if cleaned == "" {
			continue
		}
		examples = append(examples, example{text: cleaned, label: *d.Label})
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("no usable documents among %d: %w", len(corpus), apperrors.ErrEmptyCorpus)
	}
	if dropped := len(corpus) - len(examples); dropped > 0 {
		p.logger.Info("dropped unusable documents", "dropped", dropped)
	}

	trainIdx, testIdx := Split(len(examples), p.cfg.TestRatio, p.cfg.Seed)
	p.logger.Info("split corpus", "train", len(trainIdx), "test", len(testIdx), "seed", p.cfg.Seed, "test_ratio", p.cfg.TestRatio)

	res := &Result{ModelID: p.modelID, TrainSize: len(trainIdx), TestSize: len(testIdx), Vocabulary: p.vocab}
	var err error
	switch p.family.Kind {
	case classifier.KindText:
		err = p.trainText(ctx, examples, testIdx, res)
	default:
		err = p.trainVector(ctx, examples, trainIdx, testIdx, res)
	}
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	p.logger.Info("training finished",
		"accuracy", res.Report.Accuracy,
		"macro_f1", res.Report.MacroAvg.F1,
		"duration", res.Duration,
	)
	return res, nil
}

func (p *Pipeline) trainVector(ctx context.Context, examples []example, trainIdx, testIdx []int, res *Result) error {
	vocab := p.vocab
	if vocab == nil {
		texts := make([]string, len(trainIdx))
		for i, j := range trainIdx {
			texts[i] = examples[j].text
		}
		v, err := vocabulary.Fit(texts, p.cfg.MaxTerms, p.stopWords)
		if err != nil {
			return fmt.Errorf("fitting vocabulary: %w", err)
		}
		vocab = v
		p.logger.Info("fitted vocabulary", "terms", vocab.Len(), "version", vocab.Version())
	} else if !vocab.Fitted() {
		return fmt.Errorf("reused vocabulary: %w", apperrors.ErrNotFitted)
	}
	res.Vocabulary = vocab

	ds := classifier.Dataset{Dim: vocab.Len(), VocabularyVersion: vocab.Version()}
	for _, j := range trainIdx {
		ds.X = append(ds.X, vocab.Transform(examples[j].text))
		ds.Y = append(ds.Y, examples[j].label)
	}
	if p.cfg.Balance {
		before := ds.Len()
		ds = SMOTE(ds, p.cfg.SMOTENeighbors, p.cfg.Seed)
		res.Synthetic = ds.Len() - before
		p.logger.Info("balanced training partition", "synthetic", res.Synthetic, "k", p.cfg.SMOTENeighbors)
	}

	model, err := p.family.Vector(ctx, ds, p.cfg)
	if err != nil {
		return fmt.Errorf("fitting %s: %w", p.modelID, err)
	}
	res.Artifact = model

	truth := make([]textnorm.Label, 0, len(testIdx))
	predicted := make([]textnorm.Label, 0, len(testIdx))
	for _, j := range testIdx {
		probs, err := model.PredictProba(vocab.Transform(examples[j].text))
		if err != nil {
			return fmt.Errorf("evaluating %s: %w", p.modelID, err)
		}
		truth = append(truth, examples[j].label)
		predicted = append(predicted, decide(probs))
	}
	res.Report = Evaluate(truth, predicted)
	return nil
}

func (p *Pipeline) trainText(ctx context.Context, examples []example, testIdx []int, res *Result) error {
	model, err := p.family.Text(p.transformer)
	if err != nil {
		return fmt.Errorf("building %s: %w", p.modelID, err)
	}
	res.Artifact = model

	truth := make([]textnorm.Label, 0, len(testIdx))
	predicted := make([]textnorm.Label, 0, len(testIdx))
	for _, j := range testIdx {
		probs, err := model.PredictText(ctx, examples[j].text)
		if err != nil {
			return fmt.Errorf("evaluating %s: %w", p.modelID, errors.Join(apperrors.ErrModelInference, err))
		}
		truth = append(truth, examples[j].label)
		predicted = append(predicted, decide(probs))
	}
	res.Report = Evaluate(truth, predicted)
	return nil
}

// decide labels FAKE only when P(FAKE) strictly exceeds P(REAL).
func decide(p classifier.Probabilities) textnorm.Label {
	if p.Fake > p.Real {
		return textnorm.Fake
	}
	return textnorm.Real
}

// PersistOption configures Persist.
type PersistOption func(*persistOptions)

type persistOptions struct {
	replaceVocabulary bool
}

// ReplaceVocabulary lets Persist overwrite a vocabulary of a different
// version. Every classifier trained on the previous vocabulary stops
// loading afterwards.
func ReplaceVocabulary() PersistOption {
	return func(o *persistOptions) { o.replaceVocabulary = true }
}

// CheckVocabulary returns ErrVocabularyMismatch when dir already holds a
// vocabulary whose version differs from version. A missing vocabulary is
// fine; an unreadable one is reported as is.
func CheckVocabulary(dir, version string) error {
	existing, err := vocabulary.Load(artifact.Path(dir, vocabulary.FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading existing vocabulary: %w", err)
	}
	if version != "" && existing.Version() == version {
		return nil
	}
	return fmt.Errorf("%s already holds vocabulary %s, refusing to replace it with %s: %w",
		dir, existing.Version(), version, apperrors.ErrVocabularyMismatch)
}

// Persist writes the classifier of res and then its vocabulary into dir
// and mirrors both. A different vocabulary already in dir is kept, and
// nothing is written, unless ReplaceVocabulary is given.
func Persist(ctx context.Context, dir string, res *Result, mirror Mirror, opts ...PersistOption) error {
	var o persistOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := slog.Default().With("component", "training", "model", res.ModelID)

	var vocabPath string
	if res.Vocabulary != nil {
		vocabPath = artifact.Path(dir, vocabulary.FileName)
		err := CheckVocabulary(dir, res.Vocabulary.Version())
		if err != nil {
			if !o.replaceVocabulary {
				return err
			}
			logger.Warn("replacing vocabulary; artifacts trained on the previous one will fail to load",
				"version", res.Vocabulary.Version(),
				"reason", err,
			)
		}
	}

	path := artifact.Path(dir, res.ModelID)
	if err := classifier.Save(path, res.ModelID, res.Artifact); err != nil {
		return err
	}
	written := []string{path}
	if vocabPath != "" {
		if err := res.Vocabulary.Save(vocabPath); err != nil {
			return err
		}
		written = append(written, vocabPath)
	}
	logger.Info("persisted artifacts", "dir", dir, "files", len(written))

	if mirror == nil {
		return nil
	}
	for _, f := range written {
		if err := mirror.PutFile(ctx, filepath.Base(f), f); err != nil {
			return fmt.Errorf("mirroring %s: %w", f, err)
		}
	}
	return nil
}
