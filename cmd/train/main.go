// Command train fits one or more classifier families on labelled CSV files
// and writes their artifacts to the artifact directory.
//
// Families listed together share one vocabulary: the first vector family
// fits it and the rest reuse it, so all of them can be served side by side.
// With -reuse-vocabulary the vocabulary already in the artifact directory
// is reused instead. A run that would fit a new vocabulary over an existing
// one fails unless -replace-vocabulary is given, since the models trained
// on the old vocabulary would stop loading.
//
// Usage:
//
//	go run ./cmd/train -family randomforest,xgboost -data fake.csv:1 -data true.csv:0
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/training"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
)

// sourceList collects repeated -data flags.
type sourceList []training.Source

func (s *sourceList) String() string {
	parts := make([]string, len(*s))
	for i, src := range *s {
		parts[i] = src.Path
	}
	return strings.Join(parts, ",")
}

func (s *sourceList) Set(v string) error {
	src, err := training.ParseSource(v)
	if err != nil {
		return err
	}
	*s = append(*s, src)
	return nil
}

func main() {
	var sources sourceList
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	families := flag.String("family", classifier.RandomForest, "comma-separated model ids to train")
	flag.Var(&sources, "data", "training CSV as path or path:label (repeatable)")
	outDir := flag.String("out", "", "artifact directory (default models.artifactDir)")
	reuse := flag.Bool("reuse-vocabulary", false, "reuse the vocabulary already in the artifact directory")
	replace := flag.Bool("replace-vocabulary", false, "overwrite a different vocabulary already in the artifact directory")
	flag.Parse()

	cfg, err := bootstrap.Config(*configPath, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "at least one -data file is required")
		flag.Usage()
		os.Exit(2)
	}
	dir := cfg.Models.ArtifactDir
	if *outDir != "" {
		dir = *outDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *reuse && *replace {
		fmt.Fprintln(os.Stderr, "-reuse-vocabulary and -replace-vocabulary are mutually exclusive")
		os.Exit(2)
	}
	mode := keepVocabulary
	switch {
	case *reuse:
		mode = reuseVocabulary
	case *replace:
		mode = replaceVocabulary
	}

	if err := run(ctx, cfg, dir, strings.Split(*families, ","), sources, mode); err != nil {
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}
}

// vocabularyMode decides what happens to a vocabulary already in the
// artifact directory.
type vocabularyMode int

const (
	// keepVocabulary refuses to fit a new vocabulary over an existing one.
	keepVocabulary vocabularyMode = iota
	reuseVocabulary
	replaceVocabulary
)

func run(ctx context.Context, cfg *config.Config, dir string, ids []string, sources []training.Source, mode vocabularyMode) error {
	if mode == keepVocabulary && fitsVocabulary(ids) {
		if err := training.CheckVocabulary(dir, ""); err != nil {
			return fmt.Errorf("%w (pass -reuse-vocabulary or -replace-vocabulary)", err)
		}
	}

	corpus, err := training.LoadCorpus(sources, cfg.Training.SampleFraction, cfg.Training.Seed)
	if err != nil {
		return err
	}
	slog.Info("corpus loaded", "documents", len(corpus), "files", len(sources))

	mirror, err := bootstrap.Mirror(ctx, cfg.S3)
	if err != nil {
		return err
	}
	var m training.Mirror
	if mirror != nil {
		m = mirror
	}

	var vocab *vocabulary.Store
	if mode == reuseVocabulary {
		vocab, err = vocabulary.Load(artifact.Path(dir, vocabulary.FileName))
		if err != nil {
			return fmt.Errorf("loading vocabulary to reuse: %w", err)
		}
		slog.Info("reusing vocabulary", "version", vocab.Version(), "terms", vocab.Len())
	}

	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		var opts []training.Option
		if vocab != nil {
			opts = append(opts, training.WithVocabulary(vocab))
		}
		p, err := training.NewPipeline(id, cfg.Training, cfg.Transformer, opts...)
		if err != nil {
			return err
		}
		res, err := p.Train(ctx, corpus)
		if err != nil {
			return fmt.Errorf("training %s: %w", id, err)
		}
		var popts []training.PersistOption
		if mode == replaceVocabulary {
			popts = append(popts, training.ReplaceVocabulary())
		}
		if err := training.Persist(ctx, dir, res, m, popts...); err != nil {
			return fmt.Errorf("persisting %s: %w", id, err)
		}
		if res.Vocabulary != nil {
			vocab = res.Vocabulary
		}
		fmt.Printf("== %s (train %d, test %d, synthetic %d, %s)\n%s\n",
			id, res.TrainSize, res.TestSize, res.Synthetic, res.Duration.Round(time.Millisecond), res.Report)
	}
	return nil
}

// fitsVocabulary reports whether any of ids is a vector family.
func fitsVocabulary(ids []string) bool {
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" && id != classifier.Transformer {
			return true
		}
	}
	return false
}
