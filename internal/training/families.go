package training

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier/boosting"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier/forest"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier/logistic"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier/transformer"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

// VectorMaker fits a vector model on a vectorised partition.
type VectorMaker func(ctx context.Context, ds classifier.Dataset, cfg config.TrainingConfig) (classifier.VectorModel, error)

// TextMaker builds a text-native model. Its weights live elsewhere; the
// pipeline only persists its manifest and evaluates it.
type TextMaker func(cfg config.TransformerConfig) (classifier.TextModel, error)

type Family struct {
	Kind   classifier.Kind
	Vector VectorMaker
	Text   TextMaker
}

// Families maps model ids to the code that trains them.
var Families = map[string]Family{
	classifier.LogisticRegression: {
		Kind: classifier.KindVector,
		Vector: func(ctx context.Context, ds classifier.Dataset, cfg config.TrainingConfig) (classifier.VectorModel, error) {
			return logistic.Train(ctx, ds, logistic.Config{
				MaxIter:      cfg.Logistic.MaxIter,
				LearningRate: cfg.Logistic.LearningRate,
				L2:           cfg.Logistic.L2,
				Tolerance:    cfg.Logistic.Tolerance,
			})
		},
	},
	classifier.RandomForest: {
		Kind: classifier.KindVector,
		Vector: func(ctx context.Context, ds classifier.Dataset, cfg config.TrainingConfig) (classifier.VectorModel, error) {
			return forest.Train(ctx, ds, forest.Config{
				Trees:          cfg.Forest.Trees,
				MaxDepth:       cfg.Forest.MaxDepth,
				MinSamplesLeaf: cfg.Forest.MinSamplesLeaf,
				Seed:           cfg.Seed,
			})
		},
	},
	classifier.GradientBoosting: {
		Kind: classifier.KindVector,
		Vector: func(ctx context.Context, ds classifier.Dataset, cfg config.TrainingConfig) (classifier.VectorModel, error) {
			return boosting.Train(ctx, ds, boosting.Config{
				Variant:        boosting.Gradient,
				Rounds:         cfg.Boosting.Stages,
				LearningRate:   cfg.Boosting.LearningRate,
				MaxDepth:       cfg.Boosting.MaxDepth,
				MinSamplesLeaf: 1,
				Subsample:      cfg.Boosting.Subsample,
				Seed:           cfg.Seed,
			})
		},
	},
	classifier.XGBoost: {
		Kind: classifier.KindVector,
		Vector: func(ctx context.Context, ds classifier.Dataset, cfg config.TrainingConfig) (classifier.VectorModel, error) {
			return boosting.Train(ctx, ds, boosting.Config{
				Variant:         boosting.XGBoost,
				Rounds:          cfg.XGBoost.Rounds,
				LearningRate:    cfg.XGBoost.LearningRate,
				MaxDepth:        cfg.XGBoost.MaxDepth,
				Lambda:          cfg.XGBoost.Lambda,
				Gamma:           cfg.XGBoost.Gamma,
				MinChildWeight:  cfg.XGBoost.MinChildWeight,
				ColSampleByTree: cfg.XGBoost.ColsampleByTree,
				Seed:            cfg.Seed,
			})
		},
	},
	classifier.Transformer: {
		Kind: classifier.KindText,
		Text: func(cfg config.TransformerConfig) (classifier.TextModel, error) {
			return transformer.New(ManifestFrom(cfg), OptionsFrom(cfg))
		},
	},
}

// Decoders returns the artifact decoders for every family. Text models are
// rebuilt with the runtime transformer settings.
func Decoders(cfg config.TransformerConfig) map[string]classifier.Decoder {
	return DecodersWith(OptionsFrom(cfg))
}

// DecodersWith is Decoders with explicit transformer client options.
func DecodersWith(opts transformer.Options) map[string]classifier.Decoder {
	return map[string]classifier.Decoder{
		classifier.LogisticRegression: logistic.Decode,
		classifier.RandomForest:       forest.Decode,
		classifier.GradientBoosting:   boosting.Decode,
		classifier.XGBoost:            boosting.Decode,
		classifier.Transformer:        transformer.NewDecoder(opts),
	}
}

func ManifestFrom(cfg config.TransformerConfig) transformer.Manifest {
	return transformer.Manifest{
		Endpoint:      cfg.Endpoint,
		ModelName:     cfg.ModelName,
		PositiveLabel: cfg.PositiveLabel,
		MaxTokens:     cfg.MaxTokens,
	}
}

func OptionsFrom(cfg config.TransformerConfig) transformer.Options {
	return transformer.Options{APIKey: cfg.APIKey, Timeout: cfg.Timeout}
}

// LookupFamily returns the family registered under id.
func LookupFamily(id string) (Family, error) {
	f, ok := Families[id]
	if !ok {
		return Family{}, fmt.Errorf("classifier family %q: %w", id, apperrors.ErrUnknownModel)
	}
	return f, nil
}
