// Package modelstore loads the fitted vocabulary and the enabled classifier
// artifacts from the artifact directory at startup, optionally pulling them
// from the S3 mirror first, and seals them into a registry.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/training"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/resilience"
)

// Remote is where mirrored artifacts are fetched from.
type Remote interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

type Options struct {
	Dir         string
	Enabled     []string
	Strict      bool
	Transformer config.TransformerConfig
	Remote      Remote
	Retry       resilience.RetryConfig
	// OnBreakerChange observes circuit transitions of text-model clients.
	OnBreakerChange func(name string, from, to resilience.State)
}

// Loaded is the serving state built at startup.
type Loaded struct {
	Vocabulary *vocabulary.Store
	Registry   *classifier.Registry
	// Skipped holds the reason each enabled model was not loaded. Always
	// empty in strict mode.
	Skipped map[string]error
}

// Load builds the serving state. In strict mode any missing or incompatible
// artifact fails startup; otherwise such models are logged and skipped.
func Load(ctx context.Context, opts Options) (*Loaded, error) {
	logger := slog.Default().With("component", "modelstore", "dir", opts.Dir)

	if opts.Remote != nil {
		names := append([]string{vocabulary.FileName}, opts.Enabled...)
		if err := Sync(ctx, opts.Remote, opts.Dir, names, opts.Retry); err != nil {
			if opts.Strict {
				return nil, err
			}
			logger.Warn("artifact sync incomplete, using local files", "error", err)
		}
	}

	out := &Loaded{Registry: classifier.NewRegistry(), Skipped: make(map[string]error)}
	vocab, err := vocabulary.Load(artifact.Path(opts.Dir, vocabulary.FileName))
	switch {
	case err == nil:
		out.Vocabulary = vocab
		logger.Info("vocabulary loaded", "terms", vocab.Len(), "version", vocab.Version())
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("no vocabulary found; only text models can be served")
	default:
		return nil, fmt.Errorf("loading vocabulary: %w", err)
	}

	clientOpts := training.OptionsFrom(opts.Transformer)
	clientOpts.Breaker.OnStateChange = opts.OnBreakerChange
	decoders := training.DecodersWith(clientOpts)
	for _, id := range opts.Enabled {
		a, err := loadOne(opts.Dir, id, vocab, decoders)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			logger.Warn("model skipped", "model", id, "error", err)
			out.Skipped[id] = err
			continue
		}
		if err := out.Registry.Register(id, a); err != nil {
			return nil, err
		}
		logger.Info("model loaded", "model", id, "family", a.Family(), "kind", a.Kind().String())
	}
	out.Registry.Seal()
	if len(out.Registry.IDs()) == 0 {
		logger.Warn("no models loaded")
	}
	return out, nil
}

func loadOne(dir, id string, vocab *vocabulary.Store, decoders map[string]classifier.Decoder) (classifier.Artifact, error) {
	storedID, a, err := classifier.Load(artifact.Path(dir, id), decoders)
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", id, err)
	}
	if storedID != id {
		return nil, fmt.Errorf("artifact %s holds model %q: %w", id, storedID, artifact.ErrCorrupt)
	}
	if a.Kind() != classifier.KindVector {
		return a, nil
	}
	if !vocab.Fitted() {
		return nil, fmt.Errorf("model %s needs a vocabulary: %w", id, apperrors.ErrNotFitted)
	}
	if a.VocabularyVersion() != vocab.Version() {
		return nil, fmt.Errorf("model %s trained on vocabulary %s, loaded %s: %w",
			id, short(a.VocabularyVersion()), short(vocab.Version()), apperrors.ErrVocabularyMismatch)
	}
	return a, nil
}

func short(v string) string {
	if len(v) > 12 {
		return v[:12]
	}
	return v
}

// Sync downloads names (without extension) from remote into dir, verifying
// each file before atomically replacing the local copy. Objects missing
// remotely are skipped.
func Sync(ctx context.Context, remote Remote, dir string, names []string, retry resilience.RetryConfig) error {
	logger := slog.Default().With("component", "modelstore")
	var errs []error
	for _, name := range names {
		file := name + artifact.Extension
		data, err := resilience.RetryValue(ctx, "s3-get-"+name, retry, func() ([]byte, error) {
			data, err := remote.Get(ctx, file)
			if isNotFound(err) {
				return nil, nil
			}
			return data, err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("fetching %s: %w", file, err))
			continue
		}
		if data == nil {
			logger.Info("artifact not mirrored", "name", file)
			continue
		}
		if _, _, err := artifact.Decode(data); err != nil {
			errs = append(errs, fmt.Errorf("remote %s: %w", file, err))
			continue
		}
		if err := artifact.WriteAtomic(artifact.Path(dir, name), data); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Info("artifact synced", "name", file, "bytes", len(data))
	}
	return errors.Join(errs...)
}
