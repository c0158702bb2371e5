// Package bootstrap holds the startup steps shared by the binaries: config
// and env loading, the artifact mirror and the prediction service built
// from the artifact directory.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/modelstore"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/s3"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/tracing"
)

// Config loads .env, then the YAML file at path, then installs the default
// logger writing to logOut.
func Config(path string, logOut io.Writer) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.SetupWriter(logOut, cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// Mirror returns the S3 artifact mirror, or nil when it is disabled.
func Mirror(ctx context.Context, cfg config.S3Config) (*s3.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := s3.New(ctx, s3.Config{
		Bucket:       cfg.Bucket,
		Prefix:       cfg.Prefix,
		Region:       cfg.Region,
		Profile:      cfg.Profile,
		UsePathStyle: cfg.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("creating artifact mirror: %w", err)
	}
	slog.Info("artifact mirror enabled", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	return store, nil
}

// Predictor loads the enabled artifacts (syncing from the mirror first when
// one is configured) and builds the prediction service over them. m may be
// nil.
func Predictor(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*predictor.Service, *modelstore.Loaded, error) {
	tie, err := predictor.ParseTiePolicy(cfg.Models.TiePolicy)
	if err != nil {
		return nil, nil, err
	}
	opts := modelstore.Options{
		Dir:         cfg.Models.ArtifactDir,
		Enabled:     cfg.Models.Enabled,
		Strict:      cfg.Models.Strict,
		Transformer: cfg.Transformer,
		Retry:       resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		OnBreakerChange: func(name string, from, to resilience.State) {
			m.SetBreakerState(name, int(to))
		},
	}
	mirror, err := Mirror(ctx, cfg.S3)
	if err != nil {
		return nil, nil, err
	}
	if mirror != nil {
		opts.Remote = mirror
	}

	loaded, err := modelstore.Load(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("loading models: %w", err)
	}
	svc := predictor.New(loaded.Registry, loaded.Vocabulary,
		predictor.WithTiePolicy(tie),
		predictor.WithInferenceTimeout(cfg.Transformer.Timeout),
		predictor.WithTracer(tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)),
		predictor.WithMetrics(m),
	)
	slog.Info("prediction service ready",
		"models", len(loaded.Registry.IDs()),
		"skipped", len(loaded.Skipped),
		"tie_policy", tie.String(),
	)
	return svc, loaded, nil
}
