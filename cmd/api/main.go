// Command api serves fake-news predictions over HTTP.
//
// Models are loaded once at startup from models.artifactDir (synced from
// S3 first when s3.enabled). Redis caching, the PostgreSQL feedback log and
// Kafka prediction events are optional and switched on in the config.
//
// Usage:
//
//	go run ./cmd/api [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feedback"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/scraper"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := bootstrap.Config(*configPath, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	slog.Info("starting prediction api", "port", cfg.Server.Port, "artifact_dir", cfg.Models.ArtifactDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "api")
		defer shutdownMetrics(context.Background())
	}

	svc, loaded, err := bootstrap.Predictor(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to load models", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("models", func(ctx context.Context) health.ComponentHealth {
		if !svc.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no models loaded"}
		}
		msg := fmt.Sprintf("%d models loaded", loaded.Registry.Len())
		if len(loaded.Skipped) > 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: fmt.Sprintf("%s, %d skipped", msg, len(loaded.Skipped))}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: msg}
	})

	opts := []handler.Option{
		handler.WithMetrics(m),
		handler.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		handler.WithFetcher(scraper.New(cfg.Scraper)),
	}

	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, prediction caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts = append(opts, handler.WithCache(cache.New(redisClient, cfg.Redis.CacheTTL, m,
				cache.WithTiePolicy(svc.TiePolicy()),
				cache.WithComputeTimeout(cfg.Transformer.Timeout),
			)))
			checker.Register("redis", health.Ping(redisClient.Ping, false))
			slog.Info("prediction cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, feedback disabled", "error", err)
		} else {
			defer db.Close()
			store := feedback.NewStore(db)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Error("failed to prepare feedback schema", "error", err)
				os.Exit(1)
			}
			opts = append(opts, handler.WithFeedback(store))
			checker.Register("postgres", health.Ping(db.Ping, false))
			slog.Info("feedback store enabled", "host", cfg.Postgres.Host)
		}
	}

	aggregator := analytics.NewAggregator()
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PredictionEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 500, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		opts = append(opts, handler.WithEvents(collector))

		kcfg := cfg.Kafka
		kcfg.ConsumerGroup += "-api-analytics"
		go func() {
			if err := aggregator.Consume(ctx, kcfg, cfg.Kafka.Topics.PredictionEvents); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		slog.Info("prediction events enabled", "topic", cfg.Kafka.Topics.PredictionEvents)
	} else {
		opts = append(opts, handler.WithEvents(aggregator))
	}

	limiter := middleware.NewLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	go limiter.Cleanup(ctx)

	api := router.New(cfg, router.Deps{
		Handler:   handler.New(svc, opts...),
		Checker:   checker,
		Analytics: analytics.NewHandler(aggregator),
		Metrics:   m,
		Limiter:   limiter,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("prediction api listening", "addr", server.Addr, "models", loaded.Registry.IDs())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("prediction api stopped")
}
