// Command analytics runs the standalone prediction-analytics service.
//
// It consumes the prediction events published by the API and the scorers,
// aggregates them in memory (volume per model and label, latency
// percentiles, cache hit rate, errors by code) and, when PostgreSQL is
// enabled, snapshots the aggregate periodically so history survives
// restarts.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8081]
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
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8081, "HTTP port")
	snapshotEvery := flag.Duration("snapshot-interval", time.Minute, "how often to persist statistics")
	flag.Parse()

	cfg, err := bootstrap.Config(*configPath, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka.enabled")
		os.Exit(1)
	}
	slog.Info("starting analytics service", "port", *port, "topic", cfg.Kafka.Topics.PredictionEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port+1, "analytics")
		defer shutdownMetrics(context.Background())
	}

	agg := analytics.NewAggregator()
	statsHandler := analytics.NewHandler(agg)
	checker := health.NewChecker()

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			store := aggregator.NewStore(db)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Error("failed to prepare snapshot schema", "error", err)
				os.Exit(1)
			}
			if last, err := store.LatestSnapshot(ctx); err == nil && last != nil {
				slog.Info("previous snapshot found", "total_predictions", last.TotalPredictions)
			}
			store.StartPeriodicSave(ctx, agg, *snapshotEvery)
			statsHandler.WithHistory(store)
			checker.Register("postgres", health.Ping(db.Ping, false))
		}
	}

	kcfg := cfg.Kafka
	kcfg.ConsumerGroup += "-analytics"
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- agg.Consume(ctx, kcfg, cfg.Kafka.Topics.PredictionEvents, kafka.FromBeginning())
	}()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		select {
		case err := <-consumerDone:
			consumerDone <- err
			return health.ComponentHealth{Status: health.StatusDown, Message: fmt.Sprintf("consumer stopped: %v", err)}
		default:
			return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
		}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /analytics", statsHandler.Stats)
	mux.HandleFunc("GET /analytics/history", statsHandler.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.CORS(cfg.CORS)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      chain,
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
