// Command scorer runs the trained models outside the HTTP API.
//
// Subcommands:
//
//	scorer csv    -in articles.csv -out scored.csv -model randomforest
//	scorer url    -url https://... -model xgboost
//	scorer rss    -feed https://.../rss.xml -out scored.csv -model xgboost
//	scorer stream -model xgboost
//
// csv appends prediction, proba_fake and proba_real to every row. rss
// fetches the articles linked from a feed and scores them the same way.
// stream consumes kafka.topics.articleIngest and publishes to
// kafka.topics.articleScored until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/scraper"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/resilience"
)

const usage = "usage: scorer <csv|url|rss|stream> [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "configs/development.yaml", "path to config file")
	model := fs.String("model", "randomforest", "model id to score with")
	in := fs.String("in", "", "input CSV with a text column (csv)")
	out := fs.String("out", "", "output CSV, stdout when empty (csv, rss)")
	articleURL := fs.String("url", "", "article URL (url)")
	feedURL := fs.String("feed", "", "RSS or Atom feed URL (rss)")
	maxArticles := fs.Int("max", 20, "maximum articles taken from the feed (rss)")
	workers := fs.Int("workers", 4, "concurrent predictions (csv, rss)")
	fs.Parse(os.Args[2:])

	cfg, err := bootstrap.Config(*configPath, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cmd == "stream" {
		m = metrics.New(nil)
		if cfg.Metrics.Enabled {
			shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "scorer")
			defer shutdownMetrics(context.Background())
		}
	}
	svc, _, err := bootstrap.Predictor(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to load models", "error", err)
		os.Exit(1)
	}
	opts := scoring.Options{Model: *model, Workers: *workers, Metrics: m}

	switch cmd {
	case "csv":
		err = scoreCSV(ctx, svc, *in, *out, opts)
	case "url":
		err = scoreURL(ctx, svc, scraper.New(cfg.Scraper), *articleURL, *model)
	case "rss":
		err = scoreFeed(ctx, svc, scraper.New(cfg.Scraper), *feedURL, *maxArticles, *out, opts)
	case "stream":
		err = stream(ctx, cfg, svc, opts)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("scoring failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func output(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func scoreCSV(ctx context.Context, svc *predictor.Service, in, out string, opts scoring.Options) error {
	if in == "" {
		return fmt.Errorf("csv needs -in")
	}
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := output(out)
	if err != nil {
		return err
	}
	sum, err := scoring.ScoreCSV(ctx, svc, f, w, opts)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	slog.Info("csv scored", "rows", sum.Rows, "fake", sum.Fake, "real", sum.Real, "failed", sum.Failed)
	return nil
}

func scoreFeed(ctx context.Context, svc *predictor.Service, s *scraper.Scraper, feed string, max int, out string, opts scoring.Options) error {
	if feed == "" {
		return fmt.Errorf("rss needs -feed")
	}
	w, err := output(out)
	if err != nil {
		return err
	}
	sum, err := scoring.ScoreFeed(ctx, svc, s, feed, max, w, opts)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	slog.Info("feed scored", "articles", sum.Rows, "fake", sum.Fake, "real", sum.Real, "failed", sum.Failed)
	return nil
}

func scoreURL(ctx context.Context, svc *predictor.Service, s *scraper.Scraper, rawURL, model string) error {
	if rawURL == "" {
		return fmt.Errorf("url needs -url")
	}
	article, err := s.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	res, err := svc.Predict(ctx, article.Text, model)
	if err != nil {
		return err
	}
	res = res.Rounded()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"url":        article.URL,
		"title":      article.Title,
		"extractor":  article.Extractor,
		"model":      res.Model,
		"prediction": res.Label.String(),
		"probabilities": map[string]float64{
			"FAKE": res.PFake,
			"REAL": res.PReal,
		},
	})
}

func stream(ctx context.Context, cfg *config.Config, svc *predictor.Service, opts scoring.Options) error {
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("stream scoring needs kafka.enabled")
	}
	scored := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ArticleScored)
	defer scored.Close()
	deadLetter := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DeadLetter)
	defer deadLetter.Close()

	scorer := scoring.NewStreamScorer(svc, scored, scraper.New(cfg.Scraper), opts)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ArticleIngest, scorer.Handle,
		kafka.WithRetry(resilience.RetryConfig{MaxAttempts: 3}),
		kafka.WithDeadLetter(deadLetter),
	)
	slog.Info("stream scoring started",
		"in", cfg.Kafka.Topics.ArticleIngest,
		"out", scored.Topic(),
		"dead_letter", deadLetter.Topic(),
		"model", opts.Model,
	)
	return consumer.Start(ctx)
}
