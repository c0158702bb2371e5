package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/scraper"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/kafka"
)

// ArticleEvent is an article published to the ingest topic by a crawler.
// When Text is empty the article is fetched from URL before scoring.
type ArticleEvent struct {
	ID          string    `json:"id"`
	URL         string    `json:"url,omitempty"`
	Title       string    `json:"title,omitempty"`
	Text        string    `json:"text,omitempty"`
	Feed        string    `json:"feed,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// ScoredArticle is published to the scored topic for every article event,
// including the ones that could not be scored.
type ScoredArticle struct {
	ID         string    `json:"id"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Model      string    `json:"model"`
	Prediction string    `json:"prediction,omitempty"`
	ProbaFake  float64   `json:"proba_fake"`
	ProbaReal  float64   `json:"proba_real"`
	Error      string    `json:"error,omitempty"`
	ScoredAt   time.Time `json:"scored_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (scraper.Article, error)
}

// StreamScorer turns article events into scored-article events.
type StreamScorer struct {
	predictor Predictor
	publisher Publisher
	fetcher   Fetcher
	opts      Options
	logger    *slog.Logger
}

// NewStreamScorer builds a scorer. fetcher may be nil, in which case events
// without text are reported as failures.
func NewStreamScorer(p Predictor, pub Publisher, fetcher Fetcher, opts Options) *StreamScorer {
	if opts.Source == "" {
		opts.Source = "stream"
	}
	return &StreamScorer{
		predictor: p,
		publisher: pub,
		fetcher:   fetcher,
		opts:      opts,
		logger:    slog.Default().With("component", "stream-scorer", "model", opts.Model),
	}
}

// Handle is the kafka.MessageHandler for the article topic. Undecodable
// messages and articles that cannot be scored are acknowledged; only
// transient failures (inference errors, timeouts, publish errors) are
// returned so the message is retried.
func (s *StreamScorer) Handle(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[ArticleEvent](value)
	if err != nil {
		s.logger.Error("failed to decode article event", "error", err, "key", string(key))
		return nil
	}
	if event.ID == "" {
		event.ID = string(key)
	}

	out := ScoredArticle{ID: event.ID, URL: event.URL, Title: event.Title, Model: s.opts.Model}
	text := event.Text
	if strings.TrimSpace(text) == "" && event.URL != "" && s.fetcher != nil {
		art, err := s.fetcher.Fetch(ctx, event.URL)
		if err != nil {
			s.logger.Warn("article fetch failed", "id", event.ID, "url", event.URL, "error", err)
			out.Error = err.Error()
			return s.publish(ctx, out)
		}
		text = art.Text
		if out.Title == "" {
			out.Title = art.Title
		}
	}
	if strings.TrimSpace(text) == "" {
		out.Error = "article has no text"
		return s.publish(ctx, out)
	}

	res, err := score(ctx, s.predictor, text, s.opts)
	switch {
	case errors.Is(err, apperrors.ErrModelInference), errors.Is(err, apperrors.ErrTimeout):
		return fmt.Errorf("scoring article %s: %w", event.ID, err)
	case err != nil:
		out.Error = err.Error()
	default:
		out.Prediction = res.Label.String()
		out.ProbaFake = res.Rounded().PFake
		out.ProbaReal = res.Rounded().PReal
	}
	if err := s.publish(ctx, out); err != nil {
		return err
	}
	s.logger.Debug("article scored", "id", out.ID, "prediction", out.Prediction)
	return nil
}

func (s *StreamScorer) publish(ctx context.Context, out ScoredArticle) error {
	out.ScoredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, kafka.Event{Key: out.ID, Value: out}); err != nil {
		return fmt.Errorf("publishing scored article %s: %w", out.ID, err)
	}
	return nil
}
