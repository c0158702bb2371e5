package scoring

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/scraper"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

// FeedScraper discovers article links in a feed and fetches them.
type FeedScraper interface {
	FeedLinks(ctx context.Context, feedURL string, max int) ([]string, error)
	FetchAll(ctx context.Context, urls []string) []scraper.Result
}

// ArticleColumns is the header of the intermediate article CSV.
var ArticleColumns = []string{"title", "url", "text"}

// ScoreFeed fetches up to max articles linked from feedURL and writes them
// to out as a scored CSV (title, url, text plus the result columns).
// Articles that cannot be fetched are logged and left out.
func ScoreFeed(ctx context.Context, p Predictor, s FeedScraper, feedURL string, max int, out io.Writer, opts Options) (Summary, error) {
	logger := slog.Default().With("component", "feed-scorer", "feed", feedURL)
	if opts.Source == "" {
		opts.Source = "rss"
	}
	links, err := s.FeedLinks(ctx, feedURL, max)
	if err != nil {
		return Summary{}, err
	}
	if len(links) == 0 {
		return Summary{}, fmt.Errorf("feed %s has no article links: %w", feedURL, apperrors.ErrInvalidInput)
	}

	var buf bytes.Buffer
	n, err := WriteArticles(&buf, s.FetchAll(ctx, links))
	if err != nil {
		return Summary{}, err
	}
	logger.Info("articles fetched", "links", len(links), "fetched", n)
	if n == 0 {
		return Summary{}, fmt.Errorf("none of %d articles could be fetched: %w", len(links), scraper.ErrFetch)
	}
	return ScoreCSV(ctx, p, &buf, out, opts)
}

// WriteArticles writes the fetched articles as CSV and returns how many
// were written. Failed results are skipped.
func WriteArticles(w io.Writer, results []scraper.Result) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ArticleColumns); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range results {
		if r.Err != nil {
			slog.Warn("article skipped", "url", r.URL, "error", r.Err)
			continue
		}
		if err := cw.Write([]string{r.Article.Title, r.Article.URL, r.Article.Text}); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}
