package scoring

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/scraper"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

type stubFeed struct {
	links    []string
	articles map[string]scraper.Article
	max      int
}

func (f *stubFeed) FeedLinks(_ context.Context, _ string, max int) ([]string, error) {
	f.max = max
	return f.links, nil
}

func (f *stubFeed) FetchAll(_ context.Context, urls []string) []scraper.Result {
	out := make([]scraper.Result, len(urls))
	for i, u := range urls {
		a, ok := f.articles[u]
		if !ok {
			out[i] = scraper.Result{URL: u, Err: scraper.ErrTooShort}
			continue
		}
		out[i] = scraper.Result{URL: u, Article: a}
	}
	return out
}

func TestScoreFeed(t *testing.T) {
	feed := &stubFeed{
		links: []string{"https://news.test/a", "https://news.test/b", "https://news.test/stub"},
		articles: map[string]scraper.Article{
			"https://news.test/a": {URL: "https://news.test/a", Title: "Aliens", Text: "aliens, again"},
			"https://news.test/b": {URL: "https://news.test/b", Title: "Budget", Text: "the budget passed"},
		},
	}
	var out bytes.Buffer
	ev := &sink{}
	sum, err := ScoreFeed(context.Background(), keywordPredictor{}, feed, "https://news.test/feed.xml", 10, &out, Options{Model: "randomforest", Workers: 2, Events: ev})
	if err != nil {
		t.Fatal(err)
	}
	if feed.max != 10 || sum.Rows != 2 || sum.Fake != 1 || sum.Real != 1 {
		t.Errorf("max %d summary %+v", feed.max, sum)
	}
	rows, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if got := len(rows[0]); got != len(ArticleColumns)+len(ResultColumns) {
		t.Errorf("header %v", rows[0])
	}
	if rows[1][0] != "Aliens" || rows[1][3] != "Fake" {
		t.Errorf("first row %v", rows[1])
	}
	if len(ev.events) != 2 || ev.events[0].Source != "rss" {
		t.Errorf("events %+v", ev.events)
	}
}

func TestScoreFeedNothingFetched(t *testing.T) {
	feed := &stubFeed{links: []string{"https://news.test/x"}}
	_, err := ScoreFeed(context.Background(), keywordPredictor{}, feed, "f", 5, &bytes.Buffer{}, Options{Model: "randomforest"})
	if !errors.Is(err, scraper.ErrFetch) {
		t.Errorf("err = %v, want ErrFetch", err)
	}

	_, err = ScoreFeed(context.Background(), keywordPredictor{}, &stubFeed{}, "f", 5, &bytes.Buffer{}, Options{Model: "randomforest"})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
