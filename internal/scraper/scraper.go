// Package scraper fetches live news articles and extracts their main text
// so they can be scored like any other document. Pages are fetched with a
// plain HTTP client; JavaScript is never executed.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

var (
	// ErrFetch marks upstream failures: network errors and non-200 replies.
	ErrFetch = errors.New("article fetch failed")
	// ErrTooShort is returned when the extracted text is not longer than the
	// configured minimum.
	ErrTooShort = errors.New("article text too short")
	// ErrBlockedAddress is returned when a URL resolves to a loopback,
	// private or link-local address and private addresses are not allowed.
	ErrBlockedAddress = fmt.Errorf("address not publicly routable: %w", apperrors.ErrInvalidInput)
)

const (
	ExtractorReadability = "readability"
	ExtractorGoquery     = "goquery"
)

type Article struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Byline    string `json:"byline,omitempty"`
	Text      string `json:"text"`
	Extractor string `json:"extractor"`
}

// Result pairs a URL with its article or the error that prevented it.
type Result struct {
	URL     string
	Article Article
	Err     error
}

type Scraper struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     config.ScraperConfig
	logger  *slog.Logger
}

type Option func(*Scraper)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

func New(cfg config.ScraperConfig, opts ...Option) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 << 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	s := &Scraper{
		client:  newClient(cfg),
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		logger:  slog.Default().With("component", "scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch downloads rawURL and extracts its article text. Readability runs
// first; pages it cannot handle fall back to the paragraph text of the
// document.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (Article, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return Article{}, err
	}
	body, err := s.get(ctx, u.String())
	if err != nil {
		return Article{}, err
	}

	art := Article{URL: u.String()}
	if r, err := readability.FromReader(bytes.NewReader(body), u); err == nil {
		art.Title = strings.TrimSpace(r.Title)
		art.Byline = strings.TrimSpace(r.Byline)
		art.Text = collapse(r.TextContent)
		art.Extractor = ExtractorReadability
	} else {
		s.logger.Debug("readability failed", "url", art.URL, "error", err)
	}

	if len(art.Text) <= s.cfg.MinTextLength {
		title, text, err := extractText(body)
		if err != nil {
			return Article{}, fmt.Errorf("parsing %s: %w", art.URL, err)
		}
		if len(text) > len(art.Text) {
			art.Text = text
			art.Extractor = ExtractorGoquery
		}
		if art.Title == "" {
			art.Title = title
		}
	}

	if len(art.Text) <= s.cfg.MinTextLength {
		return Article{}, fmt.Errorf("%s: %d chars, need more than %d: %w",
			art.URL, len(art.Text), s.cfg.MinTextLength, ErrTooShort)
	}
	s.logger.Info("article extracted",
		"url", art.URL,
		"extractor", art.Extractor,
		"chars", len(art.Text),
	)
	return art, nil
}

// FetchAll fetches urls with the configured number of workers. Results keep
// the input order; a failed URL carries its error instead of an article.
func (s *Scraper) FetchAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, u := range urls {
		g.Go(func() error {
			art, err := s.Fetch(gctx, u)
			results[i] = Result{URL: u, Article: art, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

// FeedLinks returns up to max article links from an RSS or Atom feed.
func (s *Scraper) FeedLinks(ctx context.Context, feedURL string, max int) ([]string, error) {
	if _, err := parseURL(feedURL); err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	parser := gofeed.NewParser()
	parser.Client = s.client
	parser.UserAgent = s.cfg.UserAgent
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if errors.Is(err, ErrBlockedAddress) {
		return nil, fmt.Errorf("reading feed %s: %w", feedURL, ErrBlockedAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("reading feed %s: %w", feedURL, errors.Join(ErrFetch, err))
	}
	links := make([]string, 0, min(len(feed.Items), max))
	for _, item := range feed.Items {
		if len(links) == max {
			break
		}
		if item.Link != "" {
			links = append(links, item.Link)
		}
	}
	s.logger.Info("feed read", "feed", feedURL, "items", len(feed.Items), "links", len(links))
	return links, nil
}

func (s *Scraper) get(ctx context.Context, target string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if errors.Is(err, ErrBlockedAddress) {
		return nil, fmt.Errorf("fetching %s: %w", target, ErrBlockedAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, errors.Join(ErrFetch, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d: %w", target, resp.StatusCode, ErrFetch)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", target, errors.Join(ErrFetch, err))
	}
	return body, nil
}

// newClient returns the HTTP client used for every fetch. Unless private
// addresses are allowed, its dialer refuses non-public IPs after name
// resolution, which also covers redirects and DNS names pointing inside
// the network.
func newClient(cfg config.ScraperConfig) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !cfg.AllowPrivateAddresses {
		dialer.Control = publicOnly
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: cfg.Timeout, Transport: transport}
}

var nonPublicPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("64:ff9b::/96"),
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublic(ip) {
		return fmt.Errorf("%s: %w", ip, ErrBlockedAddress)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return false
	}
	for _, p := range nonPublicPrefixes {
		if p.Contains(ip) {
			return false
		}
	}
	return true
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("url %q must be an absolute http(s) url: %w", raw, apperrors.ErrInvalidInput)
	}
	return u, nil
}

// extractText returns the page title and the text of its paragraphs, or of
// the whole body when the page has no paragraphs. Boilerplate elements are
// removed first.
func extractText(html []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "", err
	}
	doc.Find("script, style, nav, header, footer, noscript, iframe, aside, form").Remove()

	title, _ := doc.Find(`meta[property="og:title"]`).Attr("content")
	if title == "" {
		title = doc.Find("title").First().Text()
	}

	var parts []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := collapse(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := strings.Join(dedupe(parts), " ")
	if text == "" {
		text = collapse(doc.Find("body").Text())
	}
	return strings.TrimSpace(title), text, nil
}

// dedupe drops repeated paragraphs such as share prompts.
func dedupe(parts []string) []string {
	seen := make(map[string]struct{}, len(parts))
	out := parts[:0]
	for _, p := range parts {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
