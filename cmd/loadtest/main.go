// Command loadtest drives POST /predict with a fixed pool of workers and
// reports throughput, latency percentiles, cache hit rate and the label mix.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8000 -models randomforest,xgboost -concurrency 20 -duration 30s
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL     string
	Models      []string
	Concurrency int
	Duration    time.Duration
	// RPS caps the total request rate; zero means unthrottled.
	RPS   float64
	Texts []string
}

// Stats is shared by all workers.
type Stats struct {
	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
	labels    map[string]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		statuses:  make(map[int]int64),
		labels:    make(map[string]int64),
	}
}

// Record stores one request outcome. status is 0 when the request failed
// before a response arrived.
func (s *Stats) Record(d time.Duration, status int, label string, cacheHit bool) {
	s.total.Add(1)
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	if status == 0 {
		return
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statuses[status]++
	if label != "" {
		s.labels[label]++
	}
	s.mu.Unlock()
}

var sampleTexts = []string{
	"SHOCKING: scientists admit the moon landing was staged, insiders reveal the secret files",
	"The central bank held interest rates steady on Wednesday, citing slowing inflation",
	"Miracle fruit cures diabetes overnight, doctors hate this one simple trick",
	"Parliament approved the annual budget after a lengthy committee debate",
	"Celebrity secretly replaced by a clone, fans spot the proof in new photos",
	"The city council announced road repairs will begin next month on the main bridge",
	"Leaked memo proves the government is hiding alien technology in the desert",
	"Quarterly earnings rose four percent as exports recovered, the company said",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "base URL of the prediction API")
	models := flag.String("models", "randomforest", "comma-separated model ids to rotate through")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "total requests per second, 0 for unthrottled")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Models:      strings.Split(*models, ","),
		Concurrency: *concurrency,
		Duration:    *duration,
		RPS:         *rps,
		Texts:       sampleTexts,
	}

	fmt.Println("=== Prediction API Load Test ===")
	fmt.Printf("Target:      %s/predict\n", cfg.BaseURL)
	fmt.Printf("Models:      %s\n", strings.Join(cfg.Models, ", "))
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	if cfg.RPS > 0 {
		fmt.Printf("Rate limit:  %.0f req/s\n", cfg.RPS)
	}
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	stats := Run(ctx, cfg, &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	})
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

// Run sends requests until ctx ends.
func Run(ctx context.Context, cfg Config, client *http.Client) *Stats {
	stats := NewStats()
	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Concurrency)
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				if limiter != nil && limiter.Wait(ctx) != nil {
					return nil
				}
				model := cfg.Models[i%len(cfg.Models)]
				text := cfg.Texts[i%len(cfg.Texts)]
				start := time.Now()
				status, label, hit := predict(ctx, client, cfg.BaseURL, model, text)
				if ctx.Err() != nil && status == 0 {
					return nil
				}
				stats.Record(time.Since(start), status, label, hit)
			}
			return nil
		})
	}
	g.Wait()
	return stats
}

func predict(ctx context.Context, client *http.Client, baseURL, model, text string) (status int, label string, cacheHit bool) {
	body, _ := json.Marshal(map[string]string{"text": text, "model": model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return 0, "", false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", false
	}
	defer resp.Body.Close()

	var out struct {
		Prediction string `json:"prediction"`
	}
	if resp.StatusCode == http.StatusOK {
		json.NewDecoder(resp.Body).Decode(&out)
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, out.Prediction, resp.Header.Get("X-Cache") == "HIT"
}

// printReport writes the summary and reports whether any request completed.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", stats.success.Load())
	fmt.Fprintf(w, "Failed:          %d\n", stats.failed.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(stats.failed.Load())/float64(total)*100)
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	if len(latencies) > 0 {
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", sum/time.Duration(len(latencies)))
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "P%-3.0f   %s\n", p, percentile(latencies, p))
		}
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	codes := make([]int, 0, len(stats.statuses))
	for code := range stats.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statuses[code])
	}
	if len(stats.labels) > 0 {
		fmt.Fprintln(w, "\n=== Predictions ===")
		for _, l := range []string{"FAKE", "REAL"} {
			fmt.Fprintf(w, "  %s: %d\n", l, stats.labels[l])
		}
	}

	if total == 0 {
		fmt.Fprintln(w, "\nWARNING: No requests completed. Is the API running?")
		return false
	}
	return true
}

// percentile uses the nearest-rank method on sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
