package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalPredictions  int64                 `json:"total_predictions"`
	Failed            int64                 `json:"failed"`
	CacheHits         int64                 `json:"cache_hits"`
	CacheMisses       int64                 `json:"cache_misses"`
	ByModel           map[string]ModelStats `json:"by_model"`
	ByType            map[EventType]int64   `json:"by_type"`
	ErrorsByCode      map[string]int64      `json:"errors_by_code"`
	AvgLatencyMs      float64               `json:"avg_latency_ms"`
	P50LatencyMs      int64                 `json:"p50_latency_ms"`
	P95LatencyMs      int64                 `json:"p95_latency_ms"`
	P99LatencyMs      int64                 `json:"p99_latency_ms"`
	PredictionsPerMin float64               `json:"predictions_per_minute"`
}

type ModelStats struct {
	Fake      int64   `json:"fake"`
	Real      int64   `json:"real"`
	FakeShare float64 `json:"fake_share"`
	MeanPFake float64 `json:"mean_p_fake"`
}

type modelAcc struct {
	fake, real int64
	sumPFake   float64
}

// Aggregator folds prediction events into running statistics.
type Aggregator struct {
	mu        sync.RWMutex
	total     int64
	failed    int64
	hits      int64
	misses    int64
	models    map[string]*modelAcc
	types     map[EventType]int64
	errors    map[string]int64
	latencies []int64
	next      int
	startTime time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		models:    make(map[string]*modelAcc),
		types:     make(map[EventType]int64),
		errors:    make(map[string]int64),
		latencies: make([]int64, 0, 1024),
		startTime: time.Now(),
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

// Consume folds the events of topic into a until ctx ends.
func (a *Aggregator) Consume(ctx context.Context, cfg config.KafkaConfig, topic string, opts ...kafka.ConsumerOption) error {
	consumer := kafka.NewConsumer(cfg, topic, HandleEvent(a), opts...)
	a.logger.Info("analytics aggregator consuming", "topic", topic, "group", cfg.ConsumerGroup)
	return consumer.Start(ctx)
}

// Track records e directly, for processes that aggregate their own events
// without a broker.
func (a *Aggregator) Track(e PredictionEvent) {
	a.Record(e)
}

// HandleEvent decodes prediction events from Kafka. Undecodable messages are
// logged and acknowledged so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[PredictionEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode prediction event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one event into the statistics.
func (a *Aggregator) Record(e PredictionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.types[e.Type]++
	if e.Type == EventFeedback {
		return
	}
	a.total++
	if e.CacheHit {
		a.hits++
	} else {
		a.misses++
	}
	if e.ErrorCode != "" {
		a.failed++
		a.errors[e.ErrorCode]++
		return
	}

	m := a.models[e.Model]
	if m == nil {
		m = &modelAcc{}
		a.models[e.Model] = m
	}
	if e.Label == "FAKE" {
		m.fake++
	} else {
		m.real++
	}
	m.sumPFake += e.PFake

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.next] = e.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalPredictions: a.total,
		Failed:           a.failed,
		CacheHits:        a.hits,
		CacheMisses:      a.misses,
		ByModel:          make(map[string]ModelStats, len(a.models)),
		ByType:           make(map[EventType]int64, len(a.types)),
		ErrorsByCode:     make(map[string]int64, len(a.errors)),
	}
	for id, m := range a.models {
		n := m.fake + m.real
		ms := ModelStats{Fake: m.fake, Real: m.real}
		if n > 0 {
			ms.FakeShare = float64(m.fake) / float64(n)
			ms.MeanPFake = m.sumPFake / float64(n)
		}
		stats.ByModel[id] = ms
	}
	for t, n := range a.types {
		stats.ByType[t] = n
	}
	for code, n := range a.errors {
		stats.ErrorsByCode[code] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.PredictionsPerMin = float64(stats.TotalPredictions) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
