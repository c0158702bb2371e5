package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/kafka"
)

// Publisher is the part of kafka.Producer the collector needs.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector accumulates prediction events and flushes them to Kafka either
// when the batch reaches batchSize or after flushInterval. Track never
// blocks the request path: it only wakes the flush loop, and while Kafka is
// unavailable the buffer holds at most three batches, oldest dropped first.
type Collector struct {
	publisher     Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	flushing      sync.Mutex
	logger        *slog.Logger
	wake          chan struct{}
	done          chan struct{}
}

func NewCollector(publisher Publisher, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop, which runs until ctx is
// cancelled and then flushes once more.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Flush(ctx)
			case <-c.wake:
				c.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track buffers an event keyed by model, so events of one model stay
// ordered within a partition.
func (c *Collector) Track(event PredictionEvent) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: event.Model, Value: event})
	dropped := c.trimLocked()
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if dropped > 0 {
		c.logger.Warn("buffer overflow, oldest events dropped", "dropped", dropped)
	}
	if full {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

// trimLocked drops the oldest events beyond three batches and returns how
// many were dropped. c.mu must be held.
func (c *Collector) trimLocked() int {
	limit := c.batchSize * 3
	if len(c.buffer) <= limit {
		return 0
	}
	dropped := len(c.buffer) - limit
	c.buffer = append(c.buffer[:0], c.buffer[dropped:]...)
	return dropped
}

// Close waits for the flush loop started by Start to finish.
func (c *Collector) Close() {
	<-c.done
}

func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Flush publishes everything buffered so far. Failed batches are put back
// at the front of the buffer, which is capped at three batches.
func (c *Collector) Flush(ctx context.Context) {
	c.flushing.Lock()
	defer c.flushing.Unlock()

	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		dropped := c.trimLocked()
		c.mu.Unlock()
		if dropped > 0 {
			c.logger.Warn("buffer overflow, oldest events dropped", "dropped", dropped)
		}
		return
	}

	c.logger.Debug("batch flushed", "events", len(batch))
}
