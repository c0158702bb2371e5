// Package kafka provides the Kafka clients used for prediction events and
// the article stream, backed by segmentio/kafka-go. Values travel as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/resilience"
)

// MessageHandler is invoked for each message. A nil return commits the
// message; an error triggers the consumer's retry policy.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// DeadLetterPublisher receives messages the handler could not process.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// DeadLetter wraps a failed message.
type DeadLetter struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Offset    int64  `json:"offset"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Error     string `json:"error"`
}

type Consumer struct {
	reader     *kafka.Reader
	topic      string
	logger     *slog.Logger
	handler    MessageHandler
	retry      resilience.RetryConfig
	deadLetter DeadLetterPublisher
}

type ConsumerOption func(*consumerSettings)

type consumerSettings struct {
	startOffset int64
	retry       resilience.RetryConfig
	deadLetter  DeadLetterPublisher
}

// FromBeginning makes a new consumer group start at the oldest message
// instead of the newest.
func FromBeginning() ConsumerOption {
	return func(s *consumerSettings) { s.startOffset = kafka.FirstOffset }
}

// WithRetry retries a failing handler before giving up on the message.
func WithRetry(cfg resilience.RetryConfig) ConsumerOption {
	return func(s *consumerSettings) { s.retry = cfg }
}

// WithDeadLetter publishes messages that exhausted their retries so the
// partition can move on.
func WithDeadLetter(p DeadLetterPublisher) ConsumerOption {
	return func(s *consumerSettings) { s.deadLetter = p }
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	settings := consumerSettings{
		startOffset: kafka.LastOffset,
		retry:       resilience.RetryConfig{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(&settings)
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: settings.startOffset,
	})

	return &Consumer{
		reader:     r,
		topic:      topic,
		logger:     slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler:    handler,
		retry:      settings.retry,
		deadLetter: settings.deadLetter,
	}
}

// Start consumes until ctx is cancelled. A message whose handler keeps
// failing is left uncommitted unless a dead-letter publisher took it.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if !c.process(ctx, msg) {
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// process runs the handler under the retry policy and reports whether the
// message may be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	op := c.topic + "/" + strconv.Itoa(msg.Partition) + "@" + strconv.FormatInt(msg.Offset, 10)
	err := resilience.Retry(ctx, op, c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err == nil {
		return true
	}
	c.logger.Error("failed to process message",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", err,
	)
	if c.deadLetter == nil || ctx.Err() != nil {
		return false
	}
	dl := DeadLetter{
		Topic:     c.topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
		Value:     string(msg.Value),
		Error:     err.Error(),
	}
	if err := c.deadLetter.Publish(ctx, Event{Key: string(msg.Key), Value: dl}); err != nil {
		c.logger.Error("dead-letter publish failed", "offset", msg.Offset, "error", err)
		return false
	}
	c.logger.Warn("message dead-lettered", "partition", msg.Partition, "offset", msg.Offset)
	return true
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
