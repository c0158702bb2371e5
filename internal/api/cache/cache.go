// Package cache memoises predictions in Redis. Entries are keyed by model,
// vocabulary version and the cleaned text, so retraining the vocabulary
// makes old entries unreachable without a flush. Only the probabilities are
// stored; the label is derived on read with the configured tie policy.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/redis"
)

const keyPrefix = "predict:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

const defaultComputeTimeout = 30 * time.Second

type entry struct {
	Model string  `json:"model"`
	PFake float64 `json:"p_fake"`
	PReal float64 `json:"p_real"`
}

// PredictionCache is a Redis-backed prediction cache with per-key request
// coalescing.
type PredictionCache struct {
	store          Store
	ttl            time.Duration
	tie            predictor.TiePolicy
	computeTimeout time.Duration
	group          singleflight.Group
	metrics        *metrics.Metrics
	logger         *slog.Logger
	hits           atomic.Int64
	misses         atomic.Int64
}

type Option func(*PredictionCache)

// WithTiePolicy sets the policy used to label cached probabilities. It
// should match the predictor's.
func WithTiePolicy(p predictor.TiePolicy) Option {
	return func(c *PredictionCache) { c.tie = p }
}

// WithComputeTimeout bounds a coalesced computation, which runs detached
// from the cancellation of the request that started it.
func WithComputeTimeout(d time.Duration) Option {
	return func(c *PredictionCache) {
		if d > 0 {
			c.computeTimeout = d
		}
	}
}

// New returns a cache over store. Entries expire after ttl; m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics, opts ...Option) *PredictionCache {
	c := &PredictionCache{
		store:          store,
		ttl:            ttl,
		computeTimeout: defaultComputeTimeout,
		metrics:        m,
		logger:         slog.Default().With("component", "prediction-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a cached prediction. Redis errors count as misses.
func (c *PredictionCache) Get(ctx context.Context, model, vocabVersion, cleaned string) (predictor.Result, bool) {
	key := buildKey(model, vocabVersion, cleaned)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return predictor.Result{}, false
	}
	var e entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return predictor.Result{}, false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	return predictor.Result{Model: e.Model, Label: c.tie.Label(e.PFake, e.PReal), PFake: e.PFake, PReal: e.PReal}, true
}

func (c *PredictionCache) Set(ctx context.Context, vocabVersion, cleaned string, r predictor.Result) {
	key := buildKey(r.Model, vocabVersion, cleaned)
	data, err := json.Marshal(entry{Model: r.Model, PFake: r.PFake, PReal: r.PReal})
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute serves from the cache or runs compute once per key, even
// when many requests for the same text arrive together. compute runs under
// a context that keeps the values of ctx but not its cancellation, bounded
// by the compute timeout, so one caller going away does not fail the
// others; each caller still stops waiting when its own ctx is done. Errors
// are not cached.
func (c *PredictionCache) GetOrCompute(
	ctx context.Context,
	model, vocabVersion, cleaned string,
	compute func(ctx context.Context) (predictor.Result, error),
) (predictor.Result, bool, error) {
	if r, ok := c.Get(ctx, model, vocabVersion, cleaned); ok {
		return r, true, nil
	}
	key := buildKey(model, vocabVersion, cleaned)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		r, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		c.Set(cctx, vocabVersion, cleaned, r)
		return r, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return predictor.Result{}, false, res.Err
		}
		return res.Val.(predictor.Result), false, nil
	case <-ctx.Done():
		return predictor.Result{}, false, ctx.Err()
	}
}

func (c *PredictionCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating prediction cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *PredictionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *PredictionCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

func buildKey(model, vocabVersion, cleaned string) string {
	hash := sha256.Sum256([]byte(cleaned))
	return fmt.Sprintf("%s%s:%s:%x", keyPrefix, model, vocabVersion, hash[:16])
}
