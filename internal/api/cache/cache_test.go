package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/redis"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = string(value.([]byte))
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

var fake = predictor.Result{Model: "xgboost", Label: textnorm.Fake, PFake: 0.8123, PReal: 0.1877}

func TestGetOrCompute(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (predictor.Result, error) { calls++; return fake, nil }

	r, hit, err := c.GetOrCompute(ctx, "xgboost", "v1", "shocking secret", compute)
	if err != nil || hit || r != fake {
		t.Fatalf("first call = %+v hit=%v err=%v", r, hit, err)
	}
	r, hit, _ = c.GetOrCompute(ctx, "xgboost", "v1", "shocking secret", compute)
	if !hit || r != fake || calls != 1 {
		t.Errorf("second call = %+v hit=%v calls=%d", r, hit, calls)
	}
	if _, hit, _ = c.GetOrCompute(ctx, "xgboost", "v2", "shocking secret", compute); hit {
		t.Error("new vocabulary version served a stale entry")
	}
	if _, hit, _ = c.GetOrCompute(ctx, "randomforest", "v1", "shocking secret", compute); hit {
		t.Error("entry shared across models")
	}
	for _, ttl := range store.ttls {
		if ttl != time.Minute {
			t.Errorf("ttl = %v", ttl)
		}
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 3 {
		t.Errorf("stats = %d/%d", hits, misses)
	}
}

func TestErrorsNotCached(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	boom := errors.New("inference failed")
	if _, _, err := c.GetOrCompute(context.Background(), "bert", "", "x", func(context.Context) (predictor.Result, error) {
		return predictor.Result{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := c.Get(context.Background(), "bert", "", "x"); ok {
		t.Error("failed prediction was cached")
	}
}

func TestRedisDownFallsThrough(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute, nil)
	r, hit, err := c.GetOrCompute(context.Background(), "xgboost", "v1", "t", func(context.Context) (predictor.Result, error) { return fake, nil })
	if err != nil || hit || r != fake {
		t.Errorf("got %+v hit=%v err=%v", r, hit, err)
	}
}

func TestSingleflight(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCompute(context.Background(), "xgboost", "v1", "same text", func(context.Context) (predictor.Result, error) {
				calls.Add(1)
				<-release
				return fake, nil
			})
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("compute ran %d times", n)
	}
}

func TestCoalescedCallersSurviveCancellation(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil, WithComputeTimeout(time.Second))
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (predictor.Result, error) {
		close(started)
		select {
		case <-release:
			return fake, nil
		case <-ctx.Done():
			return predictor.Result{}, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(firstCtx, "xgboost", "v1", "shared", compute)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		r   predictor.Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		r, _, err := c.GetOrCompute(context.Background(), "xgboost", "v1", "shared", compute)
		second <- outcome{r, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller err = %v, want context.Canceled", err)
	}
	close(release)
	got := <-second
	if got.err != nil || got.r != fake {
		t.Errorf("second caller = %+v, %v", got.r, got.err)
	}
	if _, ok := c.Get(context.Background(), "xgboost", "v1", "shared"); !ok {
		t.Error("result not cached after the first caller left")
	}
}

func TestComputeTimeout(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil, WithComputeTimeout(20*time.Millisecond))
	_, _, err := c.GetOrCompute(context.Background(), "bert", "", "slow", func(ctx context.Context) (predictor.Result, error) {
		<-ctx.Done()
		return predictor.Result{}, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestLabelDerivedOnRead(t *testing.T) {
	store := newMemStore()
	tie := predictor.Result{Model: "logistic_regression", Label: textnorm.Real, PFake: 0.5, PReal: 0.5}
	New(store, time.Minute, nil).Set(context.Background(), "v1", "even", tie)

	tests := []struct {
		policy predictor.TiePolicy
		want   textnorm.Label
	}{
		{predictor.TieReal, textnorm.Real},
		{predictor.TieFake, textnorm.Fake},
	}
	for _, tt := range tests {
		c := New(store, time.Minute, nil, WithTiePolicy(tt.policy))
		r, ok := c.Get(context.Background(), "logistic_regression", "v1", "even")
		if !ok || r.Label != tt.want {
			t.Errorf("policy %s: got %+v ok=%v, want %s", tt.policy, r, ok, tt.want)
		}
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["other:key"] = "keep"
	c := New(store, time.Minute, nil)
	c.Set(context.Background(), "v1", "a", fake)
	c.Set(context.Background(), "v1", "b", fake)
	n, err := c.Invalidate(context.Background())
	if err != nil || n != 2 {
		t.Errorf("invalidated %d keys, err %v", n, err)
	}
	if _, ok := store.data["other:key"]; !ok {
		t.Error("foreign key removed")
	}
}
