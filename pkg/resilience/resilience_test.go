package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var mu sync.Mutex
	var transitions []State
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			transitions = append(transitions, to)
			mu.Unlock()
		},
	})
	fail := func() error { return errBoom }
	ok := func() error { return nil }

	for i := 0; i < 2; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}
	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker ran fn: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("half-open call: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.GetState())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerIgnoredErrors(t *testing.T) {
	cb := NewCircuitBreaker("ignore", CircuitBreakerConfig{
		FailureThreshold: 1,
		Ignore:           func(err error) bool { return errors.Is(err, context.Canceled) },
	})
	for i := 0; i < 5; i++ {
		cb.Execute(func() error { return context.Canceled })
	}
	if cb.GetState() != StateClosed {
		t.Errorf("ignored errors opened the breaker")
	}
	cb.Execute(func() error { return errBoom })
	if cb.GetState() != StateOpen {
		t.Errorf("state = %v, want open", cb.GetState())
	}
	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("Reset did not close the breaker")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := Retry(context.Background(), "flaky", cfg, func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err = %v after %d calls", err, calls)
	}

	calls = 0
	err = Retry(context.Background(), "broken", cfg, func() error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) || calls != 3 {
		t.Errorf("err = %v after %d calls", err, calls)
	}
}

func TestRetryValue(t *testing.T) {
	calls := 0
	v, err := RetryValue(context.Background(), "download", RetryConfig{InitialDelay: time.Millisecond}, func() ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errBoom
		}
		return []byte("artifact"), nil
	})
	if err != nil || string(v) != "artifact" || calls != 2 {
		t.Errorf("got %q, %v after %d calls", v, err, calls)
	}
}

func TestBackoffBounded(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second}.withDefaults()
	if d := backoff(1, cfg); d < 90*time.Millisecond || d > 110*time.Millisecond {
		t.Errorf("first delay %v outside jitter band", d)
	}
	if d := backoff(10, cfg); d != time.Second {
		t.Errorf("delay %v not capped at MaxDelay", d)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	cfg := RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, permanent) },
	}
	calls := 0
	err := Retry(context.Background(), "permanent", cfg, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("err = %v after %d calls, want 1 call", err, calls)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "cancelled", RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func() error {
		return errBoom
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("err = %v, want deadline exceeded and ErrTimeout", err)
	}
	if err := WithTimeout(context.Background(), 0, "unbounded", func(context.Context) error { return nil }); err != nil {
		t.Errorf("unbounded: %v", err)
	}
}

func TestCallWithTimeout(t *testing.T) {
	v, err := CallWithTimeout(context.Background(), time.Second, "fast", func(context.Context) (float64, error) {
		return 0.75, nil
	})
	if err != nil || v != 0.75 {
		t.Errorf("got %v, %v", v, err)
	}

	v, err = CallWithTimeout(context.Background(), 10*time.Millisecond, "hung", func(context.Context) (float64, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	if v != 0 || !errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("got %v, %v; want zero value and ErrTimeout", v, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = CallWithTimeout(ctx, time.Second, "cancelled", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("err = %v, want plain cancellation", err)
	}
}
