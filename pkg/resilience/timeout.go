package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

// CallWithTimeout runs fn under a deadline of timeout and returns its value.
// A call that overruns is abandoned and reported as apperrors.ErrTimeout
// joined with context.DeadlineExceeded; fn must honour its context to stop
// early. A non-positive timeout runs fn unbounded.
func CallWithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%s: %w", name, errors.Join(apperrors.ErrTimeout, r.err))
		}
		return r.v, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: caller gave up: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s: no answer within %v: %w", name, timeout, errors.Join(apperrors.ErrTimeout, context.DeadlineExceeded))
	}
}

// WithTimeout is CallWithTimeout for functions without a result.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	_, err := CallWithTimeout(ctx, timeout, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
