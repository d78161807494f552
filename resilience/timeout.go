package resilience

import (
	"context"
	"time"
)

// WithTimeout races fn against a deadline. Whichever settles first wins; a
// late result from fn is discarded.
//
// The operation receives a child context that is cancelled when the race is
// lost, so cooperative operations can abandon their work. WithTimeout does
// not wait for them: a non-cooperative operation keeps running in the
// background until it settles on its own.
//
// A non-positive timeout is an input error; fn is never started.
func WithTimeout[T any](ctx context.Context, operation string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return zero, ErrInvalidTimeout
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	// Buffered so the goroutine can settle after abandonment.
	done := make(chan outcome, 1)

	go func() {
		value, err := fn(opCtx)
		done <- outcome{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.value, out.err
	case <-timer.C:
		return zero, &TimeoutError{Operation: operation, Timeout: timeout}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
