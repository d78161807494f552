package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy configures retry behavior. It is a value object: callers pass it
// per call and it is never mutated.
type Policy struct {
	// MaxAttempts is the maximum number of attempts including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry. It is also the upper
	// bound of the random jitter added to every delay.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth of the delay.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff factor.
	Multiplier float64
	// RetryIf decides whether a failed attempt should be retried.
	// Defaults to DefaultRetryIf.
	RetryIf func(err error, attempt int) bool
	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		RetryIf:     DefaultRetryIf,
	}
}

func (p *Policy) applyDefaults() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.RetryIf == nil {
		p.RetryIf = DefaultRetryIf
	}
}

// Retry executes fn with exponential backoff until it succeeds, fails with
// a non-retryable error, or the attempt budget is spent. Exhaustion is
// reported as a *RetryExhaustedError wrapping the last cause; non-retryable
// failures pass through untouched.
func Retry[T any](ctx context.Context, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	return RetryWithBreaker(ctx, policy, nil, fn)
}

// RetryWithBreaker is Retry with an optional circuit breaker peek: before
// every attempt after the first, the breaker state is consulted and an open
// circuit stops the loop immediately rather than burning attempts.
func RetryWithBreaker[T any](ctx context.Context, policy Policy, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	policy.applyDefaults()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 && cb != nil && cb.State() == StateOpen {
			return zero, &CircuitOpenError{Name: cb.Name(), RetryAt: cb.RetryAt()}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !policy.RetryIf(err, attempt) {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := backoffDelay(attempt, policy)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, &RetryExhaustedError{Attempts: policy.MaxAttempts, Cause: lastErr}
}

// backoffDelay computes min(base * multiplier^(attempt-1), max) plus a
// uniform jitter of up to one BaseDelay, so concurrent callers do not
// retry in lockstep.
func backoffDelay(attempt int, policy Policy) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(policy.Multiplier, float64(attempt-1))
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	jitter := rand.Int63n(int64(policy.BaseDelay))
	return time.Duration(delay) + time.Duration(jitter)
}
