package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManager_LazyBreakerCreation(t *testing.T) {
	m := NewManager()

	if _, ok := m.BreakerState("ai-provider"); ok {
		t.Error("no breaker should exist before first use")
	}

	cb := m.Breaker("ai-provider", DefaultBreakerConfig(""))
	if cb == nil {
		t.Fatal("expected a breaker")
	}
	if cb.Name() != "ai-provider" {
		t.Errorf("expected breaker named after the context, got %q", cb.Name())
	}

	// Same context name returns the same instance.
	if m.Breaker("ai-provider", DefaultBreakerConfig("")) != cb {
		t.Error("expected the registry to reuse the breaker")
	}

	if state, ok := m.BreakerState("ai-provider"); !ok || state != StateClosed {
		t.Errorf("expected a closed breaker, got %s (exists=%v)", state, ok)
	}
}

func TestManager_ContextsAreIndependent(t *testing.T) {
	m := NewManager()
	breakerCfg := BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour, MonitoringPeriod: time.Minute}
	cfg := Config{Breaker: &breakerCfg}

	_, err := Execute(context.Background(), m, "jira-export", cfg, func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected failure")
	}

	if state, _ := m.BreakerState("jira-export"); state != StateOpen {
		t.Fatalf("expected jira-export open, got %s", state)
	}

	// A different context is unaffected.
	result, err := Execute(context.Background(), m, "linear-export", cfg, func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || result != 7 {
		t.Errorf("expected independent context to succeed, got %d, %v", result, err)
	}
}

func TestManager_OpenBreakerShortCircuits(t *testing.T) {
	m := NewManager()
	breakerCfg := BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour, MonitoringPeriod: time.Minute}
	cfg := Config{Breaker: &breakerCfg}

	_, _ = Execute(context.Background(), m, "db", cfg, func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})

	called := false
	_, err := Execute(context.Background(), m, "db", cfg, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})

	if called {
		t.Error("operation should not run while the circuit is open")
	}
	if !IsCircuitOpen(err) {
		t.Errorf("expected CircuitOpenError, got %v", err)
	}
}

func TestManager_ComposesTimeoutAndRetry(t *testing.T) {
	m := NewManager()
	cfg := Config{
		Timeout: 20 * time.Millisecond,
		Retry: &Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			RetryIf:     DefaultRetryIf,
		},
	}

	// Each attempt times out, timeouts are retryable, so the budget is
	// spent and exhaustion wraps the timeout.
	calls := 0
	_, err := Execute(context.Background(), m, "slow-upstream", cfg, func(ctx context.Context) (int, error) {
		calls++
		select {
		case <-time.After(time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetryExhaustedError, got %v", err)
	}
	if !IsTimeout(exhausted.Cause) {
		t.Errorf("expected the last cause to be a timeout, got %v", exhausted.Cause)
	}
}

func TestManager_NoConfigRunsOperationDirectly(t *testing.T) {
	m := NewManager()

	result, err := Execute(context.Background(), m, "plain", Config{}, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Errorf("expected plain pass-through, got %q, %v", result, err)
	}
	if _, ok := m.BreakerState("plain"); ok {
		t.Error("no breaker should be registered without breaker config")
	}
}

func TestManager_ResetBreaker(t *testing.T) {
	m := NewManager()
	breakerCfg := BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour, MonitoringPeriod: time.Minute}
	cfg := Config{Breaker: &breakerCfg}

	_, _ = Execute(context.Background(), m, "db", cfg, func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})
	if state, _ := m.BreakerState("db"); state != StateOpen {
		t.Fatalf("expected open breaker, got %s", state)
	}

	if !m.ResetBreaker("db") {
		t.Error("expected reset to find the breaker")
	}
	if state, _ := m.BreakerState("db"); state != StateClosed {
		t.Errorf("expected closed breaker after reset, got %s", state)
	}

	if m.ResetBreaker("unknown") {
		t.Error("resetting an unknown context should report false")
	}
}

func TestManager_ResetAll(t *testing.T) {
	m := NewManager()
	breakerCfg := BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour, MonitoringPeriod: time.Minute}
	cfg := Config{Breaker: &breakerCfg}

	for _, name := range []string{"a", "b", "c"} {
		_, _ = Execute(context.Background(), m, name, cfg, func(context.Context) (int, error) {
			return 0, errors.New("fail")
		})
	}

	m.ResetAll()

	for _, name := range []string{"a", "b", "c"} {
		if state, _ := m.BreakerState(name); state != StateClosed {
			t.Errorf("breaker %s: expected closed after ResetAll, got %s", name, state)
		}
	}
}

func TestManager_RetryStopsWhenConcurrentCallsOpenBreaker(t *testing.T) {
	m := NewManager()
	breakerCfg := BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour, MonitoringPeriod: time.Minute}
	cfg := Config{
		Retry:   &Policy{MaxAttempts: 5, BaseDelay: 5 * time.Millisecond, RetryIf: func(error, int) bool { return true }},
		Breaker: &breakerCfg,
	}

	cb := m.Breaker("shared", breakerCfg)

	calls := 0
	_, err := Execute(context.Background(), m, "shared", cfg, func(context.Context) (int, error) {
		calls++
		// Another caller's failure opens the breaker mid-retry.
		cb.record(errors.New("concurrent failure"))
		return 0, errors.New("fail")
	})

	if calls != 1 {
		t.Errorf("expected the retry loop to stop after the breaker opened, got %d calls", calls)
	}
	if !IsCircuitOpen(err) {
		t.Errorf("expected CircuitOpenError, got %v", err)
	}
}
