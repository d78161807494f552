// Package resilience provides the failure-handling layer for outbound
// integrations: circuit breaking, retry with exponential backoff and
// jitter, timeout racing, and a Manager that composes them per named
// context.
//
// Each outbound dependency (AI provider, export connectors, database)
// registers its own context name and per-service settings:
//
//	m := resilience.NewManager(resilience.WithLogger(log))
//	cfg := resilience.Config{
//	    Timeout: 5 * time.Second,
//	    Retry:   &resilience.Policy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond},
//	    Breaker: &resilience.BreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second},
//	}
//	idea, err := resilience.Execute(ctx, m, "ai-provider", cfg, func(ctx context.Context) (Idea, error) {
//	    return client.Breakdown(ctx, prompt)
//	})
//
// Composition order is fixed: timeout wraps the raw operation, retry wraps
// the timeout and peeks at the breaker between attempts, and the circuit
// breaker wraps the whole composed operation.
//
// Terminal failures carry structured kinds: *TimeoutError,
// *CircuitOpenError (with the instant retries may resume), and
// *RetryExhaustedError (wrapping the last cause and the attempt count).
package resilience
