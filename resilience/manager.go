package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ideaforge/forgekit/logger"
	"github.com/ideaforge/forgekit/observability"
)

// Config carries the per-call resilience settings for one named context.
// Each layer is optional: a zero Timeout skips the deadline race, a nil
// Retry runs the operation once, a nil Breaker skips circuit breaking.
type Config struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// Retry wraps the (possibly timeout-bounded) operation.
	Retry *Policy
	// Breaker configures the circuit breaker for this context. The
	// configuration is applied on first use of the context name; later
	// calls reuse the existing breaker.
	Breaker *BreakerConfig
}

// Manager owns the registry of circuit breakers keyed by context name and
// composes timeout, retry, and circuit breaking around operations. It holds
// no operation-specific state, so unrelated contexts execute concurrently
// without interference.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	log     *logger.Logger
	metrics *observability.ResilienceMetrics
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger makes the manager log breaker state transitions.
func WithLogger(log *logger.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithMetrics makes the manager record breaker transitions and operation
// outcomes.
func WithMetrics(metrics *observability.ResilienceMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates an empty breaker registry.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{breakers: make(map[string]*CircuitBreaker)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Breaker returns the circuit breaker for a context name, creating it from
// config on first use. Breakers live for the lifetime of the manager.
func (m *Manager) Breaker(name string, config BreakerConfig) *CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[name]; ok {
		return cb
	}

	config.Name = name
	config.OnStateChange = m.chainStateChange(config.OnStateChange)
	cb = NewCircuitBreaker(config)
	m.breakers[name] = cb
	return cb
}

// BreakerState reports the state of a context's breaker, if one exists.
func (m *Manager) BreakerState(name string) (State, bool) {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if !ok {
		return StateClosed, false
	}
	return cb.State(), true
}

// ResetBreaker resets the breaker for a context. It reports whether a
// breaker existed for that name.
func (m *Manager) ResetBreaker(name string) bool {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

// ResetAll resets every registered breaker.
func (m *Manager) ResetAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cb := range m.breakers {
		cb.Reset()
	}
}

// chainStateChange layers the manager's logging and metrics onto a
// caller-supplied state change hook.
func (m *Manager) chainStateChange(next func(name string, from, to State)) func(name string, from, to State) {
	return func(name string, from, to State) {
		if m.log != nil {
			fields := map[string]interface{}{
				logger.FieldBreaker: name,
				"from":              from.String(),
				"to":                to.String(),
			}
			if to == StateOpen {
				m.log.Warn("circuit breaker opened", fields)
			} else {
				m.log.Info("circuit breaker state changed", fields)
			}
		}
		m.metrics.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
		if next != nil {
			next(name, from, to)
		}
	}
}

// Execute runs op under the resilience configuration for a named context.
// Composition order is fixed: the timeout wraps the raw operation, retry
// wraps the timeout (peeking at the breaker between attempts), and the
// circuit breaker wraps the whole composed operation.
func Execute[T any](ctx context.Context, m *Manager, name string, config Config, op func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := execute(ctx, m, name, config, op)
	m.metrics.RecordOperation(ctx, name, outcomeLabel(err), time.Since(start))
	return result, err
}

func execute[T any](ctx context.Context, m *Manager, name string, config Config, op func(context.Context) (T, error)) (T, error) {
	run := op
	if config.Timeout > 0 {
		attempt := run
		run = func(ctx context.Context) (T, error) {
			return WithTimeout(ctx, name, config.Timeout, attempt)
		}
	}

	var cb *CircuitBreaker
	if config.Breaker != nil {
		cb = m.Breaker(name, *config.Breaker)
	}

	if config.Retry != nil {
		policy := *config.Retry
		if m.metrics != nil {
			userOnRetry := policy.OnRetry
			policy.OnRetry = func(attempt int, err error, delay time.Duration) {
				m.metrics.RecordRetry(ctx, name, attempt)
				if userOnRetry != nil {
					userOnRetry(attempt, err, delay)
				}
			}
		}
		attempt := run
		run = func(ctx context.Context) (T, error) {
			return RetryWithBreaker(ctx, policy, cb, attempt)
		}
	}

	if cb == nil {
		return run(ctx)
	}

	var result T
	err := cb.Execute(func() error {
		value, err := run(ctx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// outcomeLabel maps a terminal error to a low-cardinality metric label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsCircuitOpen(err):
		return "circuit_open"
	case IsTimeout(err):
		return "timeout"
	default:
		var re *RetryExhaustedError
		if errors.As(err, &re) {
			return "retry_exhausted"
		}
		return "error"
	}
}
