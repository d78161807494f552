package resilience

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests until the reset timeout elapses.
	StateOpen
	// StateHalfOpen allows a single probe to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// Name identifies the guarded resource for errors, logs, and metrics.
	Name string
	// FailureThreshold is the number of failures within MonitoringPeriod
	// that opens the circuit.
	FailureThreshold int
	// ResetTimeout is how long an open circuit rejects calls before
	// allowing a probe.
	ResetTimeout time.Duration
	// MonitoringPeriod is the sliding window over which failures are
	// counted. Failures older than this are forgotten.
	MonitoringPeriod time.Duration
	// OnStateChange is called after every state transition.
	OnStateChange func(name string, from, to State)
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		MonitoringPeriod: time.Minute,
	}
}

// CircuitBreaker guards a single named resource. Failures are counted over
// a sliding time window, so intermittent, spaced-out failures never open
// the circuit while a burst within the window does.
//
// States:
//   - Closed: normal operation, requests pass through
//   - Open: requests are rejected immediately until ResetTimeout elapses
//   - Half-Open: exactly one probe is allowed through; its outcome decides
//     whether the circuit closes or re-opens
type CircuitBreaker struct {
	config BreakerConfig

	mu          sync.Mutex
	state       State
	failures    []time.Time
	nextAttempt time.Time
	probing     bool

	now func() time.Time
}

// NewCircuitBreaker creates a circuit breaker for a named resource.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.MonitoringPeriod <= 0 {
		config.MonitoringPeriod = time.Minute
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Name returns the guarded resource name.
func (cb *CircuitBreaker) Name() string { return cb.config.Name }

// Execute runs fn through the circuit breaker. While the circuit is open it
// returns a *CircuitOpenError without invoking fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn()
	cb.record(err)
	return err
}

// State returns the current state, applying the open-to-half-open
// transition if the reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// RetryAt returns when an open circuit will next allow a probe. The zero
// time is returned while the circuit is closed.
func (cb *CircuitBreaker) RetryAt() time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.currentState() == StateClosed {
		return time.Time{}
	}
	return cb.nextAttempt
}

// Failures returns the number of failures currently inside the window.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.prune()
	return len(cb.failures)
}

// Reset forces the breaker back to closed with an empty failure window.
// Resetting an already-closed breaker is a no-op.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toState(StateClosed)
	cb.failures = nil
	cb.probing = false
	cb.nextAttempt = time.Time{}
}

// allow decides whether a call may proceed. In half-open state only the
// first caller wins the probe slot; everyone else is rejected until the
// probe settles.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if cb.probing {
			return &CircuitOpenError{Name: cb.config.Name, RetryAt: cb.nextAttempt}
		}
		cb.probing = true
		return nil
	default:
		return &CircuitOpenError{Name: cb.config.Name, RetryAt: cb.nextAttempt}
	}
}

// record updates the failure window once the operation settles. Rejections
// from a nested breaker layer are not resource failures and are not counted.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.onSuccess()
		return
	}
	if IsCircuitOpen(err) {
		cb.probing = false
		return
	}
	cb.onFailure()
}

func (cb *CircuitBreaker) onSuccess() {
	if cb.currentState() == StateHalfOpen {
		cb.toState(StateClosed)
		cb.failures = nil
		cb.probing = false
		cb.nextAttempt = time.Time{}
	}
}

func (cb *CircuitBreaker) onFailure() {
	now := cb.now()
	cb.prune()
	cb.failures = append(cb.failures, now)

	switch cb.currentState() {
	case StateHalfOpen:
		cb.probing = false
		cb.nextAttempt = now.Add(cb.config.ResetTimeout)
		cb.toState(StateOpen)
	case StateClosed:
		if len(cb.failures) >= cb.config.FailureThreshold {
			cb.nextAttempt = now.Add(cb.config.ResetTimeout)
			cb.toState(StateOpen)
		}
	}
}

// currentState applies the lazy open-to-half-open transition. Callers must
// hold the lock.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && !cb.now().Before(cb.nextAttempt) {
		cb.probing = false
		cb.toState(StateHalfOpen)
	}
	return cb.state
}

// prune drops failures that have aged out of the monitoring window.
// Callers must hold the lock.
func (cb *CircuitBreaker) prune() {
	cutoff := cb.now().Add(-cb.config.MonitoringPeriod)
	i := 0
	for i < len(cb.failures) && !cb.failures[i].After(cutoff) {
		i++
	}
	if i > 0 {
		cb.failures = append(cb.failures[:0], cb.failures[i:]...)
	}
}

func (cb *CircuitBreaker) toState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
