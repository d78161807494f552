package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	apperrors "github.com/ideaforge/forgekit/errors"
)

// Common errors.
var (
	// ErrInvalidTimeout is returned when WithTimeout is called with a
	// non-positive duration. The operation is never started.
	ErrInvalidTimeout = errors.New("timeout must be greater than zero")
)

// TimeoutError indicates an operation did not settle before its deadline.
// The underlying operation keeps running; its context is cancelled so
// cooperative operations can abandon their work.
type TimeoutError struct {
	// Operation names what timed out, e.g. "ai-provider".
	Operation string
	// Timeout is the deadline that elapsed.
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("operation timed out after %s", e.Timeout)
	}
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
}

// CircuitOpenError indicates a call was rejected because the named circuit
// is open. RetryAt tells callers when the next probe will be allowed so they
// can short-circuit instead of waiting out a retry loop.
type CircuitOpenError struct {
	Name    string
	RetryAt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open until %s", e.Name, e.RetryAt.Format(time.RFC3339))
}

// RetryExhaustedError wraps the last failure after all retry attempts were
// consumed.
type RetryExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsCircuitOpen reports whether err is (or wraps) a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var ce *CircuitOpenError
	return errors.As(err, &ce)
}

// RetryableStatus reports whether an upstream HTTP status is worth retrying:
// request timeout, rate limiting, and server-side failures.
func RetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

// statusCoder is implemented by errors that carry an upstream HTTP status,
// such as the export connector and AI provider client errors.
type statusCoder interface {
	StatusCode() int
}

// DefaultRetryIf classifies failures by structured kind rather than by
// message text. Transient signals (timeouts, connection resets, retryable
// upstream statuses, errors flagged retryable) are retried; caller
// cancellation and open circuits are not.
func DefaultRetryIf(err error, _ int) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsCircuitOpen(err) {
		return false
	}
	if IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return RetryableStatus(sc.StatusCode())
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Retryable
	}
	return false
}
