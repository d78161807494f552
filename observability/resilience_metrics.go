package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ResilienceMetrics holds the instruments for the resilience and
// admission-control layer. All record methods are no-ops on a nil receiver.
type ResilienceMetrics struct {
	breakerTransitions metric.Int64Counter
	retryAttempts      metric.Int64Counter
	rateLimitDecisions metric.Int64Counter
	operationDuration  metric.Float64Histogram
}

// NewResilienceMetrics creates the instruments on the given meter.
func NewResilienceMetrics(meter metric.Meter) (*ResilienceMetrics, error) {
	breakerTransitions, err := meter.Int64Counter("resilience.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating breaker transitions counter: %w", err)
	}

	retryAttempts, err := meter.Int64Counter("resilience.retry.attempts",
		metric.WithDescription("Retry attempts that led to a backoff wait"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retry attempts counter: %w", err)
	}

	rateLimitDecisions, err := meter.Int64Counter("ratelimit.decisions",
		metric.WithDescription("Rate limit admission decisions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rate limit decisions counter: %w", err)
	}

	operationDuration, err := meter.Float64Histogram("resilience.operation.duration",
		metric.WithDescription("Duration of operations executed through the resilience manager in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation duration histogram: %w", err)
	}

	return &ResilienceMetrics{
		breakerTransitions: breakerTransitions,
		retryAttempts:      retryAttempts,
		rateLimitDecisions: rateLimitDecisions,
		operationDuration:  operationDuration,
	}, nil
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *ResilienceMetrics) RecordBreakerTransition(ctx context.Context, name, from, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRetry records a retried attempt for a named context.
func (m *ResilienceMetrics) RecordRetry(ctx context.Context, name string, attempt int) {
	if m == nil {
		return
	}
	m.retryAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("context", name),
		attribute.Int("attempt", attempt),
	))
}

// RecordRateLimitDecision records an admission decision.
func (m *ResilienceMetrics) RecordRateLimitDecision(ctx context.Context, allowed bool) {
	if m == nil {
		return
	}
	m.rateLimitDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("allowed", allowed),
	))
}

// RecordOperation records a completed operation and its outcome.
func (m *ResilienceMetrics) RecordOperation(ctx context.Context, name, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("context", name),
		attribute.String("outcome", outcome),
	))
}
