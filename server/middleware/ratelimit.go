// Package middleware provides the Gin middleware chain for the public API:
// admission control, request identification, panic recovery, and request
// logging.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/ideaforge/forgekit/errors"
	"github.com/ideaforge/forgekit/observability"
	"github.com/ideaforge/forgekit/ratelimit"
)

// RateLimitConfig configures the admission-control middleware.
type RateLimitConfig struct {
	// Limit is the maximum number of requests allowed per window per key.
	Limit int
	// Window is the sliding window length.
	Window time.Duration
	// Limiter is the shared backing store. One is created when nil; inject
	// a shared instance so every route counts against the same windows.
	Limiter *ratelimit.Limiter
	// KeyFunc extracts the rate limit key from a request. Defaults to
	// ratelimit.ClientIdentifier.
	KeyFunc func(*gin.Context) string
	// Metrics records admission decisions when set.
	Metrics *observability.ResilienceMetrics
}

// RateLimit returns a Gin middleware that applies per-client sliding-window
// admission control before any handler executes. Every response carries the
// standard X-RateLimit-* headers; denials get a 429 with retry guidance.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string {
			return ratelimit.ClientIdentifier(c.Request)
		}
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.DefaultOptions())
	}

	limitCfg := ratelimit.Config{Limit: cfg.Limit, Window: cfg.Window}

	return func(c *gin.Context) {
		result := limiter.Check(cfg.KeyFunc(c), limitCfg)
		cfg.Metrics.RecordRateLimitDecision(c.Request.Context(), result.Allowed)

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			rateLimitResponse(c, result)
			return
		}
		c.Next()
	}
}

// rateLimitResponse writes the 429 denial with retry guidance and a
// request correlation identifier.
func rateLimitResponse(c *gin.Context, result ratelimit.Result) {
	requestID := c.GetString(ContextRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	retryAfter := int64(result.RetryAfter().Seconds()) + 1
	denial := apperrors.RateLimited(result.RetryAfter())

	c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
	c.Header("X-Request-ID", requestID)
	c.Header("X-Error-Code", string(denial.Code))

	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":      denial.Message,
		"code":       denial.Code,
		"retryAfter": retryAfter,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"requestId":  requestID,
		"retryable":  true,
	})
}
