package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ideaforge/forgekit/logger"
)

// RequestLogger returns a Gin middleware that logs every request with
// method, path, status, and duration, at a level matching the status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"method":               c.Request.Method,
			"path":                 c.Request.URL.Path,
			"status":               status,
			logger.FieldDurationMS: time.Since(start).Milliseconds(),
			logger.FieldRequestID:  c.GetString(ContextRequestID),
		}

		switch {
		case status >= 500:
			log.Error("request completed", fields)
		case status >= 400:
			log.Warn("request completed", fields)
		default:
			log.Debug("request completed", fields)
		}
	}
}
