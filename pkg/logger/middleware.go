package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Middleware returns a Gin middleware that attaches a request-scoped
// logger to the context and logs each request on completion.
func Middleware(log *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-ID", requestID)
		}

		reqLogger := log.WithRequestID(requestID)
		c.Set("logger", reqLogger)

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		reqLogger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
		)

		for _, err := range c.Errors {
			reqLogger.LogError(err.Err, "request error",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
		}
	}
}

// FromContext returns the request-scoped logger, or the global one.
func FromContext(c *gin.Context) *Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*Logger); ok {
			return l
		}
	}
	return GetGlobal()
}
