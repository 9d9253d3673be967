package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GwennLsk/BackCantineAston/internal/logger"
)

// RequestLoggingMiddleware logs HTTP requests with structured logging
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		fields := map[string]any{
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
			"request_id": c.GetString(ContextRequestID),
		}

		log := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("HTTP request")
		case status >= 400:
			log.Warn("HTTP request")
		default:
			log.Info("HTTP request")
		}
	}
}
