package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger returns a Gin middleware that logs each request with zap. Health
// probes are skipped; server errors log at warn so they stand out when the
// info stream is filtered away.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("trace_id", GetTraceID(c)),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor := GetDiscordID(c); actor != "" {
			fields = append(fields, zap.String("actor", actor))
		}

		if c.Writer.Status() >= 500 {
			log.Warn("http", fields...)
		} else {
			log.Info("http", fields...)
		}
	}
}
