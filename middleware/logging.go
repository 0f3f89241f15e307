package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RipinDensumite/thinwatcher/utils"
)

// Logger logs one line per request. Heartbeats are logged at debug level
// because every agent sends one every few seconds.
func Logger(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		args := []interface{}{
			"remote_addr", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("Request failed", args...)
		case c.FullPath() == "/api/clients/status" && c.Writer.Status() < 400:
			logger.Debug("Request", args...)
		default:
			logger.Info("Request", args...)
		}
	}
}
