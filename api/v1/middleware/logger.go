package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one line per request. Polling endpoints log at debug level.
func RequestLogger(logger *logrus.Entry, quiet ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}
	log := logger.WithField("component", "http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Microsecond).String(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case skip[c.FullPath()]:
			entry.Debug("request")
		default:
			entry.Info("request")
		}
	}
}
