package web

import (
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// setupMiddleware adds panic recovery, request logging and, if enabled, the
// Sentry middleware to the Gin engine.
func setupMiddleware(engine *gin.Engine, sentryEnabled bool) {
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	if sentryEnabled {
		engine.Use(sentrygin.New(sentrygin.Options{
			Repanic:         true,  // re-panic after recovery
			WaitForDelivery: false, // Don't wait for Sentry to deliver events (non-blocking)
			Timeout:         5 * time.Second,
		}))
		log.Info("Sentry error monitoring enabled")
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Millisecond),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}
