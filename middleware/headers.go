package middleware

import (
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// StaticHeaders sets the headers the installable form needs: no HTTP caching
// (the service worker caches), and a root service worker scope.
func StaticHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache")
		c.Header("Service-Worker-Allowed", "/")
		c.Next()
	}
}

// RequestLogger logs every request with apex/log.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"encoding": c.Writer.Header().Get("Content-Encoding"),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Debug("request")
	}
}
