package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuslife/campus-events-api/internal/service"
)

// Metrics records per-request counters and latency. Probe endpoints are
// skipped so scrapes do not pollute the request metrics.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		switch path {
		case "/metrics", "/health", "/ready":
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
