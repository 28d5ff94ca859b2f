package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amrrdev/docflow/internal/metrics"
)

// Metrics records request counts and latency per route. The route template is
// used as the path label so task ids do not create new series.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
