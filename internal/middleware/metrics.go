package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"quickcart/internal/monitor"
)

// Metrics records per-request counters and latency. Uses the route
// template rather than the raw URL so path params don't explode the
// label space.
func Metrics(collector *monitor.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		collector.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
