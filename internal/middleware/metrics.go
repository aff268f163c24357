package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nuxtbe/core-api/internal/service"
)

// Metrics records one request observation per handled route. The metrics
// endpoint itself is excluded so scrapes do not inflate the histograms.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		// Unmatched routes fall back to the raw path so 404 spam is still
		// visible without exploding label cardinality on real routes.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
