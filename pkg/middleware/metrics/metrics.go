// Package metrics records Prometheus HTTP metrics for gin routes.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/observability/metrics"
)

const unmatchedRoute = "unmatched"

// Metrics records request duration, request count and in-flight requests.
// The route template is the label so ids do not explode cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		done := metrics.TrackInFlight()
		defer done()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveRequest(metrics.Request{
			Method:   c.Request.Method,
			Route:    route,
			Status:   c.Writer.Status(),
			Duration: time.Since(start),
		})
	}
}
