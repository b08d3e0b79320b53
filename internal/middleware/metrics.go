// Package middleware provides the Gin HTTP middleware for the Chravel
// backend: request identification, Prometheus metrics, JWT user
// authentication, and the machine token gate for roster synchronization.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Auth → Handler
//
// Metrics runs before auth so rejected requests are still counted; auth
// populates the user identity that handlers pass to the authorization engine.
package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chravel/chravel-backend/internal/telemetry"
)

// Metrics returns a Gin handler that records two Prometheus metrics for every
// request that passes through the router.
//
// Recorded metrics:
//   - http_requests_total{method, path, status}    (CounterVec)
//   - http_request_duration_seconds{method, path}  (HistogramVec)
//
// The path label is set from c.FullPath(), which returns the matched Gin route
// template (e.g. /v1/trips/:trip_id/channels/:channel_id/access) rather than
// the raw URL. Requests that do not match any registered route (404/405) use
// the literal string "<no-route>" so unhandled paths do not inflate label
// cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		status := fmt.Sprintf("%d", c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
