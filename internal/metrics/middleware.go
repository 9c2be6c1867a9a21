package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ebaygate/ebaygate/internal/logging"
)

// metricsPath is excluded from collection so Prometheus scrapes do not
// pollute the request series.
const metricsPath = "/metrics"

// Middleware records latency, count, and in-flight gauges for every
// request. Server errors are also counted per endpoint so alerting can
// key off the errors_total counter without parsing logs.
func Middleware(m *Metrics, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}

		start := time.Now()
		m.IncHTTPRequestsInFlight()
		c.Next()
		m.DecHTTPRequestsInFlight()

		statusCode := c.Writer.Status()
		status := strconv.Itoa(statusCode)
		// Label by route template, not raw path, to keep cardinality
		// bounded; unmatched routes fall back to the request path.
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		m.RecordRequestLatency(endpoint, c.Request.Method, status, time.Since(start).Seconds())
		m.RecordHTTPRequest(endpoint, c.Request.Method, status)
		if statusCode >= 500 {
			m.RecordError("server", endpoint, c.Request.Method)
		}

		if len(c.Errors) > 0 {
			logger.ErrorWithContext(c.Request.Context(), "request error", "error", c.Errors.String())
		}
	}
}
