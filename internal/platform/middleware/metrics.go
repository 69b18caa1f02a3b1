package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/healthmetrics/healthmetrics/internal/platform/metrics"
)

// Metrics records request count, latency and in-flight requests. The path
// label is the route template (/api/v1/patients/:id) so ids do not blow up
// label cardinality; unmatched requests are labelled "unmatched".
func Metrics(m *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			m.InFlightGauge.Inc()
			defer m.InFlightGauge.Dec()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(responseStatus(c, err))
			method := c.Request().Method
			m.RequestsTotal.WithLabelValues(method, path, status).Inc()
			m.RequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
