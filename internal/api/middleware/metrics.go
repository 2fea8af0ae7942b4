package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
)

// NewHTTPMetrics records request counts, latency, response sizes and the
// in-flight gauge. The route template is used as the path label so session
// IDs do not explode label cardinality.
func NewHTTPMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			m.RequestStarted()
			defer m.RequestFinished()

			start := time.Now()
			err := next(c)

			method := c.Request().Method
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
				m.RecordHTTPRequestError(method, path, strconv.Itoa(status))
			}

			m.RecordHTTPRequest(method, path, status, time.Since(start).Seconds())
			m.RecordHTTPResponseSize(method, path, c.Response().Size)
			return err
		}
	}
}
