package observability

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Middleware records request count and duration. It must run outside the
// middleware that turns handler errors into responses so the final status is
// visible.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status/100) + "xx"

			RequestsTotal.WithLabelValues(method, route, status).Inc()
			RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
