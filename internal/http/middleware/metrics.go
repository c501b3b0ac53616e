package middleware

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"

	"github.com/jmehdipour/billing-sandbox/internal/metrics"
)

// Metrics counts requests by matched route template and final status.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
			return err
		}
	}
}
