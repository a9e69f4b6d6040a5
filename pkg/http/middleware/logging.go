package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs HTTP requests. Probe and scrape endpoints are skipped:
// with a poller hitting /healthz and Prometheus hitting /metrics they would
// drown out the requests worth reading.
func RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			err := next(c)

			if p := req.URL.Path; p == "/healthz" || p == "/metrics" {
				return err
			}
			log.Printf("[%s] %s %s - %d %dB (%s)",
				req.Method,
				req.RequestURI,
				req.RemoteAddr,
				res.Status,
				res.Size,
				time.Since(start),
			)
			return err
		}
	}
}
