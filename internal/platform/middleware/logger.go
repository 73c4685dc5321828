package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			if tenant, ok := c.Get("tenant_id").(string); ok && tenant != "" {
				evt = evt.Str("tenant_id", tenant)
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", loggablePath(c)).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}

// loggablePath masks patient identifiers in the request log. Scanned codes
// and record numbers travel as path parameters, so routes carrying them are
// logged by their template instead of the literal path.
func loggablePath(c echo.Context) string {
	for _, name := range c.ParamNames() {
		if name == "identifier" || name == "mrn" {
			if route := c.Path(); route != "" {
				return route
			}
		}
	}
	return c.Request().URL.Path
}
