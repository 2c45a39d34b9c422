package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestID tags every request with an id, threads a request-scoped
// logger through the context and writes an access log line.
func RequestID(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			loggerWithID := logger.With().Str("request_id", requestID).Logger()
			ctx := loggerWithID.WithContext(c.Request().Context())
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			loggerWithID.Info().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("request completed")
			return err
		}
	}
}
