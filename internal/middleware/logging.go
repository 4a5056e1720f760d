package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	RequestIDHeader = "X-Request-ID"

	loggerKey = "logger"
)

// RequestLogger tags every request with an id, stores a request-scoped
// logger in the context, and logs the outcome.
func RequestLogger(base zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)

		logger := base.With().
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Logger()
		c.Locals(loggerKey, logger)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		event := logger.Info()
		if status >= fiber.StatusInternalServerError {
			event = logger.Error().Err(err)
		}
		event.Int("status", status).
			Dur("latency", time.Since(start)).
			Str("user_id", UserID(c)).
			Msg("request completed")
		return err
	}
}

// Logger returns the request-scoped logger, or fallback when the
// middleware did not run.
func Logger(c *fiber.Ctx, fallback zerolog.Logger) zerolog.Logger {
	if l, ok := c.Locals(loggerKey).(zerolog.Logger); ok {
		return l
	}
	return fallback
}
