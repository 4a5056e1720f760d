package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewLimiter builds an in-process limiter from a formatted rate such as
// "120-M".
func NewLimiter(formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	return limiter.New(memory.NewStore(), rate), nil
}

// RateLimit rejects clients that exceed the limiter's rate, keyed by IP.
func RateLimit(l *limiter.Limiter, fallback zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		log := Logger(c, fallback)
		ctx, err := l.Get(c.UserContext(), ip)
		if err != nil {
			log.Error().Err(err).Str("ip", ip).Msg("rate limit check failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error during rate limit check"})
		}

		c.Set("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))

		if ctx.Reached {
			log.Warn().Str("ip", ip).Int64("limit", ctx.Limit).Msg("rate limit exceeded")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests. Please try again later."})
		}
		return c.Next()
	}
}
