package middleware_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"go-repair-billing/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, rate string) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(middleware.RequestLogger(zerolog.Nop()))
	app.Use(middleware.RequestUser())

	l, err := middleware.NewLimiter(rate)
	require.NoError(t, err)
	app.Get("/whoami", middleware.RateLimit(l, zerolog.Nop()), func(c *fiber.Ctx) error {
		return c.SendString(middleware.UserID(c))
	})
	return app
}

func TestRequestUser(t *testing.T) {
	app := newApp(t, "100-M")

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header falls back to system", "", "system"},
		{"header is trimmed", "  clerk-7 ", "clerk-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(middleware.UserIDHeader, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, tt.want, string(body))
			assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
		})
	}
}

func TestRequestLogger_KeepsIncomingRequestID(t *testing.T) {
	app := newApp(t, "100-M")
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(middleware.RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	app := newApp(t, "2-M")

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
}

func TestNewLimiter_RejectsBadRate(t *testing.T) {
	_, err := middleware.NewLimiter("lots")
	assert.Error(t, err)
}
