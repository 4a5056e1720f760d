package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const (
	UserIDHeader = "X-User-ID"
	SystemUser   = "system"

	userIDKey = "user_id"
)

// RequestUser records who is acting on the request. Authentication happens
// upstream; the gateway forwards the user in X-User-ID.
func RequestUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Copied: header values alias fasthttp's request buffer.
		userID := utils.CopyString(strings.TrimSpace(c.Get(UserIDHeader)))
		if userID == "" {
			userID = SystemUser
		}
		if len(userID) > 255 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "X-User-ID is too long"})
		}
		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

// UserID returns the acting user set by RequestUser.
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(userIDKey).(string); ok && id != "" {
		return id
	}
	return SystemUser
}
