package handler

import (
	"go-repair-billing/internal/ws"

	"github.com/gofiber/fiber/v2"
)

func Health(hub *ws.Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"clients": hub.ClientCount(),
		})
	}
}
