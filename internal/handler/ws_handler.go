package handler

import (
	"go-repair-billing/internal/ws"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// RequireUpgrade rejects plain HTTP requests on the websocket route.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.SendStatus(fiber.StatusUpgradeRequired)
}

// WebSocket hands every accepted connection to the hub until it closes.
func WebSocket(hub *ws.Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		hub.Serve(c)
	})
}
