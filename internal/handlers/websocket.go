package handlers

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"boop/server/internal/middleware"
	ws "boop/server/internal/websocket"
)

// WebSocketUpgrade checks if the request should be upgraded to WebSocket
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}

	return errorResponse(c, fiber.StatusUpgradeRequired, "WebSocket upgrade required")
}

// WebSocket serves one connection until it closes or ctx is done
func (h *Handler) WebSocket(ctx context.Context) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(middleware.UserIDKey).(string)

		client := ws.NewClient(conn, userID, h.logger)
		h.gateway.Connect(ctx, client)

		go client.WritePump()
		client.ReadPump(ctx, h.gateway) // This blocks until connection closes

		// presence must still be written while the server shuts down
		h.gateway.Disconnect(context.WithoutCancel(ctx), client)
	})
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.hub.Stats(),
	})
}
