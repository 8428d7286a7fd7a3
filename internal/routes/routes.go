package routes

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"boop/server/internal/handlers"
	"boop/server/internal/middleware"
)

// Options controls authentication of the websocket route
type Options struct {
	JWTSecret []byte
	// AllowAnonymous lets unauthenticated sockets bind a uid via join_user_room
	AllowAnonymous bool
}

// SetupRoutes configures all application routes. ctx bounds the lifetime of
// websocket connections.
func SetupRoutes(ctx context.Context, app *fiber.App, h *handlers.Handler, opts Options) {
	// API v1 group
	api := app.Group("/api/v1")
	auth := middleware.Auth(opts.JWTSecret)

	// Health check (public)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Boop API is running",
		})
	})

	// User routes (protected)
	users := api.Group("/users", auth, middleware.RelaxedRateLimiter())
	users.Get("/nearby", h.NearbyUsers)
	users.Get("/:uid", h.GetUser)

	// Group routes (protected)
	groups := api.Group("/groups", auth, middleware.RelaxedRateLimiter())
	groups.Get("/:groupId/members", h.GetGroupMembers)
	groups.Get("/:groupId/boop-log", h.GetBoopLog)

	api.Post("/boop", auth, middleware.ModerateRateLimiter(), h.Boop)

	// WebSocket route
	wsAuth := auth
	if opts.AllowAnonymous {
		wsAuth = middleware.OptionalAuth(opts.JWTSecret)
	}
	// limited after auth so the limit is per user; anonymous sockets fall back to the IP
	api.Get("/ws", wsAuth, middleware.ConnectRateLimiter(), handlers.WebSocketUpgrade, h.WebSocket(ctx))

	// WebSocket stats (protected, for debugging)
	api.Get("/ws/stats", auth, h.GetWebSocketStats)
}
