package handlers

import (
	"github.com/gofiber/fiber/v2"

	"boop/server/internal/geo"
	"boop/server/internal/middleware"
	"boop/server/internal/proximity"
)

// BoopRequest represents the POST /boop body. The booper is always the
// authenticated user.
type BoopRequest struct {
	BooperUID string   `json:"booperUid,omitempty"`
	BoopeeUID string   `json:"boopeeUid"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Boop records a manual boop and notifies both users
func (h *Handler) Boop(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req BoopRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.BoopeeUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "boopeeUid is required")
	}
	if req.BooperUID != "" && req.BooperUID != userID {
		return errorResponse(c, fiber.StatusForbidden, "booperUid must be the authenticated user")
	}

	boop := proximity.BoopRequest{BooperUID: userID, BoopeeUID: req.BoopeeUID}
	if req.Latitude != nil && req.Longitude != nil {
		at, err := geo.NewPoint(*req.Latitude, *req.Longitude)
		if err != nil {
			return h.fail(c, err, "Invalid location data")
		}
		boop.At = &at
	}

	ev, err := h.engine.Boop(c.Context(), boop)
	if err != nil {
		return h.fail(c, err, "Failed to boop")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Boop successful!",
		"data": fiber.Map{
			"boop":     ev.Record.ToResponse(),
			"group":    ev.Group,
			"distance": ev.Distance,
		},
	})
}
