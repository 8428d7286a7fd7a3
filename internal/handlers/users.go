package handlers

import (
	"sort"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"boop/server/internal/geo"
	"boop/server/internal/middleware"
	"boop/server/internal/models"
)

const (
	defaultNearbyRadius = 1000.0
	maxNearbyRadius     = 50000.0
)

// NearbyUserResponse is one entry of GET /users/nearby
type NearbyUserResponse struct {
	UID       string          `json:"uid"`
	Name      string          `json:"name"`
	Location  *models.GeoJSON `json:"location"`
	Distance  float64         `json:"distance"`
	Direction float64         `json:"direction"`
}

// GetUser returns a user's public profile with live presence
func (h *Handler) GetUser(c *fiber.Ctx) error {
	uid := c.Params("uid")

	u, err := h.users.GetUser(c.Context(), uid)
	if err != nil {
		return h.fail(c, err, "Failed to get user")
	}
	if online, err := h.presence.IsOnline(c.Context(), uid); err == nil {
		u.IsOnline = online
	}
	if seen, err := h.presence.LastSeen(c.Context(), uid); err == nil && !seen.IsZero() {
		u.LastSeen = seen
	}
	if !u.Privacy.ShareLocation && uid != middleware.GetUserID(c) {
		u.Location = nil
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    u.ToResponse(),
	})
}

// NearbyUsers lists users sharing their location within radius meters,
// nearest first
func (h *Handler) NearbyUsers(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("latitude"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("longitude"), 64)
	if errLat != nil || errLon != nil {
		return errorResponse(c, fiber.StatusBadRequest, "latitude and longitude are required")
	}
	center, err := geo.NewPoint(lat, lon)
	if err != nil {
		return h.fail(c, err, "Invalid location data")
	}

	radius := defaultNearbyRadius
	if raw := c.Query("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 || radius > maxNearbyRadius {
			return errorResponse(c, fiber.StatusBadRequest, "radius must be between 0 and 50000 meters")
		}
	}

	candidates, err := h.users.FindWithinRadius(c.Context(), center, radius, middleware.GetUserID(c))
	if err != nil {
		return h.fail(c, err, "Failed to search nearby users")
	}

	nearby := make([]NearbyUserResponse, 0, len(candidates))
	for _, cand := range candidates {
		d := geo.Distance(center, cand.Location)
		if d > radius {
			continue
		}
		loc := cand.Location
		nearby = append(nearby, NearbyUserResponse{
			UID:       cand.UID,
			Name:      cand.Name,
			Location:  models.PointToGeoJSON(&loc),
			Distance:  d,
			Direction: geo.Bearing(center, cand.Location),
		})
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].Distance < nearby[j].Distance })

	return c.JSON(fiber.Map{
		"success": true,
		"data":    nearby,
	})
}
