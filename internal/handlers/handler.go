package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"boop/server/internal/geo"
	"boop/server/internal/ledger"
	"boop/server/internal/presence"
	"boop/server/internal/proximity"
	"boop/server/internal/store"
	ws "boop/server/internal/websocket"
)

// BoopLogReader reads a group's boop history
type BoopLogReader interface {
	LogFor(ctx context.Context, groupID string) (*ledger.Log, error)
}

// Booper performs manual boops
type Booper interface {
	Boop(ctx context.Context, req proximity.BoopRequest) (*proximity.BoopEvent, error)
}

// Deps are the collaborators of the HTTP handlers
type Deps struct {
	Users    store.UserDirectory
	Groups   store.GroupStore
	BoopLog  BoopLogReader
	Engine   Booper
	Presence presence.Tracker
	Hub      *ws.Hub
	Gateway  *ws.Gateway
	Logger   *slog.Logger
}

type Handler struct {
	users    store.UserDirectory
	groups   store.GroupStore
	boopLog  BoopLogReader
	engine   Booper
	presence presence.Tracker
	hub      *ws.Hub
	gateway  *ws.Gateway
	logger   *slog.Logger
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{
		users:    d.Users,
		groups:   d.Groups,
		boopLog:  d.BoopLog,
		engine:   d.Engine,
		presence: d.Presence,
		hub:      d.Hub,
		gateway:  d.Gateway,
		logger:   d.Logger,
	}
}

func errorResponse(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// fail maps domain errors to a status; anything unknown is logged and
// reported as fallback with a 500.
func (h *Handler) fail(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, geo.ErrInvalidLocation):
		return errorResponse(c, fiber.StatusBadRequest, "Invalid location data")
	case errors.Is(err, store.ErrUserNotFound):
		return errorResponse(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, store.ErrGroupNotFound):
		return errorResponse(c, fiber.StatusNotFound, "Group not found")
	case errors.Is(err, proximity.ErrSelfBoop), errors.Is(err, proximity.ErrOutOfRange):
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, errInvalidGroupID):
		return errorResponse(c, fiber.StatusBadRequest, "Invalid group id")
	case errors.Is(err, errNotMember):
		return errorResponse(c, fiber.StatusForbidden, "You are not a member of this group")
	case errors.Is(err, proximity.ErrNotSameGroup):
		return errorResponse(c, fiber.StatusForbidden, err.Error())
	}
	h.logger.Error(fallback, "path", c.Path(), "error", err)
	return errorResponse(c, fiber.StatusInternalServerError, fallback)
}
