package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"boop/server/internal/middleware"
	"boop/server/internal/models"
	"boop/server/internal/store"
	"boop/server/internal/utils"
)

var (
	errInvalidGroupID = errors.New("invalid group id")
	errNotMember      = errors.New("not a member of this group")
)

// memberGroup loads the group in the path and checks the caller belongs to it
func (h *Handler) memberGroup(c *fiber.Ctx) (*models.Group, error) {
	groupID := c.Params("groupId")
	if !utils.ValidateGroupCode(groupID) {
		return nil, errInvalidGroupID
	}

	group, err := h.groups.GetGroup(c.Context(), groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(middleware.GetUserID(c)) {
		return nil, errNotMember
	}
	return group, nil
}

// GetGroupMembers returns the members that share a location
func (h *Handler) GetGroupMembers(c *fiber.Ctx) error {
	group, err := h.memberGroup(c)
	if err != nil {
		return h.fail(c, err, "Failed to get group")
	}

	members := make([]models.GroupMember, 0, len(group.Members))
	for _, uid := range group.Members {
		u, err := h.users.GetUser(c.Context(), uid)
		if errors.Is(err, store.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return h.fail(c, err, "Failed to get group members")
		}
		if u.Location == nil || !u.Privacy.ShareLocation {
			continue
		}
		members = append(members, models.GroupMember{
			UID:      u.ID,
			Name:     u.Name,
			Location: models.PointToGeoJSON(u.Location),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    members,
	})
}

// GetBoopLog returns the group's boop history, oldest first
func (h *Handler) GetBoopLog(c *fiber.Ctx) error {
	group, err := h.memberGroup(c)
	if err != nil {
		return h.fail(c, err, "Failed to get group")
	}

	log, err := h.boopLog.LogFor(c.Context(), group.ID)
	if err != nil {
		return h.fail(c, err, "Failed to get boop log")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    log,
	})
}
