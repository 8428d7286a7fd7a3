package store

import (
	"context"
	"errors"
	"time"

	"boop/server/internal/geo"
	"boop/server/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("user is already in a group")
)

// UserDirectory reads and writes user locations. The alert flag travels on
// User.Privacy and Candidate.
type UserDirectory interface {
	GetUser(ctx context.Context, uid string) (*models.User, error)
	SetLocation(ctx context.Context, uid string, p geo.Point, at time.Time) error
	// FindWithinRadius returns users with a location near center, excluding
	// the given uid and users that do not share their location or have
	// proximity alerts disabled. Results may include users slightly outside
	// radius; callers compute exact distances.
	FindWithinRadius(ctx context.Context, center geo.Point, radius float64, exclude string) ([]models.Candidate, error)
}

// GroupStore answers membership questions and owns the boop logs.
type GroupStore interface {
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	// SharedGroup returns the group both users belong to, or "" if none.
	SharedGroup(ctx context.Context, uidA, uidB string) (string, error)
	Members(ctx context.Context, groupID string) ([]string, error)
	AppendBoop(ctx context.Context, groupID string, rec models.BoopRecord) error
	BoopLog(ctx context.Context, groupID string) ([]models.BoopRecord, error)
}

// Store is the full persistence surface used by the server and the seed command.
type Store interface {
	UserDirectory
	GroupStore
	UpsertUser(ctx context.Context, user *models.User) error
	// CreateGroup stores the group and sets groupId on each member.
	// Members already in another group fail with ErrAlreadyMember.
	CreateGroup(ctx context.Context, group *models.Group) error
	Close(ctx context.Context) error
}
