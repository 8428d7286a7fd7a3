package models

import (
	"time"

	"boop/server/internal/geo"
)

// Default proximity zone radii in meters. Advisory UI hints only, the boop
// trigger threshold is fixed in the proximity engine.
const (
	DefaultHotZone  = 50.0
	DefaultWarmZone = 200.0
	DefaultColdZone = 1000.0
)

// Thresholds holds a user's hot/warm/cold zone radii in meters
type Thresholds struct {
	Hot  float64 `json:"hot" bson:"hot"`
	Warm float64 `json:"warm" bson:"warm"`
	Cold float64 `json:"cold" bson:"cold"`
}

// DefaultThresholds returns 50m/200m/1000m
func DefaultThresholds() Thresholds {
	return Thresholds{Hot: DefaultHotZone, Warm: DefaultWarmZone, Cold: DefaultColdZone}
}

// Privacy holds the user's sharing flags
type Privacy struct {
	ShareLocation          bool `json:"shareLocation" bson:"share_location"`
	VisibleToFriends       bool `json:"visibleToFriends" bson:"visible_to_friends"`
	VisibleToEveryone      bool `json:"visibleToEveryone" bson:"visible_to_everyone"`
	ProximityAlertsEnabled bool `json:"proximityAlertsEnabled" bson:"proximity_alerts_enabled"`
}

// DefaultPrivacy shares location with friends and keeps alerts on
func DefaultPrivacy() Privacy {
	return Privacy{
		ShareLocation:          true,
		VisibleToFriends:       true,
		ProximityAlertsEnabled: true,
	}
}

// User represents a user in the system
type User struct {
	ID                string     `json:"uid"`
	Name              string     `json:"name"`
	Email             string     `json:"email,omitempty"`
	ProfilePicture    *string    `json:"profilePicture,omitempty"`
	Location          *geo.Point `json:"-"` // nil until the first update
	LocationUpdatedAt *time.Time `json:"-"`
	GroupID           *string    `json:"groupId"` // at most one group at a time
	IsOnline          bool       `json:"isOnline"`
	LastSeen          time.Time  `json:"lastSeen"`
	Thresholds        Thresholds `json:"thresholds"`
	Privacy           Privacy    `json:"privacy"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// NewUser returns a user with default thresholds and privacy flags
func NewUser(id, name, email string) *User {
	now := time.Now()
	return &User{
		ID:         id,
		Name:       name,
		Email:      email,
		Thresholds: DefaultThresholds(),
		Privacy:    DefaultPrivacy(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// InGroup returns the user's group id or "" when the user has none
func (u *User) InGroup() string {
	if u.GroupID == nil {
		return ""
	}
	return *u.GroupID
}

// UserResponse is what we send to clients
type UserResponse struct {
	UID            string    `json:"uid"`
	Name           string    `json:"name"`
	ProfilePicture *string   `json:"profilePicture,omitempty"`
	Location       *GeoJSON  `json:"location"`
	GroupID        *string   `json:"groupId"`
	IsOnline       bool      `json:"isOnline"`
	LastSeen       time.Time `json:"lastSeen"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		UID:            u.ID,
		Name:           u.Name,
		ProfilePicture: u.ProfilePicture,
		Location:       PointToGeoJSON(u.Location),
		GroupID:        u.GroupID,
		IsOnline:       u.IsOnline,
		LastSeen:       u.LastSeen,
	}
}

// UserRef is the {uid, name} pair embedded in boop events and logs
type UserRef struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// Candidate is another user returned by a radius search
type Candidate struct {
	UID                    string    `json:"uid"`
	Name                   string    `json:"name"`
	Location               geo.Point `json:"-"`
	GroupID                string    `json:"-"`
	ProximityAlertsEnabled bool      `json:"-"`
}
