package websocket

import (
	"encoding/json"
	"time"

	"boop/server/internal/models"
)

// EventType represents different WebSocket event types
type EventType string

const (
	// Inbound
	EventUpdateLocation EventType = "update_location"
	EventJoinUserRoom   EventType = "join_user_room"
	EventHeartbeat      EventType = "heartbeat"
	EventRefreshUser    EventType = "refresh_user"
	EventBoop           EventType = "boop"

	// Location events
	EventLocationUpdateSuccess EventType = "location_update_success"
	EventLocationUpdateError   EventType = "location_update_error"
	EventMemberLocationUpdated EventType = "member_location_updated"

	// Proximity events
	EventProximityAlert EventType = "proximity_alert"
	EventBoopHappened   EventType = "boop_happened"
	EventBoopSuccess    EventType = "boop_success"
	EventBoopError      EventType = "boop_error"

	// Session events
	EventJoinedUserRoom    EventType = "joined_user_room"
	EventJoinUserRoomError EventType = "join_user_room_error"
	EventUserRefreshed     EventType = "user_refreshed"
	EventUserRefreshError  EventType = "user_refresh_error"

	// Error events
	EventError EventType = "error"
)

// WSMessage represents a WebSocket message structure
type WSMessage struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage stamps a message with the current time
func NewMessage(t EventType, payload interface{}) WSMessage {
	return WSMessage{Type: t, Payload: payload, Timestamp: time.Now()}
}

// IncomingMessage represents messages received from clients. Payload is
// decoded once the type is known.
type IncomingMessage struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// UpdateLocationPayload is sent by clients on every location tick
type UpdateLocationPayload struct {
	UID       string   `json:"uid"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// UIDPayload is used by join_user_room, heartbeat, refresh_user and joined_user_room
type UIDPayload struct {
	UID string `json:"uid"`
}

// BoopRequestPayload is an explicit boop
type BoopRequestPayload struct {
	BooperUID string   `json:"booperUid"`
	BoopeeUID string   `json:"boopeeUid"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// LocationUser is the user echoed back after a location update
type LocationUser struct {
	UID      string          `json:"uid"`
	Name     string          `json:"name"`
	Location *models.GeoJSON `json:"location"`
	GroupID  *string         `json:"groupId"`
}

type LocationUpdateSuccessPayload struct {
	Message string       `json:"message"`
	User    LocationUser `json:"user"`
}

// MemberLocationPayload goes to the other members of the user's group
type MemberLocationPayload struct {
	UID      string          `json:"uid"`
	Name     string          `json:"name"`
	Location *models.GeoJSON `json:"location"`
}

type NearbyUser struct {
	UID      string          `json:"uid"`
	Name     string          `json:"name"`
	Location *models.GeoJSON `json:"location"`
}

type ProximityAlertPayload struct {
	NearbyUser NearbyUser `json:"nearbyUser"`
	Distance   float64    `json:"distance"`
	Direction  float64    `json:"direction"`
	CanBoop    bool       `json:"canBoop"`
}

type BoopHappenedPayload struct {
	Booper    models.UserRef  `json:"booper"`
	Boopee    models.UserRef  `json:"boopee"`
	Timestamp time.Time       `json:"timestamp"`
	Location  *models.GeoJSON `json:"location"`
	Distance  *float64        `json:"distance"`
}

type BoopSuccessPayload struct {
	Message  string                    `json:"message"`
	Boop     models.BoopRecordResponse `json:"boop"`
	Distance *float64                  `json:"distance"`
	Group    *models.GroupSummary      `json:"group,omitempty"`
}

type UserRefreshedPayload struct {
	User models.UserResponse `json:"user"`
}

// ErrorMessagePayload is the body of every *_error event
type ErrorMessagePayload struct {
	Error string `json:"error"`
}

// ErrorPayload represents error event payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
