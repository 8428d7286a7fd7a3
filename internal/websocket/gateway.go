package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"boop/server/internal/geo"
	"boop/server/internal/presence"
	"boop/server/internal/proximity"
	"boop/server/internal/store"
)

// Session is a connection the gateway can bind to a user and reply on
type Session interface {
	Conn
	UserID() string
	Authenticated() bool
	Bind(userID string)
	Reply(msg WSMessage) error
}

// Engine is the proximity engine as seen from the socket layer
type Engine interface {
	UpdateLocation(ctx context.Context, uid string, lat, lon float64) (*proximity.UpdateResult, error)
	Boop(ctx context.Context, req proximity.BoopRequest) (*proximity.BoopEvent, error)
	UserDisconnected(uid string)
}

var _ Engine = (*proximity.Engine)(nil)

// Gateway ties connection lifecycles to the registry and presence, and
// dispatches inbound events.
type Gateway struct {
	hub            *Hub
	engine         Engine
	users          store.UserDirectory
	presence       presence.Tracker
	allowAnonymous bool
	logger         *slog.Logger
}

var _ MessageHandler = (*Gateway)(nil)

func NewGateway(hub *Hub, engine Engine, users store.UserDirectory, tracker presence.Tracker, allowAnonymous bool, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		hub:            hub,
		engine:         engine,
		users:          users,
		presence:       tracker,
		allowAnonymous: allowAnonymous,
		logger:         logger,
	}
}

// Connect registers an authenticated session right away. Anonymous
// sessions are registered by join_user_room.
func (g *Gateway) Connect(ctx context.Context, s Session) {
	if uid := s.UserID(); uid != "" {
		g.attach(ctx, s, uid)
	}
}

// Disconnect unregisters the session. The user's last disconnect marks them
// offline and clears their proximity state.
func (g *Gateway) Disconnect(ctx context.Context, s Session) {
	g.detach(ctx, s)
	s.Close()
}

// Shutdown disconnects every registered connection the same way a client
// disconnect does, so users are marked offline before the process exits.
func (g *Gateway) Shutdown(ctx context.Context) {
	conns := g.hub.Connections()
	for _, c := range conns {
		g.detach(ctx, c)
		c.Close()
	}
	g.hub.Close()
}

func (g *Gateway) attach(ctx context.Context, s Session, uid string) {
	s.Bind(uid)
	first := g.hub.Register(uid, s)
	if err := g.presence.Connect(ctx, uid); err != nil {
		g.logger.Warn("failed to mark user online", "user_id", uid, "error", err)
	}
	g.logger.Info("client connected", "user_id", uid, "conn_id", s.ID(), "first", first)
}

func (g *Gateway) detach(ctx context.Context, s Conn) {
	uid, last, ok := g.hub.Unregister(s)
	if !ok {
		return
	}
	g.logger.Info("client disconnected", "user_id", uid, "conn_id", s.ID(), "last", last)
	if !last {
		return
	}
	if err := g.presence.Disconnect(ctx, uid); err != nil {
		g.logger.Warn("failed to mark user offline", "user_id", uid, "error", err)
	}
	g.engine.UserDisconnected(uid)
}

// HandleMessage decodes the envelope and dispatches on the event type
func (g *Gateway) HandleMessage(ctx context.Context, s Session, data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		g.reply(s, EventError, ErrorPayload{Code: "invalid_message", Message: "Failed to parse message"})
		return
	}

	switch msg.Type {
	case EventUpdateLocation:
		g.handleUpdateLocation(ctx, s, msg.Payload)
	case EventJoinUserRoom:
		g.handleJoinUserRoom(ctx, s, msg.Payload)
	case EventHeartbeat:
		g.handleHeartbeat(ctx, s)
	case EventRefreshUser:
		g.handleRefreshUser(ctx, s, msg.Payload)
	case EventBoop:
		g.handleBoop(ctx, s, msg.Payload)
	default:
		g.reply(s, EventError, ErrorPayload{
			Code:    "unknown_event",
			Message: fmt.Sprintf("unknown event type %q", msg.Type),
		})
	}
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (g *Gateway) reply(s Session, event EventType, payload interface{}) {
	if err := s.Reply(NewMessage(event, payload)); err != nil {
		g.logger.Debug("delivery dropped", "user_id", s.UserID(), "conn_id", s.ID(), "type", event, "reason", err)
	}
}

func (g *Gateway) fail(s Session, event EventType, reason string) {
	g.reply(s, event, ErrorMessagePayload{Error: reason})
}

// reason maps known errors to a message for the sender and logs the rest
func (g *Gateway) reason(err error, fallback string) string {
	switch {
	case errors.Is(err, geo.ErrInvalidLocation):
		return "Invalid location data"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrGroupNotFound):
		return "Group not found"
	case errors.Is(err, proximity.ErrNotSameGroup),
		errors.Is(err, proximity.ErrOutOfRange),
		errors.Is(err, proximity.ErrSelfBoop):
		return err.Error()
	}
	g.logger.Error(fallback, "error", err)
	return fallback
}

func (g *Gateway) handleUpdateLocation(ctx context.Context, s Session, raw json.RawMessage) {
	var p UpdateLocationPayload
	if err := decode(raw, &p); err != nil || p.Latitude == nil || p.Longitude == nil {
		g.fail(s, EventLocationUpdateError, "Invalid location data")
		return
	}

	uid := s.UserID()
	if uid == "" {
		g.fail(s, EventLocationUpdateError, "Join a user room before sending locations")
		return
	}
	if p.UID != "" && p.UID != uid {
		g.fail(s, EventLocationUpdateError, "uid does not match this connection")
		return
	}

	g.touch(ctx, s)

	res, err := g.engine.UpdateLocation(ctx, uid, *p.Latitude, *p.Longitude)
	if err != nil {
		g.fail(s, EventLocationUpdateError, g.reason(err, "Failed to update location"))
		return
	}

	u := res.User
	loc := u.ToResponse().Location
	g.reply(s, EventLocationUpdateSuccess, LocationUpdateSuccessPayload{
		Message: "Location updated successfully",
		User: LocationUser{
			UID:      u.ID,
			Name:     u.Name,
			Location: loc,
			GroupID:  u.GroupID,
		},
	})
}

func (g *Gateway) handleJoinUserRoom(ctx context.Context, s Session, raw json.RawMessage) {
	var p UIDPayload
	if err := decode(raw, &p); err != nil || p.UID == "" {
		g.fail(s, EventJoinUserRoomError, "uid is required")
		return
	}

	if s.Authenticated() {
		if p.UID != s.UserID() {
			g.fail(s, EventJoinUserRoomError, "uid does not match token")
			return
		}
	} else if !g.allowAnonymous {
		g.fail(s, EventJoinUserRoomError, "authentication required")
		return
	}

	if _, err := g.users.GetUser(ctx, p.UID); err != nil {
		g.fail(s, EventJoinUserRoomError, g.reason(err, "Failed to join user room"))
		return
	}

	if current := s.UserID(); current != "" && current != p.UID {
		g.detach(ctx, s)
	}
	g.attach(ctx, s, p.UID)
	g.reply(s, EventJoinedUserRoom, UIDPayload{UID: p.UID})
}

func (g *Gateway) handleHeartbeat(ctx context.Context, s Session) {
	g.touch(ctx, s)
}

// touch refreshes presence for a session the hub still holds
func (g *Gateway) touch(ctx context.Context, s Session) {
	uid := s.UserID()
	if uid == "" || !g.hub.Holds(uid, s) {
		return
	}
	if err := g.presence.Heartbeat(ctx, uid); err != nil {
		g.logger.Warn("heartbeat failed", "user_id", uid, "error", err)
	}
}

func (g *Gateway) handleRefreshUser(ctx context.Context, s Session, raw json.RawMessage) {
	var p UIDPayload
	if err := decode(raw, &p); err != nil {
		g.fail(s, EventUserRefreshError, "Invalid payload")
		return
	}
	uid := p.UID
	if uid == "" {
		uid = s.UserID()
	}
	if uid == "" {
		g.fail(s, EventUserRefreshError, "uid is required")
		return
	}

	u, err := g.users.GetUser(ctx, uid)
	if err != nil {
		g.fail(s, EventUserRefreshError, g.reason(err, "Failed to refresh user"))
		return
	}
	if online, err := g.presence.IsOnline(ctx, uid); err == nil {
		u.IsOnline = online
	}
	if seen, err := g.presence.LastSeen(ctx, uid); err == nil && !seen.IsZero() {
		u.LastSeen = seen
	}

	g.reply(s, EventUserRefreshed, UserRefreshedPayload{User: u.ToResponse()})
}

func (g *Gateway) handleBoop(ctx context.Context, s Session, raw json.RawMessage) {
	var p BoopRequestPayload
	if err := decode(raw, &p); err != nil || p.BooperUID == "" || p.BoopeeUID == "" {
		g.fail(s, EventBoopError, "Both booper and boopee UIDs are required")
		return
	}
	if p.BooperUID != s.UserID() {
		g.fail(s, EventBoopError, "booperUid does not match this connection")
		return
	}

	req := proximity.BoopRequest{BooperUID: p.BooperUID, BoopeeUID: p.BoopeeUID}
	if p.Latitude != nil && p.Longitude != nil {
		at, err := geo.NewPoint(*p.Latitude, *p.Longitude)
		if err != nil {
			g.fail(s, EventBoopError, "Invalid location data")
			return
		}
		req.At = &at
	}

	// the engine notifies both participants on success
	if _, err := g.engine.Boop(ctx, req); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			g.fail(s, EventBoopError, "One or both users not found")
			return
		}
		g.fail(s, EventBoopError, g.reason(err, "Failed to boop"))
	}
}
