package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
)

var (
	// ErrDeliveryDropped means the connection's send buffer was full
	ErrDeliveryDropped = errors.New("delivery dropped")
	ErrConnClosed      = errors.New("connection closed")
)

// Conn is one live transport session
type Conn interface {
	ID() string
	Send(data []byte) error
	Close()
}

// Stats is a snapshot of the registry
type Stats struct {
	OnlineUsers int      `json:"onlineUsers"`
	Connections int      `json:"connections"`
	UserIDs     []string `json:"userIds"`
}

// Hub maps user ids to their live connections. A user may hold several
// connections at once (multiple devices, reconnects).
type Hub struct {
	mu     sync.RWMutex
	users  map[string]map[string]Conn
	owners map[string]string // connection id -> user id
	logger *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		users:  make(map[string]map[string]Conn),
		owners: make(map[string]string),
		logger: logger,
	}
}

// Register adds conn under userID. Registering the same connection again is
// a no-op; registering it under another user moves it. first reports
// whether this is the user's only connection.
func (h *Hub) Register(userID string, conn Conn) (first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if owner, ok := h.owners[conn.ID()]; ok {
		if owner == userID {
			return false
		}
		h.remove(owner, conn.ID())
	}

	conns, ok := h.users[userID]
	if !ok {
		conns = make(map[string]Conn)
		h.users[userID] = conns
	}
	conns[conn.ID()] = conn
	h.owners[conn.ID()] = userID

	h.logger.Debug("connection registered", "user_id", userID, "conn_id", conn.ID(), "connections", len(conns))
	return len(conns) == 1
}

// Unregister removes conn from whatever user it was registered under.
// last reports whether the user has no connections left; ok is false if
// the connection was not registered.
func (h *Hub) Unregister(conn Conn) (userID string, last bool, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID, ok = h.owners[conn.ID()]
	if !ok {
		return "", false, false
	}
	last = h.remove(userID, conn.ID())

	h.logger.Debug("connection unregistered", "user_id", userID, "conn_id", conn.ID(), "last", last)
	return userID, last, true
}

func (h *Hub) remove(userID, connID string) (last bool) {
	delete(h.owners, connID)
	conns := h.users[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(h.users, userID)
		return true
	}
	return false
}

// ConnectionsFor returns the user's live connections, possibly none
func (h *Hub) ConnectionsFor(userID string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.users[userID]
	out := make([]Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// Connections returns every registered connection
func (h *Hub) Connections() []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Conn, 0, len(h.owners))
	for _, byID := range h.users {
		for _, c := range byID {
			out = append(out, c)
		}
	}
	return out
}

// Holds reports whether conn is registered under userID
func (h *Hub) Holds(userID string, conn Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.users[userID][conn.ID()]
	return ok
}

// IsUserOnline checks if a user has at least one connection
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.users[userID]
	return ok
}

// SendToUser delivers message to every connection of userID and returns how
// many accepted it. Drops are logged, never returned.
func (h *Hub) SendToUser(userID string, message WSMessage) int {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "type", message.Type, "error", err)
		return 0
	}
	return h.deliver(userID, message.Type, data)
}

// SendToUsers marshals once and delivers to each user
func (h *Hub) SendToUsers(userIDs []string, message WSMessage) int {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "type", message.Type, "error", err)
		return 0
	}

	delivered := 0
	for _, userID := range userIDs {
		delivered += h.deliver(userID, message.Type, data)
	}
	return delivered
}

func (h *Hub) deliver(userID string, event EventType, data []byte) int {
	conns := h.ConnectionsFor(userID)
	if len(conns) == 0 {
		h.logger.Debug("delivery dropped", "user_id", userID, "type", event, "reason", "no connections")
		return 0
	}

	delivered := 0
	for _, c := range conns {
		if err := c.Send(data); err != nil {
			h.logger.Debug("delivery dropped", "user_id", userID, "conn_id", c.ID(), "type", event, "reason", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Stats returns the number of online users and connections
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return Stats{
		OnlineUsers: len(h.users),
		Connections: len(h.owners),
		UserIDs:     ids,
	}
}

// Close closes every connection and empties the registry
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.owners))
	for _, byID := range h.users {
		for _, c := range byID {
			conns = append(conns, c)
		}
	}
	h.users = make(map[string]map[string]Conn)
	h.owners = make(map[string]string)
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	h.logger.Info("websocket hub closed", "connections", len(conns))
}
