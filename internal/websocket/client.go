package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
	maxMessageSize = 4096
)

// MessageHandler processes one inbound frame for a session
type MessageHandler interface {
	HandleMessage(ctx context.Context, s Session, data []byte)
}

// Client represents a WebSocket client connection
type Client struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger

	mu            sync.RWMutex
	userID        string
	authenticated bool

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps conn. userID is the token subject, or "" for an anonymous
// connection that still has to join_user_room.
func NewClient(conn *websocket.Conn, userID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		id:            uuid.NewString(),
		conn:          conn,
		userID:        userID,
		authenticated: userID != "",
		send:          make(chan []byte, sendBufferSize),
		done:          make(chan struct{}),
	}
	c.logger = logger.With("conn_id", c.id)
	return c
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Authenticated reports whether the user id came from a verified token
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Client) Bind(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// Send queues data without blocking
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrDeliveryDropped
	}
}

// Reply sends a message to this connection only
func (c *Client) Reply(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// Close stops the write pump, which closes the socket
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ReadPump handles incoming messages from the client until the connection
// fails or ctx is cancelled. Frames are handled in order.
func (c *Client) ReadPump(ctx context.Context, handler MessageHandler) {
	defer func() {
		c.Close()
		c.conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-c.done:
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "user_id", c.UserID(), "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		handler.HandleMessage(ctx, c, message)
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write error", "user_id", c.UserID(), "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
