package websocket

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type received struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// fakeSession records every frame sent to it
type fakeSession struct {
	id string

	mu     sync.Mutex
	userID string
	auth   bool
	frames []received
	closed bool
	full   bool
}

func newFakeSession(id, userID string) *fakeSession {
	return &fakeSession{id: id, userID: userID, auth: userID != ""}
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnClosed
	}
	if f.full {
		return ErrDeliveryDropped
	}
	var r received
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	f.frames = append(f.frames, r)
	return nil
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSession) UserID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID
}

func (f *fakeSession) Authenticated() bool { return f.auth }

func (f *fakeSession) Bind(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userID = userID
}

func (f *fakeSession) Reply(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return f.Send(data)
}

func (f *fakeSession) types() []EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EventType, 0, len(f.frames))
	for _, r := range f.frames {
		out = append(out, r.Type)
	}
	return out
}

func (f *fakeSession) payloads(t EventType) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, r := range f.frames {
		if r.Type == t {
			out = append(out, r.Payload)
		}
	}
	return out
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestHub_RegisterMultiDevice(t *testing.T) {
	hub := NewHub(discardLogger())
	phone := newFakeSession("phone", "a")
	tablet := newFakeSession("tablet", "a")

	assert.True(t, hub.Register("a", phone))
	assert.False(t, hub.Register("a", tablet))
	assert.False(t, hub.Register("a", phone), "registering twice is a no-op")
	assert.Len(t, hub.ConnectionsFor("a"), 2)
	assert.Empty(t, hub.ConnectionsFor("b"))

	uid, last, ok := hub.Unregister(phone)
	assert.Equal(t, "a", uid)
	assert.False(t, last)
	assert.True(t, ok)
	assert.True(t, hub.IsUserOnline("a"))

	_, last, ok = hub.Unregister(tablet)
	assert.True(t, last)
	assert.True(t, ok)
	assert.False(t, hub.IsUserOnline("a"))

	_, _, ok = hub.Unregister(tablet)
	assert.False(t, ok, "unknown connections are ignored")
}

func TestHub_RegisterMovesConnection(t *testing.T) {
	hub := NewHub(discardLogger())
	conn := newFakeSession("c1", "")

	hub.Register("a", conn)
	assert.True(t, hub.Register("b", conn))

	assert.False(t, hub.IsUserOnline("a"))
	assert.Len(t, hub.ConnectionsFor("b"), 1)
	assert.Equal(t, 1, hub.Stats().Connections)
}

func TestHub_SendToUser(t *testing.T) {
	hub := NewHub(discardLogger())
	phone := newFakeSession("phone", "a")
	tablet := newFakeSession("tablet", "a")
	tablet.full = true
	hub.Register("a", phone)
	hub.Register("a", tablet)

	n := hub.SendToUser("a", NewMessage(EventProximityAlert, ProximityAlertPayload{CanBoop: true}))
	assert.Equal(t, 1, n, "a full buffer drops only that connection")
	assert.Equal(t, []EventType{EventProximityAlert}, phone.types())

	assert.Equal(t, 0, hub.SendToUser("nobody", NewMessage(EventProximityAlert, nil)))

	n = hub.SendToUsers([]string{"a", "nobody"}, NewMessage(EventMemberLocationUpdated, nil))
	assert.Equal(t, 1, n)
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub(discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := newFakeSession(fmt.Sprintf("c%d", i), "")
			uid := fmt.Sprintf("u%d", i%5)
			hub.Register(uid, conn)
			hub.SendToUser(uid, NewMessage(EventHeartbeat, nil))
			hub.Unregister(conn)
		}(i)
	}
	wg.Wait()

	stats := hub.Stats()
	assert.Equal(t, 0, stats.OnlineUsers)
	assert.Equal(t, 0, stats.Connections)
}

func TestHub_StatsAndClose(t *testing.T) {
	hub := NewHub(discardLogger())
	a := newFakeSession("1", "a")
	b1 := newFakeSession("2", "b")
	b2 := newFakeSession("3", "b")
	hub.Register("b", b1)
	hub.Register("a", a)
	hub.Register("b", b2)

	stats := hub.Stats()
	assert.Equal(t, 2, stats.OnlineUsers)
	assert.Equal(t, 3, stats.Connections)
	assert.Equal(t, []string{"a", "b"}, stats.UserIDs)

	hub.Close()
	require.True(t, a.isClosed())
	require.True(t, b1.isClosed())
	require.True(t, b2.isClosed())
	assert.Equal(t, 0, hub.Stats().Connections)
}
