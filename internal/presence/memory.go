package presence

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	online    bool
	lastSeen  time.Time
	expiresAt time.Time
}

// MemoryTracker is a process-local Tracker. A zero ttl disables expiry.
type MemoryTracker struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*entry
	now     func() time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{
		ttl:     ttl,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (m *MemoryTracker) touch(uid string) {
	now := m.now()
	e, ok := m.entries[uid]
	if !ok {
		e = &entry{}
		m.entries[uid] = e
	}
	e.online = true
	e.lastSeen = now
	if m.ttl > 0 {
		e.expiresAt = now.Add(m.ttl)
	}
}

func (m *MemoryTracker) Connect(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(uid)
	return nil
}

// Heartbeat marks the user online and restarts the TTL
func (m *MemoryTracker) Heartbeat(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(uid)
	return nil
}

func (m *MemoryTracker) Disconnect(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[uid]
	if !ok {
		e = &entry{}
		m.entries[uid] = e
	}
	e.online = false
	e.lastSeen = m.now()
	return nil
}

func (m *MemoryTracker) isOnline(uid string) bool {
	e, ok := m.entries[uid]
	if !ok || !e.online {
		return false
	}
	return m.ttl <= 0 || m.now().Before(e.expiresAt)
}

func (m *MemoryTracker) IsOnline(ctx context.Context, uid string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isOnline(uid), nil
}

func (m *MemoryTracker) Online(ctx context.Context, uids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(uids))
	for _, uid := range uids {
		if m.isOnline(uid) {
			out[uid] = true
		}
	}
	return out, nil
}

func (m *MemoryTracker) LastSeen(ctx context.Context, uid string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[uid]; ok {
		return e.lastSeen, nil
	}
	return time.Time{}, nil
}
