package presence

import (
	"context"
	"time"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Presence is the stored presence of one user
type Presence struct {
	UID      string    `json:"uid"`
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// Tracker records which users currently hold at least one live connection.
// Heartbeat marks a user online and restarts the TTL; callers only send it for
// users that still hold a connection. Trackers with a TTL mark users offline
// when heartbeats stop.
type Tracker interface {
	Connect(ctx context.Context, uid string) error
	Heartbeat(ctx context.Context, uid string) error
	Disconnect(ctx context.Context, uid string) error
	IsOnline(ctx context.Context, uid string) (bool, error)
	// Online returns the subset of uids that are online.
	Online(ctx context.Context, uids []string) (map[string]bool, error)
	LastSeen(ctx context.Context, uid string) (time.Time, error)
}
