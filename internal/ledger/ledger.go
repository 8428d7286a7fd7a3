package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"boop/server/internal/models"
	"boop/server/internal/store"
)

// UnknownUserName is shown for participants that no longer resolve
const UnknownUserName = "Unknown User"

// Receipt is returned for every appended record
type Receipt struct {
	Record models.BoopRecord
	Group  models.GroupSummary
}

// Log is a group's boop history with names resolved at read time
type Log struct {
	GroupID   string                `json:"groupId"`
	GroupName string                `json:"groupName"`
	Entries   []models.BoopLogEntry `json:"boopLog"`
}

// Ledger appends boop records to group logs. Callers check that both
// participants share the group before appending.
type Ledger struct {
	groups store.GroupStore
	users  store.UserDirectory

	mu   sync.Mutex
	last map[string]time.Time
}

func New(groups store.GroupStore, users store.UserDirectory) *Ledger {
	return &Ledger{
		groups: groups,
		users:  users,
		last:   make(map[string]time.Time),
	}
}

// Append stores rec at the end of the group's log. Timestamps are kept
// strictly increasing per group at millisecond precision.
func (l *Ledger) Append(ctx context.Context, groupID string, rec models.BoopRecord) (*Receipt, error) {
	g, err := l.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("append boop to %s: %w", groupID, err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Millisecond)

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[groupID]; ok && !rec.Timestamp.After(last) {
		rec.Timestamp = last.Add(time.Millisecond)
	}

	if err := l.groups.AppendBoop(ctx, groupID, rec); err != nil {
		return nil, fmt.Errorf("append boop to %s: %w", groupID, err)
	}
	l.last[groupID] = rec.Timestamp

	return &Receipt{
		Record: rec,
		Group:  models.GroupSummary{GroupID: g.ID, Name: g.Name},
	}, nil
}

// LogFor returns the full history in insertion order. Names are looked up
// now, so a renamed user shows the new name on old entries.
func (l *Ledger) LogFor(ctx context.Context, groupID string) (*Log, error) {
	g, err := l.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("boop log for %s: %w", groupID, err)
	}

	records, err := l.groups.BoopLog(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("boop log for %s: %w", groupID, err)
	}

	names := make(map[string]string)
	resolve := func(uid string) (models.UserRef, error) {
		if name, ok := names[uid]; ok {
			return models.UserRef{UID: uid, Name: name}, nil
		}
		name := UnknownUserName
		u, err := l.users.GetUser(ctx, uid)
		switch {
		case err == nil:
			name = u.Name
		case !errors.Is(err, store.ErrUserNotFound):
			return models.UserRef{}, err
		}
		names[uid] = name
		return models.UserRef{UID: uid, Name: name}, nil
	}

	entries := make([]models.BoopLogEntry, 0, len(records))
	for _, rec := range records {
		booper, err := resolve(rec.Booper)
		if err != nil {
			return nil, fmt.Errorf("resolve booper %s: %w", rec.Booper, err)
		}
		boopee, err := resolve(rec.Boopee)
		if err != nil {
			return nil, fmt.Errorf("resolve boopee %s: %w", rec.Boopee, err)
		}
		entries = append(entries, models.BoopLogEntry{
			Booper:    booper,
			Boopee:    boopee,
			Timestamp: rec.Timestamp,
			Location:  models.PointToGeoJSON(rec.Location),
		})
	}

	return &Log{GroupID: g.ID, GroupName: g.Name, Entries: entries}, nil
}
