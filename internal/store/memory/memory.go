package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boop/server/internal/geo"
	"boop/server/internal/models"
	"boop/server/internal/store"
)

// Store keeps users and groups in process memory. Used for development and tests.
type Store struct {
	mu     sync.RWMutex
	users  map[string]*models.User
	groups map[string]*models.Group
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		users:  make(map[string]*models.User),
		groups: make(map[string]*models.Group),
	}
}

var _ store.Store = (*Store)(nil)

func copyUser(u *models.User) *models.User {
	c := *u
	if u.Location != nil {
		loc := *u.Location
		c.Location = &loc
	}
	if u.LocationUpdatedAt != nil {
		at := *u.LocationUpdatedAt
		c.LocationUpdatedAt = &at
	}
	if u.GroupID != nil {
		g := *u.GroupID
		c.GroupID = &g
	}
	return &c
}

func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[uid]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.UpdatedAt = time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = user.UpdatedAt
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Store) SetLocation(ctx context.Context, uid string, p geo.Point, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[uid]
	if !ok {
		return store.ErrUserNotFound
	}
	loc := p
	u.Location = &loc
	u.LocationUpdatedAt = &at
	u.UpdatedAt = at
	return nil
}

func (s *Store) FindWithinRadius(ctx context.Context, center geo.Point, radius float64, exclude string) ([]models.Candidate, error) {
	box := geo.BoundingBox(center, radius)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Candidate
	for _, u := range s.users {
		if u.ID == exclude || u.Location == nil {
			continue
		}
		if !u.Privacy.ShareLocation || !u.Privacy.ProximityAlertsEnabled {
			continue
		}
		if !box.Contains(*u.Location) {
			continue
		}
		out = append(out, models.Candidate{
			UID:                    u.ID,
			Name:                   u.Name,
			Location:               *u.Location,
			GroupID:                u.InGroup(),
			ProximityAlertsEnabled: u.Privacy.ProximityAlertsEnabled,
		})
	}
	return out, nil
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, store.ErrGroupNotFound
	}
	c := *g
	c.Members = append([]string(nil), g.Members...)
	c.BoopLog = append([]models.BoopRecord(nil), g.BoopLog...)
	return &c, nil
}

func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.ID]; exists {
		return fmt.Errorf("group %s already exists", group.ID)
	}

	members := make([]string, 0, len(group.Members))
	seen := make(map[string]bool, len(group.Members))
	for _, uid := range group.Members {
		if seen[uid] {
			continue
		}
		u, ok := s.users[uid]
		if !ok {
			return fmt.Errorf("member %s: %w", uid, store.ErrUserNotFound)
		}
		if u.GroupID != nil {
			return fmt.Errorf("member %s: %w", uid, store.ErrAlreadyMember)
		}
		seen[uid] = true
		members = append(members, uid)
	}

	now := time.Now()
	group.Members = members
	group.CreatedAt, group.UpdatedAt = now, now
	g := *group
	g.Members = append([]string(nil), members...)
	g.BoopLog = nil
	s.groups[group.ID] = &g

	for _, uid := range members {
		id := group.ID
		s.users[uid].GroupID = &id
	}
	return nil
}

func (s *Store) SharedGroup(ctx context.Context, uidA, uidB string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, okA := s.users[uidA]
	b, okB := s.users[uidB]
	if !okA || !okB {
		return "", store.ErrUserNotFound
	}
	if a.GroupID == nil || b.GroupID == nil || *a.GroupID != *b.GroupID {
		return "", nil
	}
	if _, ok := s.groups[*a.GroupID]; !ok {
		return "", nil
	}
	return *a.GroupID, nil
}

func (s *Store) Members(ctx context.Context, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, store.ErrGroupNotFound
	}
	return append([]string(nil), g.Members...), nil
}

func (s *Store) AppendBoop(ctx context.Context, groupID string, rec models.BoopRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return store.ErrGroupNotFound
	}
	g.BoopLog = append(g.BoopLog, rec)
	g.UpdatedAt = time.Now()
	return nil
}

func (s *Store) BoopLog(ctx context.Context, groupID string) ([]models.BoopRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, store.ErrGroupNotFound
	}
	return append([]models.BoopRecord(nil), g.BoopLog...), nil
}

func (s *Store) Close(ctx context.Context) error { return nil }
