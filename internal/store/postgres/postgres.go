package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"boop/server/internal/geo"
	"boop/server/internal/models"
	"boop/server/internal/store"
)

// foreign_key_violation
const fkViolation = "23503"

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ store.Store = (*Store)(nil)

const userColumns = `uid, name, email, profile_picture, latitude, longitude, location_updated_at,
	group_id, hot_zone, warm_zone, cold_zone, share_location, visible_to_friends,
	visible_to_everyone, proximity_alerts_enabled, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u        models.User
		lat, lon *float64
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.ProfilePicture,
		&lat,
		&lon,
		&u.LocationUpdatedAt,
		&u.GroupID,
		&u.Thresholds.Hot,
		&u.Thresholds.Warm,
		&u.Thresholds.Cold,
		&u.Privacy.ShareLocation,
		&u.Privacy.VisibleToFriends,
		&u.Privacy.VisibleToEveryone,
		&u.Privacy.ProximityAlertsEnabled,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		u.Location = &geo.Point{Latitude: *lat, Longitude: *lon}
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	var lat, lon *float64
	if user.Location != nil {
		lat, lon = &user.Location.Latitude, &user.Location.Longitude
	}
	user.UpdatedAt = time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = user.UpdatedAt
	}

	query := `INSERT INTO users (uid, name, email, profile_picture, latitude, longitude, location_updated_at,
	              hot_zone, warm_zone, cold_zone, share_location, visible_to_friends, visible_to_everyone,
	              proximity_alerts_enabled, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	          ON CONFLICT (uid) DO UPDATE SET
	              name = EXCLUDED.name,
	              email = EXCLUDED.email,
	              profile_picture = EXCLUDED.profile_picture,
	              latitude = EXCLUDED.latitude,
	              longitude = EXCLUDED.longitude,
	              location_updated_at = EXCLUDED.location_updated_at,
	              hot_zone = EXCLUDED.hot_zone,
	              warm_zone = EXCLUDED.warm_zone,
	              cold_zone = EXCLUDED.cold_zone,
	              share_location = EXCLUDED.share_location,
	              visible_to_friends = EXCLUDED.visible_to_friends,
	              visible_to_everyone = EXCLUDED.visible_to_everyone,
	              proximity_alerts_enabled = EXCLUDED.proximity_alerts_enabled,
	              updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.ProfilePicture,
		lat,
		lon,
		user.LocationUpdatedAt,
		user.Thresholds.Hot,
		user.Thresholds.Warm,
		user.Thresholds.Cold,
		user.Privacy.ShareLocation,
		user.Privacy.VisibleToFriends,
		user.Privacy.VisibleToEveryone,
		user.Privacy.ProximityAlertsEnabled,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *Store) SetLocation(ctx context.Context, uid string, p geo.Point, at time.Time) error {
	query := `UPDATE users SET latitude = $2, longitude = $3, location_updated_at = $4, updated_at = $4
	          WHERE uid = $1`

	tag, err := s.pool.Exec(ctx, query, uid, p.Latitude, p.Longitude, at)
	if err != nil {
		return fmt.Errorf("failed to set location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// FindWithinRadius pre-filters on the bounding box; the index on
// (latitude, longitude) serves the range scan.
func (s *Store) FindWithinRadius(ctx context.Context, center geo.Point, radius float64, exclude string) ([]models.Candidate, error) {
	box := geo.BoundingBox(center, radius)

	query := `SELECT uid, name, latitude, longitude, COALESCE(group_id, ''), proximity_alerts_enabled
	          FROM users
	          WHERE uid <> $1
	            AND latitude IS NOT NULL AND longitude IS NOT NULL
	            AND share_location AND proximity_alerts_enabled
	            AND latitude BETWEEN $2 AND $3
	            AND ($6 OR longitude BETWEEN $4 AND $5)`

	rows, err := s.pool.Query(ctx, query, exclude, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, box.AllLongitudes)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby users: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.UID, &c.Name, &c.Location.Latitude, &c.Location.Longitude, &c.GroupID, &c.ProximityAlertsEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan nearby user: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var g models.Group
	err := s.pool.QueryRow(ctx,
		`SELECT group_id, name, created_at, updated_at FROM groups WHERE group_id = $1`, groupID,
	).Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	if g.Members, err = s.members(ctx, groupID); err != nil {
		return nil, err
	}
	if g.BoopLog, err = s.boops(ctx, groupID); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	_, err = tx.Exec(ctx,
		`INSERT INTO groups (group_id, name, created_at, updated_at) VALUES ($1, $2, $3, $3)`,
		group.ID, group.Name, now)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	members := make([]string, 0, len(group.Members))
	seen := make(map[string]bool, len(group.Members))
	for _, uid := range group.Members {
		if seen[uid] {
			continue
		}

		var current *string
		err := tx.QueryRow(ctx, `SELECT group_id FROM users WHERE uid = $1 FOR UPDATE`, uid).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("member %s: %w", uid, store.ErrUserNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock member %s: %w", uid, err)
		}
		if current != nil {
			return fmt.Errorf("member %s: %w", uid, store.ErrAlreadyMember)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO group_members (group_id, uid) VALUES ($1, $2)`, group.ID, uid); err != nil {
			return fmt.Errorf("failed to add member %s: %w", uid, err)
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET group_id = $1, updated_at = $2 WHERE uid = $3`, group.ID, now, uid); err != nil {
			return fmt.Errorf("failed to set group for %s: %w", uid, err)
		}
		seen[uid] = true
		members = append(members, uid)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit group: %w", err)
	}
	group.Members = members
	group.CreatedAt, group.UpdatedAt = now, now
	return nil
}

func (s *Store) SharedGroup(ctx context.Context, uidA, uidB string) (string, error) {
	rows, err := s.pool.Query(ctx, `SELECT uid, group_id FROM users WHERE uid = ANY($1)`, []string{uidA, uidB})
	if err != nil {
		return "", fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	groups := make(map[string]*string, 2)
	for rows.Next() {
		var (
			uid     string
			groupID *string
		)
		if err := rows.Scan(&uid, &groupID); err != nil {
			return "", fmt.Errorf("failed to scan group: %w", err)
		}
		groups[uid] = groupID
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	a, okA := groups[uidA]
	b, okB := groups[uidB]
	if !okA || !okB {
		return "", store.ErrUserNotFound
	}
	if a == nil || b == nil || *a != *b {
		return "", nil
	}
	return *a, nil
}

func (s *Store) Members(ctx context.Context, groupID string) ([]string, error) {
	if err := s.groupExists(ctx, groupID); err != nil {
		return nil, err
	}
	return s.members(ctx, groupID)
}

func (s *Store) AppendBoop(ctx context.Context, groupID string, rec models.BoopRecord) error {
	var lat, lon *float64
	if rec.Location != nil {
		lat, lon = &rec.Location.Latitude, &rec.Location.Longitude
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO boops (id, group_id, booper, boopee, ts, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, groupID, rec.Booper, rec.Boopee, rec.Timestamp, lat, lon)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
		return store.ErrGroupNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to append boop: %w", err)
	}

	_, err = s.pool.Exec(ctx, `UPDATE groups SET updated_at = NOW() WHERE group_id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("failed to touch group: %w", err)
	}
	return nil
}

func (s *Store) BoopLog(ctx context.Context, groupID string) ([]models.BoopRecord, error) {
	if err := s.groupExists(ctx, groupID); err != nil {
		return nil, err
	}
	return s.boops(ctx, groupID)
}

func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) groupExists(ctx context.Context, groupID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE group_id = $1)`, groupID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check group: %w", err)
	}
	if !exists {
		return store.ErrGroupNotFound
	}
	return nil
}

func (s *Store) members(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT uid FROM group_members WHERE group_id = $1 ORDER BY seq`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, uid)
	}
	return members, rows.Err()
}

func (s *Store) boops(ctx context.Context, groupID string) ([]models.BoopRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, booper, boopee, ts, latitude, longitude
		 FROM boops WHERE group_id = $1 ORDER BY seq`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query boops: %w", err)
	}
	defer rows.Close()

	var log []models.BoopRecord
	for rows.Next() {
		var (
			rec      models.BoopRecord
			lat, lon *float64
		)
		if err := rows.Scan(&rec.ID, &rec.Booper, &rec.Boopee, &rec.Timestamp, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan boop: %w", err)
		}
		if lat != nil && lon != nil {
			rec.Location = &geo.Point{Latitude: *lat, Longitude: *lon}
		}
		log = append(log, rec)
	}
	return log, rows.Err()
}
