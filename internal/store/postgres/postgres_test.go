package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boop/server/internal/database"
	"boop/server/internal/geo"
	"boop/server/internal/models"
	"boop/server/internal/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, url)
	require.NoError(t, err)
	require.NoError(t, database.EnsureSchema(ctx, pool))

	_, err = pool.Exec(ctx, `TRUNCATE boops, group_members, users, groups CASCADE`)
	require.NoError(t, err)

	t.Cleanup(pool.Close)
	return New(pool)
}

// unique ids keep reruns independent of leftovers
func newTestUser(t *testing.T, s *Store, loc *geo.Point) *models.User {
	t.Helper()
	u := models.NewUser(uuid.NewString(), "Tester", "tester@example.com")
	u.Location = loc
	require.NoError(t, s.UpsertUser(context.Background(), u))
	return u
}

func TestPostgresStore_UserRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u := newTestUser(t, s, nil)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Name, got.Name)
	assert.Nil(t, got.Location)
	assert.Equal(t, models.DefaultThresholds(), got.Thresholds)
	assert.True(t, got.Privacy.ProximityAlertsEnabled)

	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.SetLocation(ctx, u.ID, geo.Point{Latitude: 43.6532, Longitude: -79.3832}, at))

	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Location)
	assert.Equal(t, 43.6532, got.Location.Latitude)
	assert.WithinDuration(t, at, *got.LocationUpdatedAt, time.Millisecond)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	assert.ErrorIs(t, s.SetLocation(ctx, "missing", geo.Point{}, at), store.ErrUserNotFound)
}

func TestPostgresStore_FindWithinRadius(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	center := geo.Point{Latitude: 43.6532, Longitude: -79.3832}
	me := newTestUser(t, s, &center)
	near := newTestUser(t, s, &geo.Point{Latitude: 43.6532, Longitude: -79.38326})
	newTestUser(t, s, &geo.Point{Latitude: 43.70, Longitude: -79.3832})

	got, err := s.FindWithinRadius(ctx, center, 100, me.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, near.ID, got[0].UID)
}

func TestPostgresStore_GroupsAndBoops(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	a := newTestUser(t, s, nil)
	b := newTestUser(t, s, nil)
	c := newTestUser(t, s, nil)

	groupID := uuid.NewString()[:6]
	require.NoError(t, s.CreateGroup(ctx, &models.Group{ID: groupID, Name: "G", Members: []string{a.ID, b.ID}}))

	shared, err := s.SharedGroup(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, groupID, shared)

	shared, err = s.SharedGroup(ctx, a.ID, c.ID)
	require.NoError(t, err)
	assert.Empty(t, shared)

	members, err := s.Members(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, members)

	rec := models.NewBoopRecord(a.ID, b.ID, &geo.Point{Latitude: 1, Longitude: 2})
	require.NoError(t, s.AppendBoop(ctx, groupID, rec))
	assert.ErrorIs(t, s.AppendBoop(ctx, "nope", models.NewBoopRecord(a.ID, b.ID, nil)), store.ErrGroupNotFound)

	log, err := s.BoopLog(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, rec.ID, log[0].ID)
	require.NotNil(t, log[0].Location)
	assert.Equal(t, 2.0, log[0].Location.Longitude)

	_, err = s.BoopLog(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrGroupNotFound)
}
