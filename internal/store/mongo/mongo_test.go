package mongo

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
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := database.NewMongoDatabase(ctx, uri, "boop_test_"+uuid.NewString()[:8])
	require.NoError(t, err)

	s, err := New(ctx, db)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func seed(t *testing.T, s *Store, uid string, loc *geo.Point) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertUser(ctx, models.NewUser(uid, "User "+uid, uid+"@example.com")))
	if loc != nil {
		require.NoError(t, s.SetLocation(ctx, uid, *loc, time.Now()))
	}
}

func TestMongoStore_Users(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	center := geo.Point{Latitude: 43.6532, Longitude: -79.3832}
	seed(t, s, "me", &center)
	seed(t, s, "near", &geo.Point{Latitude: 43.6532, Longitude: -79.38326})
	seed(t, s, "far", &geo.Point{Latitude: 43.70, Longitude: -79.3832})
	seed(t, s, "nowhere", nil)

	u, err := s.GetUser(ctx, "me")
	require.NoError(t, err)
	require.NotNil(t, u.Location)
	assert.Equal(t, center, *u.Location)

	got, err := s.FindWithinRadius(ctx, center, 100, "me")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].UID)

	_, err = s.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestMongoStore_GroupsAndBoops(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seed(t, s, "a", nil)
	seed(t, s, "b", nil)
	seed(t, s, "c", nil)

	require.NoError(t, s.CreateGroup(ctx, &models.Group{ID: "ABC123", Name: "G", Members: []string{"a", "b"}}))

	err := s.CreateGroup(ctx, &models.Group{ID: "XYZ999", Name: "H", Members: []string{"c", "a"}})
	assert.ErrorIs(t, err, store.ErrAlreadyMember)
	shared, err := s.SharedGroup(ctx, "a", "c")
	require.NoError(t, err)
	assert.Empty(t, shared, "failed group creation releases claimed members")

	shared, err = s.SharedGroup(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", shared)

	rec := models.NewBoopRecord("a", "b", nil)
	require.NoError(t, s.AppendBoop(ctx, "ABC123", rec))
	assert.ErrorIs(t, s.AppendBoop(ctx, "nope", rec), store.ErrGroupNotFound)

	log, err := s.BoopLog(ctx, "ABC123")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, rec.ID, log[0].ID)
}
