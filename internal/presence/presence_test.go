package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTracker_ConnectDisconnect(t *testing.T) {
	tr := NewMemoryTracker(0)
	ctx := context.Background()

	online, err := tr.IsOnline(ctx, "a")
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, tr.Connect(ctx, "a"))
	online, _ = tr.IsOnline(ctx, "a")
	assert.True(t, online)

	require.NoError(t, tr.Disconnect(ctx, "a"))
	online, _ = tr.IsOnline(ctx, "a")
	assert.False(t, online)

	seen, err := tr.LastSeen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, seen.IsZero())
}

func TestMemoryTracker_ExpiresWithoutHeartbeat(t *testing.T) {
	tr := NewMemoryTracker(time.Minute)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	require.NoError(t, tr.Connect(ctx, "a"))

	now = now.Add(50 * time.Second)
	require.NoError(t, tr.Heartbeat(ctx, "a"))

	now = now.Add(50 * time.Second)
	online, _ := tr.IsOnline(ctx, "a")
	assert.True(t, online, "heartbeat extends the TTL")

	now = now.Add(2 * time.Minute)
	online, _ = tr.IsOnline(ctx, "a")
	assert.False(t, online)
}

func TestMemoryTracker_HeartbeatRevivesLapsedUser(t *testing.T) {
	tr := NewMemoryTracker(time.Minute)
	now := time.Now()
	tr.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, tr.Connect(ctx, "a"))
	now = now.Add(61 * time.Second)
	online, _ := tr.IsOnline(ctx, "a")
	require.False(t, online)

	require.NoError(t, tr.Heartbeat(ctx, "a"))
	online, _ = tr.IsOnline(ctx, "a")
	assert.True(t, online)
}

func TestMemoryTracker_Online(t *testing.T) {
	tr := NewMemoryTracker(0)
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx, "a"))
	require.NoError(t, tr.Connect(ctx, "b"))
	require.NoError(t, tr.Disconnect(ctx, "b"))

	got, err := tr.Online(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true}, got)
}

// getTestRedisClient connects to TEST_REDIS_URL or skips
func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisTracker_Lifecycle(t *testing.T) {
	client := getTestRedisClient(t)
	tr := NewRedisTracker(client, 30*time.Second)
	ctx := context.Background()
	uid := "test-" + uuid.NewString()
	defer client.Del(ctx, presenceKey(uid), lastSeenKey(uid))

	require.NoError(t, tr.Connect(ctx, uid))
	online, err := tr.IsOnline(ctx, uid)
	require.NoError(t, err)
	assert.True(t, online)

	got, err := tr.Online(ctx, []string{uid, "test-missing-" + uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{uid: true}, got)

	require.NoError(t, tr.Heartbeat(ctx, uid))
	require.NoError(t, tr.Disconnect(ctx, uid))

	online, err = tr.IsOnline(ctx, uid)
	require.NoError(t, err)
	assert.False(t, online)

	seen, err := tr.LastSeen(ctx, uid)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), seen, 5*time.Second)
}

// newMiniRedisTracker runs the tracker against an in-process redis
func newMiniRedisTracker(t *testing.T, ttl time.Duration) (*RedisTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTracker(client, ttl), mr
}

func TestRedisTracker_HeartbeatRevivesLapsedUser(t *testing.T) {
	tr, mr := newMiniRedisTracker(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, tr.Connect(ctx, "a"))
	mr.FastForward(61 * time.Second)

	online, err := tr.IsOnline(ctx, "a")
	require.NoError(t, err)
	require.False(t, online, "presence lapses without heartbeats")

	require.NoError(t, tr.Heartbeat(ctx, "a"))
	online, err = tr.IsOnline(ctx, "a")
	require.NoError(t, err)
	assert.True(t, online)
	assert.Equal(t, time.Minute, mr.TTL(presenceKey("a")))
}

func TestRedisTracker_ZeroTTLNeverExpires(t *testing.T) {
	tr, mr := newMiniRedisTracker(t, 0)
	ctx := context.Background()

	require.NoError(t, tr.Connect(ctx, "a"))
	require.NoError(t, tr.Heartbeat(ctx, "a"))
	mr.FastForward(24 * time.Hour)

	online, err := tr.IsOnline(ctx, "a")
	require.NoError(t, err)
	assert.True(t, online)
	assert.Zero(t, mr.TTL(presenceKey("a")))

	require.NoError(t, tr.Disconnect(ctx, "a"))
	online, err = tr.IsOnline(ctx, "a")
	require.NoError(t, err)
	assert.False(t, online)

	seen, err := tr.LastSeen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, seen.IsZero())
}

func TestRedisTracker_OnlineBulk(t *testing.T) {
	tr, _ := newMiniRedisTracker(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx, "a"))
	require.NoError(t, tr.Connect(ctx, "b"))
	require.NoError(t, tr.Disconnect(ctx, "b"))

	got, err := tr.Online(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true}, got)
}
