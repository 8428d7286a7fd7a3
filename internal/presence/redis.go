package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "presence:"
	lastSeenKeyPrefix = "lastseen:"
)

// RedisTracker stores presence under presence:<uid> with a TTL refreshed by
// heartbeats. Last-seen survives disconnects under lastseen:<uid>. A zero ttl
// keeps presence until Disconnect.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl < 0 {
		// go-redis reads a negative expiration as KEEPTTL
		ttl = 0
	}
	return &RedisTracker{client: client, ttl: ttl}
}

func (r *RedisTracker) set(ctx context.Context, uid string) error {
	now := time.Now()
	data, err := json.Marshal(Presence{UID: uid, Status: StatusOnline, LastSeen: now})
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, presenceKey(uid), data, r.ttl)
	pipe.Set(ctx, lastSeenKey(uid), now.UnixMilli(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

func (r *RedisTracker) Connect(ctx context.Context, uid string) error {
	return r.set(ctx, uid)
}

// Heartbeat rewrites the presence key with a fresh TTL, so a user whose key
// lapsed while the socket stayed open is online again
func (r *RedisTracker) Heartbeat(ctx context.Context, uid string) error {
	return r.set(ctx, uid)
}

func (r *RedisTracker) Disconnect(ctx context.Context, uid string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, presenceKey(uid))
	pipe.Set(ctx, lastSeenKey(uid), time.Now().UnixMilli(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	return nil
}

func (r *RedisTracker) IsOnline(ctx context.Context, uid string) (bool, error) {
	n, err := r.client.Exists(ctx, presenceKey(uid)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to get presence: %w", err)
	}
	return n == 1, nil
}

// Online checks many users in one round trip
func (r *RedisTracker) Online(ctx context.Context, uids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	keys := make([]string, len(uids))
	for i, uid := range uids {
		keys[i] = presenceKey(uid)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk presence: %w", err)
	}

	for i, result := range results {
		data, ok := result.(string)
		if !ok {
			continue
		}
		var p Presence
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			continue
		}
		if p.Status == StatusOnline {
			out[uids[i]] = true
		}
	}
	return out, nil
}

func (r *RedisTracker) LastSeen(ctx context.Context, uid string) (time.Time, error) {
	ms, err := r.client.Get(ctx, lastSeenKey(uid)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last seen: %w", err)
	}
	return time.UnixMilli(ms), nil
}

func presenceKey(uid string) string {
	return presenceKeyPrefix + uid
}

func lastSeenKey(uid string) string {
	return lastSeenKeyPrefix + uid
}
