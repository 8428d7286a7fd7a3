package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := New()
	v.Set("JWT_SECRET", "secret")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, DriverMemory, cfg.PresenceDriver)
	assert.Equal(t, "boop", cfg.MongoDatabase)
	assert.Equal(t, 60*time.Second, cfg.PresenceTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 100.0, cfg.AlertRadius)
	assert.Equal(t, 30*time.Second, cfg.RealertInterval)
	assert.Equal(t, 5*time.Second, cfg.IdempotencyWindow)
	assert.False(t, cfg.AllowAnonymousJoin)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestFromViper_Overrides(t *testing.T) {
	v := New()
	v.Set("JWT_SECRET", "secret")
	v.Set("STORE_DRIVER", "Postgres")
	v.Set("DATABASE_URL", "postgres://localhost/boop")
	v.Set("PRESENCE_DRIVER", "redis")
	v.Set("REDIS_URL", "redis://localhost:6379/0")
	v.Set("ALERT_RADIUS_METERS", "250")
	v.Set("REALERT_INTERVAL", "1m")
	v.Set("LOG_LEVEL", "DEBUG")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, DriverRedis, cfg.PresenceDriver)
	assert.Equal(t, 250.0, cfg.AlertRadius)
	assert.Equal(t, time.Minute, cfg.RealertInterval)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
		want string
	}{
		{"missing secret", map[string]any{"JWT_SECRET": ""}, "JWT_SECRET"},
		{"unknown store", map[string]any{"STORE_DRIVER": "sqlite"}, "STORE_DRIVER"},
		{"postgres without dsn", map[string]any{"STORE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"mongo without uri", map[string]any{"STORE_DRIVER": "mongo"}, "MONGO_URI"},
		{"unknown presence", map[string]any{"PRESENCE_DRIVER": "etcd"}, "PRESENCE_DRIVER"},
		{"redis without url", map[string]any{"PRESENCE_DRIVER": "redis"}, "REDIS_URL"},
		{"zero radius", map[string]any{"ALERT_RADIUS_METERS": 0}, "ALERT_RADIUS_METERS"},
		{"radius below boop zone", map[string]any{"ALERT_RADIUS_METERS": 5}, "ALERT_RADIUS_METERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set("JWT_SECRET", "secret")
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := FromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
