package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	MaxConns        = 10
	MinConns        = 2
	MaxConnLifetime = 10 * time.Minute
	MaxConnIdleTime = 5 * time.Minute
)

// NewPostgresPool connects and pings the database
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	config.MaxConns = MaxConns
	config.MinConns = MinConns
	config.MaxConnLifetime = MaxConnLifetime
	config.MaxConnIdleTime = MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("postgres connected", "max_conns", MaxConns)
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS groups (
	group_id   TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
	uid                      TEXT PRIMARY KEY,
	name                     TEXT NOT NULL,
	email                    TEXT NOT NULL DEFAULT '',
	profile_picture          TEXT,
	latitude                 DOUBLE PRECISION,
	longitude                DOUBLE PRECISION,
	location_updated_at      TIMESTAMPTZ,
	group_id                 TEXT REFERENCES groups(group_id) ON DELETE SET NULL,
	hot_zone                 DOUBLE PRECISION NOT NULL DEFAULT 50,
	warm_zone                DOUBLE PRECISION NOT NULL DEFAULT 200,
	cold_zone                DOUBLE PRECISION NOT NULL DEFAULT 1000,
	share_location           BOOLEAN NOT NULL DEFAULT TRUE,
	visible_to_friends       BOOLEAN NOT NULL DEFAULT TRUE,
	visible_to_everyone      BOOLEAN NOT NULL DEFAULT FALSE,
	proximity_alerts_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_lat_lon ON users (latitude, longitude)
	WHERE latitude IS NOT NULL;

CREATE TABLE IF NOT EXISTS group_members (
	seq      BIGSERIAL PRIMARY KEY,
	group_id TEXT NOT NULL REFERENCES groups(group_id) ON DELETE CASCADE,
	uid      TEXT NOT NULL UNIQUE REFERENCES users(uid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS boops (
	seq       BIGSERIAL PRIMARY KEY,
	id        UUID NOT NULL UNIQUE,
	group_id  TEXT NOT NULL REFERENCES groups(group_id) ON DELETE CASCADE,
	booper    TEXT NOT NULL,
	boopee    TEXT NOT NULL,
	ts        TIMESTAMPTZ NOT NULL,
	latitude  DOUBLE PRECISION,
	longitude DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_boops_group ON boops (group_id, seq);
`

// EnsureSchema creates the tables if they don't exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
