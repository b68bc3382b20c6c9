package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectTimeout = 10 * time.Second

// DB wraps the pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// Connect opens the pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Health pings the database, used by the readiness endpoint.
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS boards (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    pair_code      TEXT NOT NULL UNIQUE,
    time_mode      TEXT NOT NULL DEFAULT 'AUTO',
    override_until TIMESTAMPTZ,
    timezone       TEXT NOT NULL DEFAULT 'UTC',
    zoom_level     INTEGER NOT NULL DEFAULT 1,
    current_page   INTEGER NOT NULL DEFAULT 1,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS horses (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    board_id    UUID NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    note        TEXT,
    note_expiry TIMESTAMPTZ,
    archived    BOOLEAN NOT NULL DEFAULT false,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feeds (
    id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    board_id      UUID NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
    name          TEXT NOT NULL,
    unit          TEXT NOT NULL DEFAULT '',
    rank          INTEGER NOT NULL DEFAULT 0,
    stock_level   DOUBLE PRECISION,
    stock_warn_at DOUBLE PRECISION,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS diet_entries (
    horse_id   UUID NOT NULL REFERENCES horses(id) ON DELETE CASCADE,
    feed_id    UUID NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
    am_amount  DOUBLE PRECISION,
    pm_amount  DOUBLE PRECISION,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (horse_id, feed_id)
);

CREATE INDEX IF NOT EXISTS idx_horses_board ON horses(board_id);
CREATE INDEX IF NOT EXISTS idx_feeds_board ON feeds(board_id);
CREATE INDEX IF NOT EXISTS idx_boards_override ON boards(override_until) WHERE override_until IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_horses_note_expiry ON horses(note_expiry) WHERE note_expiry IS NOT NULL;
`

// Migrate applies the schema. Idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
