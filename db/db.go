// Package db provides database connection helpers and schema migration.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the given DSN.
func Connect(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and
// indices. It is the embedded fallback for deployments that don't ship the
// versioned migration files.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stream_watches (
			tenant TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			login TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			is_live BOOLEAN NOT NULL DEFAULT FALSE,
			session_id TEXT NOT NULL DEFAULT '',
			game_id TEXT NOT NULL DEFAULT '',
			game_name TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			session_started_at TIMESTAMPTZ,
			thumbnail_url TEXT NOT NULL DEFAULT '',
			last_viewer_count INTEGER NOT NULL DEFAULT 0,
			notify_channel_id TEXT NOT NULL DEFAULT '',
			notify_message_id TEXT NOT NULL DEFAULT '',
			peak_viewers INTEGER NOT NULL DEFAULT 0,
			total_viewers INTEGER NOT NULL DEFAULT 0,
			sample_count INTEGER NOT NULL DEFAULT 0,
			announce_text TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ,
			PRIMARY KEY (tenant, entity_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stream_watches_login ON stream_watches (tenant, LOWER(login))`,
		`CREATE TABLE IF NOT EXISTS tenant_config (
			tenant TEXT PRIMARY KEY,
			live_channel_id TEXT NOT NULL DEFAULT '',
			clips_channel_id TEXT NOT NULL DEFAULT '',
			chat_announce_login TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ
		)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
