package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		company TEXT NOT NULL,
		description TEXT NOT NULL,
		primary_category TEXT NOT NULL DEFAULT '',
		subcategory TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		severity TEXT NOT NULL,
		time_wasted INTEGER NOT NULL DEFAULT 0,
		screenshot TEXT NOT NULL DEFAULT '',
		submitted_by TEXT NOT NULL DEFAULT 'Anonymous',
		user_id TEXT,
		approved INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		published_at TIMESTAMPTZ NOT NULL,
		upvotes INTEGER NOT NULL DEFAULT 0,
		downvotes INTEGER NOT NULL DEFAULT 0,
		upvoted_by TEXT NOT NULL DEFAULT '[]',
		downvoted_by TEXT NOT NULL DEFAULT '[]',
		flags TEXT NOT NULL DEFAULT '[]',
		quality_score INTEGER NOT NULL DEFAULT 0,
		hidden_by_moderation INTEGER NOT NULL DEFAULT 0,
		me_toos TEXT NOT NULL DEFAULT '[]',
		me_too_count INTEGER NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_visible ON submissions(approved, hidden_by_moderation);
	CREATE INDEX IF NOT EXISTS idx_submissions_published_at ON submissions(published_at);
	CREATE INDEX IF NOT EXISTS idx_submissions_quality_score ON submissions(quality_score);
	CREATE INDEX IF NOT EXISTS idx_submissions_user_id ON submissions(user_id);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT '',
		provider_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		last_login TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	`

// NewPostgresStore connects to databaseURL through the pgx stdlib driver and
// applies the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*SQLStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLStore{db: db, dialect: dialectPostgres}, nil
}
