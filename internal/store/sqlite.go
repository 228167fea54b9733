package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
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
		created_at DATETIME NOT NULL,
		published_at DATETIME NOT NULL,
		upvotes INTEGER NOT NULL DEFAULT 0,
		downvotes INTEGER NOT NULL DEFAULT 0,
		upvoted_by TEXT NOT NULL DEFAULT '[]',
		downvoted_by TEXT NOT NULL DEFAULT '[]',
		flags TEXT NOT NULL DEFAULT '[]',
		quality_score INTEGER NOT NULL DEFAULT 0,
		hidden_by_moderation INTEGER NOT NULL DEFAULT 0,
		me_toos TEXT NOT NULL DEFAULT '[]',
		me_too_count INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1
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
		created_at DATETIME NOT NULL,
		last_login DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	`

// NewSQLiteStore opens (creating if needed) the SQLite database at path.
func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLStore{db: db, dialect: dialectSQLite}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}
