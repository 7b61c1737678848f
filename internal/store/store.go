// Package store opens the shared database handle and bootstraps the
// schema: users, roles, invites, logins, urls, url_upvotes, comments,
// plus the app_config overlay table. The audit_logs table is owned by
// internal/audit.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// MaxOpenConns bounds the shared connection pool.
const MaxOpenConns = 8

// Open opens the SQLite database at path with a bounded connection pool
// and foreign-key enforcement turned on for every connection in the pool.
// modernc.org/sqlite applies DSN pragmas to each physical connection it
// opens, so appending _pragma here (rather than running "PRAGMA
// foreign_keys=ON" once after Open) is what actually makes it apply pool-wide.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(MaxOpenConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	return db, nil
}

// Bootstrap creates the schema if it does not already exist. It is
// idempotent and safe to call on every process start.
func Bootstrap(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS roles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		permission TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_roles_user_id ON roles(user_id);

	CREATE TABLE IF NOT EXISTS invites (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		created_by TEXT NOT NULL REFERENCES users(id),
		claimed_by TEXT REFERENCES users(id),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invites_created_by ON invites(created_by);

	CREATE TABLE IF NOT EXISTS logins (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		email_token TEXT NOT NULL,
		claim_until INTEGER NOT NULL,
		claimed INTEGER NOT NULL,
		session_token_hash TEXT,
		last_used INTEGER NOT NULL,
		last_user_agent TEXT,
		last_remote_ip TEXT,
		revoked INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_logins_user_id ON logins(user_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_logins_session_token_hash ON logins(session_token_hash);

	CREATE TABLE IF NOT EXISTS urls (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		status_code INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		image TEXT NOT NULL,
		created_by TEXT NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_urls_created_by ON urls(created_by);

	CREATE TABLE IF NOT EXISTS url_upvotes (
		url_id TEXT NOT NULL REFERENCES urls(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL,
		PRIMARY KEY (url_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		url_id TEXT NOT NULL REFERENCES urls(id),
		created_by TEXT NOT NULL REFERENCES users(id),
		replies_to TEXT REFERENCES comments(id),
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comments_url_id ON comments(url_id);

	CREATE TABLE IF NOT EXISTS app_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("store: bootstrap schema: %w", err)
	}
	return nil
}
