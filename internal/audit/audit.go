// Package audit keeps a durable record of authentication and
// authorization-relevant events: login issuance and claims, session
// revocations, permission changes, and moderator deletions. Each event
// carries the request ID stamped by the tracing middleware plus the
// user-agent/remote-IP pair the request context threads through every
// operation.
package audit

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

var db *sql.DB

// Init wires the package to the shared database handle and creates the
// audit_logs table if it does not exist.
func Init(database *sql.DB) error {
	db = database

	const schema = `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		request_id TEXT,
		user_email TEXT,
		remote_ip TEXT,
		user_agent TEXT,
		action TEXT NOT NULL,
		resource TEXT,
		result TEXT,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_logs(action);
	CREATE INDEX IF NOT EXISTS idx_audit_request_id ON audit_logs(request_id);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("audit: create table: %w", err)
	}
	return nil
}

// Event is a single audit record. UserEmail may be empty for anonymous
// requests (e.g. a failed login claim for an unknown account).
type Event struct {
	ID        int64
	Timestamp time.Time
	RequestID string
	UserEmail string
	RemoteIP  string
	UserAgent string
	Action    string
	Resource  string
	Result    string
	Details   string
}

// Record persists an event. Failures are logged and returned, so callers
// on hot paths can choose to ignore them - a lost audit row must never
// turn a successful operation into a 500.
func Record(e Event) error {
	if db == nil {
		return fmt.Errorf("audit: not initialized")
	}

	_, err := db.Exec(`
		INSERT INTO audit_logs (request_id, user_email, remote_ip, user_agent, action, resource, result, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RequestID, e.UserEmail, e.RemoteIP, e.UserAgent, e.Action, e.Resource, e.Result, e.Details)
	if err != nil {
		log.Printf("audit: write failed: %v", err)
	}
	return err
}

// Success records a succeeded action.
func Success(e Event) error {
	e.Result = "success"
	return Record(e)
}

// Failure records a failed action with the reason in Details.
func Failure(e Event, reason string) error {
	e.Result = "failure"
	e.Details = reason
	return Record(e)
}

// Recent returns the most recent events, newest first.
func Recent(limit int) ([]Event, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: not initialized")
	}

	rows, err := db.Query(`
		SELECT id, timestamp, request_id, user_email, remote_ip, user_agent, action, resource, result, details
		FROM audit_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.RequestID, &e.UserEmail, &e.RemoteIP, &e.UserAgent, &e.Action, &e.Resource, &e.Result, &e.Details); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup removes events older than daysToKeep days.
func Cleanup(daysToKeep int) error {
	if db == nil {
		return fmt.Errorf("audit: not initialized")
	}

	res, err := db.Exec(`DELETE FROM audit_logs WHERE timestamp < datetime('now', '-' || ? || ' days')`, daysToKeep)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("audit: removed %d old entries", n)
	}
	return nil
}
