package bootstrap

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/urlsfyi/urls/internal/users"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	schema := `
	CREATE TABLE users (
		id TEXT PRIMARY KEY, created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL,
		name TEXT NOT NULL, email TEXT NOT NULL UNIQUE
	);
	CREATE TABLE roles (
		id TEXT PRIMARY KEY, user_id TEXT NOT NULL REFERENCES users(id),
		permission TEXT NOT NULL, created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func TestBootstrapCreatesAdministrator(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := users.NewStore(db, nil)

	in := strings.NewReader("Root Admin\nroot@urls.fyi\n")
	var out bytes.Buffer
	if err := Run(ctx, store, in, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	n, err := store.CountByPermission(ctx, users.Administrator)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 administrator, got %d (%v)", n, err)
	}
}

func TestBootstrapIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := users.NewStore(db, nil)

	u, err := store.Create(ctx, "Existing Admin", "existing@urls.fyi")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.GrantRole(ctx, u.ID, users.Administrator); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}

	// Bootstrap should not touch stdin at all once an administrator exists.
	in := strings.NewReader("")
	var out bytes.Buffer
	if err := Run(ctx, store, in, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	n, err := store.CountByPermission(ctx, users.Administrator)
	if err != nil || n != 1 {
		t.Fatalf("expected exactly 1 administrator, got %d (%v)", n, err)
	}
}
