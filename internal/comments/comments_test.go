package comments

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"

	"github.com/urlsfyi/urls/internal/reqctx"
	"github.com/urlsfyi/urls/internal/tid"
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
	CREATE TABLE urls (
		id TEXT PRIMARY KEY, url TEXT NOT NULL UNIQUE, status_code INTEGER NOT NULL,
		title TEXT NOT NULL, description TEXT NOT NULL, image TEXT NOT NULL,
		created_by TEXT NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL
	);
	CREATE TABLE comments (
		id TEXT PRIMARY KEY, url_id TEXT NOT NULL REFERENCES urls(id),
		created_by TEXT NOT NULL REFERENCES users(id), replies_to TEXT REFERENCES comments(id),
		text TEXT NOT NULL, created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func TestDeleteRequiresOwnerOrCapability(t *testing.T) {
	db := setupTestDB(t)
	userStore := users.NewStore(db, nil)
	commentStore := NewStore(db)

	author, _ := userStore.Create(context.Background(), "Author", "author@urls.fyi")
	other, _ := userStore.Create(context.Background(), "Other", "other@urls.fyi")

	urlID := tid.New[tid.URLKind]()
	_, err := db.Exec(`INSERT INTO urls (id, url, status_code, title, description, image, created_by, created_at, updated_at)
		VALUES (?, 'https://example.com/x', 200, '', '', '', ?, 0, 0)`, urlID.String(), author.ID.String())
	if err != nil {
		t.Fatalf("seed url: %v", err)
	}

	c, err := commentStore.Create(context.Background(), urlID, author.ID, nil, "hello")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/api/comments/"+c.ID.String(), nil)
	otherCtx := reqctx.New(db, req, reqctx.Collaborators{Users: userStore})
	otherCtx.Authenticate(other.ID)

	if err := commentStore.Delete(otherCtx, c); err != users.ErrNotAuthorized {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	authorCtx := reqctx.New(db, req, reqctx.Collaborators{Users: userStore})
	authorCtx.Authenticate(author.ID)
	if err := commentStore.Delete(authorCtx, c); err != nil {
		t.Fatalf("expected owner delete to succeed, got %v", err)
	}
}
