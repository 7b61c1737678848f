package invites

import (
	"context"
	"database/sql"
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
	PRAGMA foreign_keys = ON;
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE
	);
	CREATE TABLE roles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		permission TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE invites (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		created_by TEXT NOT NULL REFERENCES users(id),
		claimed_by TEXT REFERENCES users(id),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func TestInviteQuota(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	userStore := users.NewStore(db, nil)
	inviteStore := NewStore(db, userStore)

	issuer, err := userStore.Create(ctx, "Test User", "test.user@urls.fyi")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := inviteStore.Issue(ctx, issuer.ID); err != nil {
			t.Fatalf("Issue #%d: %v", i, err)
		}
	}
	if _, err := inviteStore.Issue(ctx, issuer.ID); err != ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded on 4th issue, got %v", err)
	}
}

func TestInviteQuotaUnlimitedForAdmin(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	userStore := users.NewStore(db, nil)
	inviteStore := NewStore(db, userStore)

	admin, err := userStore.Create(ctx, "Test Administrator", "admin@urls.fyi")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := userStore.GrantRole(ctx, admin.ID, users.Administrator); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}

	for i := 0; i < 10; i++ {
		if _, err := inviteStore.Issue(ctx, admin.ID); err != nil {
			t.Fatalf("Issue #%d: %v", i, err)
		}
	}
}

func TestClaimSingleUse(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	userStore := users.NewStore(db, nil)
	inviteStore := NewStore(db, userStore)

	issuer, _ := userStore.Create(ctx, "Issuer", "issuer@urls.fyi")
	inv, err := inviteStore.Issue(ctx, issuer.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claimer, _ := userStore.Create(ctx, "Claimer", "claimer@urls.fyi")
	if err := inviteStore.Claim(ctx, inv.ID, claimer.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	other, _ := userStore.Create(ctx, "Other", "other@urls.fyi")
	if err := inviteStore.Claim(ctx, inv.ID, other.ID); err != ErrAlreadyClaimed {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestRegisterUserAtomicPairing(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	userStore := users.NewStore(db, nil)
	inviteStore := NewStore(db, userStore)

	issuer, _ := userStore.Create(ctx, "Issuer", "issuer2@urls.fyi")
	inv, err := inviteStore.Issue(ctx, issuer.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	u, err := inviteStore.RegisterUser(ctx, "New User", "new@urls.fyi", inv.Token)
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	got, err := inviteStore.ByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("ByToken: %v", err)
	}
	if got.ClaimedBy == nil || !got.ClaimedBy.Equal(u.ID) {
		t.Fatalf("expected invite claimed by new user")
	}

	if _, err := inviteStore.RegisterUser(ctx, "Second", "second@urls.fyi", inv.Token); err != ErrAlreadyClaimed {
		t.Fatalf("expected ErrAlreadyClaimed on reuse, got %v", err)
	}
}
