package middleware

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/urlsfyi/urls/internal/envelope"
	"github.com/urlsfyi/urls/internal/login"
	"github.com/urlsfyi/urls/internal/tid"
	"github.com/urlsfyi/urls/internal/users"

	_ "modernc.org/sqlite"
)

func setupSessionDB(t *testing.T) (*sql.DB, *users.Store, *login.Store) {
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
	CREATE TABLE logins (
		id TEXT PRIMARY KEY, user_id TEXT NOT NULL REFERENCES users(id),
		email_token TEXT NOT NULL, claim_until INTEGER NOT NULL, claimed INTEGER NOT NULL,
		session_token_hash TEXT, last_used INTEGER NOT NULL, last_user_agent TEXT,
		last_remote_ip TEXT, revoked INTEGER NOT NULL, created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	userStore := users.NewStore(db, nil)
	loginStore := login.NewStore(db, userStore)
	return db, userStore, loginStore
}

func activeSession(t *testing.T, userStore *users.Store, loginStore *login.Store) (*users.User, tid.LoginID, string) {
	t.Helper()
	ctx := httptest.NewRequest("GET", "/", nil).Context()
	now := time.Now().UTC()

	u, err := userStore.Create(ctx, "Test User", "test@urls.fyi")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	l, err := loginStore.RequestLogin(ctx, now, u, nil)
	if err != nil {
		t.Fatalf("RequestLogin: %v", err)
	}
	sessionToken, err := loginStore.Claim(ctx, now, u.Email, l.EmailToken)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	return u, l.ID, sessionToken
}

func TestSessionMiddleware_ValidEnvelope(t *testing.T) {
	_, userStore, loginStore := setupSessionDB(t)
	_, _, sessionToken := activeSession(t, userStore, loginStore)

	key := envelope.RandomSecret()
	encoded, err := envelope.Encode(sessionToken, time.Now().Add(time.Hour), key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var sawToken string
	var sawOK bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawToken, sawOK = SessionTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: encoded})
	rr := httptest.NewRecorder()

	SessionMiddleware(key)(handler).ServeHTTP(rr, req)

	if !sawOK {
		t.Fatal("expected a session token in context")
	}
	if sawToken != sessionToken {
		t.Fatalf("token = %q, want %q", sawToken, sessionToken)
	}
}

func TestSessionMiddleware_NoCookie(t *testing.T) {
	key := envelope.RandomSecret()

	var sawOK bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawOK = SessionTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()

	SessionMiddleware(key)(handler).ServeHTTP(rr, req)

	if sawOK {
		t.Fatal("expected no session token")
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (anonymous requests still pass through)", rr.Code, http.StatusOK)
	}
}

func TestSessionMiddleware_WrongKey(t *testing.T) {
	_, userStore, loginStore := setupSessionDB(t)
	_, _, sessionToken := activeSession(t, userStore, loginStore)

	encodeKey := envelope.RandomSecret()
	decodeKey := envelope.RandomSecret()
	encoded, err := envelope.Encode(sessionToken, time.Now().Add(time.Hour), encodeKey)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var sawOK bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawOK = SessionTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: encoded})
	rr := httptest.NewRecorder()

	SessionMiddleware(decodeKey)(handler).ServeHTTP(rr, req)

	if sawOK {
		t.Fatal("expected bad-signature envelope to be rejected, not resolved")
	}
}

func TestResolveIdentity_ValidSession(t *testing.T) {
	_, userStore, loginStore := setupSessionDB(t)
	user, _, sessionToken := activeSession(t, userStore, loginStore)

	key := envelope.RandomSecret()
	encoded, err := envelope.Encode(sessionToken, time.Now().Add(time.Hour), key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: encoded})

	var resolved string
	var ok bool
	handler := SessionMiddleware(key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, found := ResolveIdentity(r.Context(), loginStore, time.Now().UTC(), r.UserAgent(), "127.0.0.1")
		ok = found
		if found {
			resolved = id.String()
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !ok {
		t.Fatal("expected identity to resolve")
	}
	if resolved != user.ID.String() {
		t.Fatalf("resolved user = %q, want %q", resolved, user.ID.String())
	}
}

func TestResolveIdentity_RevokedSession(t *testing.T) {
	_, userStore, loginStore := setupSessionDB(t)
	user, loginID, sessionToken := activeSession(t, userStore, loginStore)

	key := envelope.RandomSecret()
	encoded, err := envelope.Encode(sessionToken, time.Now().Add(time.Hour), key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	ctx := httptest.NewRequest("GET", "/", nil).Context()
	if err := loginStore.Revoke(ctx, loginID, user.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: encoded})

	var ok bool
	handler := SessionMiddleware(key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = ResolveIdentity(r.Context(), loginStore, time.Now().UTC(), r.UserAgent(), "127.0.0.1")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if ok {
		t.Fatal("a revoked session must not resolve an identity")
	}
}
