package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urlsfyi/urls/internal/comments"
	"github.com/urlsfyi/urls/internal/envelope"
	"github.com/urlsfyi/urls/internal/invites"
	"github.com/urlsfyi/urls/internal/login"
	"github.com/urlsfyi/urls/internal/middleware"
	"github.com/urlsfyi/urls/internal/search"
	"github.com/urlsfyi/urls/internal/store"
	"github.com/urlsfyi/urls/internal/urls"
	"github.com/urlsfyi/urls/internal/users"
	"github.com/urlsfyi/urls/internal/xsrf"
)

func setupAPI(t *testing.T) (*Deps, http.Handler) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.Bootstrap(db); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	userStore := users.NewStore(db, nil)
	key, err := envelope.DeriveKey([]byte("test-secret"), "test.session")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}

	deps := &Deps{
		DB:         db,
		Users:      userStore,
		Invites:    invites.NewStore(db, userStore),
		Logins:     login.NewStore(db, userStore),
		Urls:       urls.NewStore(db),
		Comments:   comments.NewStore(db),
		Search:     search.Noop{},
		SessionKey: key,
	}

	mux := http.NewServeMux()
	deps.Register(mux)
	return deps, middleware.SessionMiddleware(key)(mux)
}

// sessionCookie seeds a user, claims a login for them, and returns the
// account plus a session cookie ready to attach to requests.
func sessionCookie(t *testing.T, d *Deps) (*users.User, *http.Cookie) {
	t.Helper()
	ctx := httptest.NewRequest("GET", "/", nil).Context()
	now := time.Now().UTC()

	u, err := d.Users.Create(ctx, "Test User", "test.user@urls.fyi")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	l, err := d.Logins.RequestLogin(ctx, now, u, nil)
	if err != nil {
		t.Fatalf("RequestLogin: %v", err)
	}
	token, err := d.Logins.Claim(ctx, now, u.Email, l.EmailToken)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	encoded, err := envelope.Encode(token, now.Add(time.Hour), d.SessionKey)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return u, &http.Cookie{Name: middleware.SessionCookieName, Value: encoded}
}

func errorCode(t *testing.T, body string) string {
	t.Helper()
	var envl struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &envl); err != nil {
		t.Fatalf("decode error envelope %q: %v", body, err)
	}
	return envl.Error.Code
}

func TestMutationWithoutXSRFTouchesNoState(t *testing.T) {
	d, handler := setupAPI(t)
	_, cookie := sessionCookie(t, d)

	req := httptest.NewRequest("POST", "/api/invites", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if code := errorCode(t, rr.Body.String()); code != "XSRF_MISMATCH" {
		t.Fatalf("error code = %q, want XSRF_MISMATCH", code)
	}

	var count int
	if err := d.DB.QueryRow(`SELECT COUNT(*) FROM invites`).Scan(&count); err != nil {
		t.Fatalf("count invites: %v", err)
	}
	if count != 0 {
		t.Fatalf("invite created despite XSRF failure")
	}
}

func TestIssueInviteWithXSRF(t *testing.T) {
	d, handler := setupAPI(t)
	_, cookie := sessionCookie(t, d)

	token, err := xsrf.New()
	if err != nil {
		t.Fatalf("xsrf.New: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/invites", nil)
	req.AddCookie(cookie)
	req.AddCookie(&http.Cookie{Name: xsrf.CookieName, Value: token})
	req.Header.Set(xsrf.HeaderName, token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"token"`) {
		t.Fatalf("response missing invite token: %s", rr.Body.String())
	}
}

func TestMutationRequiresAuthentication(t *testing.T) {
	_, handler := setupAPI(t)

	token, err := xsrf.New()
	if err != nil {
		t.Fatalf("xsrf.New: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/invites", nil)
	req.AddCookie(&http.Cookie{Name: xsrf.CookieName, Value: token})
	req.Header.Set(xsrf.HeaderName, token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestViewerAnonymousReturnsNull(t *testing.T) {
	_, handler := setupAPI(t)

	req := httptest.NewRequest("GET", "/api/viewer", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (anonymous is not an error)", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"data":null}` {
		t.Fatalf("body = %s, want null data", rr.Body.String())
	}

	// Every response re-emits the xsrf cookie.
	found := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == xsrf.CookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("xsrf cookie not re-emitted")
	}
}
