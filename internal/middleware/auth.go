package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/urlsfyi/urls/internal/envelope"
	"github.com/urlsfyi/urls/internal/login"
	"github.com/urlsfyi/urls/internal/tid"
)

// SessionCookieName is the name of the cookie carrying the signed session
// envelope (see internal/envelope). Its value is opaque: the raw bearer
// token lives only inside the envelope's authenticated payload, never in
// the cookie name or in any unsigned form.
const SessionCookieName = "session"

// SessionExpiry bounds how long a minted envelope is trusted before the
// client must re-derive it; it has no bearing on the underlying login's
// own sliding-window expiry, which internal/login enforces independently.
const SessionExpiry = 30 * 24 * time.Hour

type sessionTokenKey struct{}

// SessionMiddleware decodes the session cookie's envelope, if present, and
// stashes the bearer token it carries on the request context for handlers
// to resolve. A missing, malformed, or expired envelope is never an error
// here - per-operation authorization is internal/permissions' job, not
// this middleware's. The request always passes through; it is simply
// left anonymous on failure.
func SessionMiddleware(key []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := sessionTokenFromRequest(r, key); ok {
				ctx := context.WithValue(r.Context(), sessionTokenKey{}, token)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionTokenFromRequest(r *http.Request, key []byte) (string, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	token, err := envelope.Decode(c.Value, key, time.Now().UTC())
	if err != nil {
		return "", false
	}
	return token, true
}

// SessionTokenFromContext returns the bearer token resolved by
// SessionMiddleware, if any. Handlers pass it to login.Store.UseSession to
// resolve and authenticate a reqctx.Context.
func SessionTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionTokenKey{}).(string)
	return token, ok
}

// ResolveIdentity resolves the session token carried on ctx (if any)
// against store, returning the authenticated user id. A failed or absent
// session is never surfaced as a request error; callers get back
// ok == false and proceed anonymously.
func ResolveIdentity(ctx context.Context, store *login.Store, now time.Time, userAgent, remoteIP string) (tid.UserID, bool) {
	token, ok := SessionTokenFromContext(ctx)
	if !ok {
		return tid.UserID{}, false
	}
	userID, err := store.UseSession(ctx, now, token, userAgent, remoteIP)
	if err != nil {
		return tid.UserID{}, false
	}
	return userID, true
}

// SetSession writes a freshly minted session envelope to the response.
func SetSession(w http.ResponseWriter, sessionToken string, key []byte, secure bool) error {
	encoded, err := envelope.Encode(sessionToken, time.Now().UTC().Add(SessionExpiry), key)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(SessionExpiry.Seconds()),
	})
	return nil
}

// ClearSession removes the session cookie.
func ClearSession(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
