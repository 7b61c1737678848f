// Package reqctx implements the per-request bundle threaded through every
// trust-plane operation: a pinned clock, the DB handle, resolved identity,
// the XSRF token, audit fields, and handles to external collaborators.
package reqctx

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/urlsfyi/urls/internal/fetch"
	"github.com/urlsfyi/urls/internal/mailer"
	"github.com/urlsfyi/urls/internal/search"
	"github.com/urlsfyi/urls/internal/tid"
	"github.com/urlsfyi/urls/internal/users"
	"github.com/urlsfyi/urls/internal/xsrf"
)

// ErrNotAuthenticated is returned by UserID when the context is anonymous.
var ErrNotAuthenticated = errors.New("reqctx: not authenticated")

// Collaborators bundles the external handles a Context exposes.
type Collaborators struct {
	Users  *users.Store
	Mailer mailer.Mailer
	Search search.Index
	HTTP   fetch.Client
}

// Context is constructed once per request. Construction never fails;
// identity resolution happens afterward (internal/login) and may leave it
// anonymous.
type Context struct {
	ctx       context.Context
	db        *sql.DB
	now       time.Time
	userID    *tid.UserID
	xsrfToken string
	userAgent string
	remoteIP  string

	collab Collaborators
}

// New builds an anonymous Context pinned to the current instant. If the
// request carries no xsrf cookie, a fresh token is generated and adopted
// for the request's lifetime; callers are responsible for re-emitting it
// (see xsrf.Set) since construction itself never writes to the response.
func New(db *sql.DB, r *http.Request, collab Collaborators) *Context {
	token := xsrf.FromRequest(r)
	if token == "" {
		if fresh, err := xsrf.New(); err == nil {
			token = fresh
		}
	}
	return &Context{
		ctx:       r.Context(),
		db:        db,
		now:       time.Now().UTC(),
		xsrfToken: token,
		userAgent: r.UserAgent(),
		remoteIP:  remoteIP(r),
		collab:    collab,
	}
}

// NewLocal builds a Context for non-HTTP callers (cmd/modcli). The audit
// fields record the local process instead of a browser, and the XSRF
// token is fresh since there is no cookie to round-trip.
func NewLocal(ctx context.Context, db *sql.DB, collab Collaborators) *Context {
	token, _ := xsrf.New()
	return &Context{
		ctx:       ctx,
		db:        db,
		now:       time.Now().UTC(),
		xsrfToken: token,
		userAgent: "modcli",
		remoteIP:  "local",
		collab:    collab,
	}
}

// Now returns the instant pinned at construction time.
func (c *Context) Now() time.Time { return c.now }

// DB returns the shared database handle.
func (c *Context) DB() *sql.DB { return c.db }

// Authenticate attaches a resolved user to the context. Called by
// internal/handlers once internal/login has validated the session, and by
// cmd/modcli for the user its -as flag names.
func (c *Context) Authenticate(id tid.UserID) { c.userID = &id }

// MaybeUserID returns the resolved user id, if any.
func (c *Context) MaybeUserID() (tid.UserID, bool) {
	if c.userID == nil {
		return tid.UserID{}, false
	}
	return *c.userID, true
}

// UserID returns the resolved user id or ErrNotAuthenticated.
func (c *Context) UserID() (tid.UserID, error) {
	if c.userID == nil {
		return tid.UserID{}, ErrNotAuthenticated
	}
	return *c.userID, nil
}

// MaybeUser loads the resolved user, if any, performing a DB read.
func (c *Context) MaybeUser() (*users.User, error) {
	id, ok := c.MaybeUserID()
	if !ok {
		return nil, nil
	}
	return c.collab.Users.ByID(c.ctx, id)
}

// User loads the resolved user or fails ErrNotAuthenticated.
func (c *Context) User() (*users.User, error) {
	id, err := c.UserID()
	if err != nil {
		return nil, err
	}
	return c.collab.Users.ByID(c.ctx, id)
}

// Ctx returns the underlying context.Context, for operations that need it
// to pass through to store calls (e.g. internal/login, internal/urls).
func (c *Context) Ctx() context.Context { return c.ctx }

// XSRFToken returns the token carried for this request's lifetime.
func (c *Context) XSRFToken() string { return c.xsrfToken }

// CheckXSRF validates a client-supplied token against the context token.
func (c *Context) CheckXSRF(token string) bool {
	return xsrf.Check(c.xsrfToken, token)
}

// UserAgent returns the request's User-Agent header.
func (c *Context) UserAgent() string { return c.userAgent }

// RemoteIP returns the resolved client IP.
func (c *Context) RemoteIP() string { return c.remoteIP }

// Mailer returns the mail-sending collaborator.
func (c *Context) Mailer() mailer.Mailer { return c.collab.Mailer }

// Search returns the search-index collaborator.
func (c *Context) Search() search.Index { return c.collab.Search }

// HTTPClient returns the external-fetch collaborator.
func (c *Context) HTTPClient() fetch.Client { return c.collab.HTTP }

// Users exposes the user/role store for operations that need it directly.
func (c *Context) Users() *users.Store { return c.collab.Users }

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// the first entry is the originating client
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
