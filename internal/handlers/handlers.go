// Package handlers wires the trust-plane operations (internal/login,
// internal/invites, internal/users, internal/urls, internal/comments,
// internal/permissions) onto a JSON HTTP API. Every handler follows the
// same shape: decode, call the domain store, translate its error into
// the matching api.* response helper.
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/urlsfyi/urls/internal/api"
	"github.com/urlsfyi/urls/internal/audit"
	"github.com/urlsfyi/urls/internal/comments"
	"github.com/urlsfyi/urls/internal/fetch"
	"github.com/urlsfyi/urls/internal/invites"
	"github.com/urlsfyi/urls/internal/login"
	"github.com/urlsfyi/urls/internal/mailer"
	"github.com/urlsfyi/urls/internal/middleware"
	"github.com/urlsfyi/urls/internal/reqctx"
	"github.com/urlsfyi/urls/internal/search"
	"github.com/urlsfyi/urls/internal/urls"
	"github.com/urlsfyi/urls/internal/users"
	"github.com/urlsfyi/urls/internal/xsrf"
)

// Deps bundles every store and collaborator the handlers need, plus the
// session envelope key - a single init-time dependency bundle rather
// than package globals per store.
type Deps struct {
	DB           *sql.DB
	Users        *users.Store
	Invites      *invites.Store
	Logins       *login.Store
	Urls         *urls.Store
	Comments     *comments.Store
	Mailer       mailer.Mailer
	Search       search.Index
	HTTP         fetch.Client
	SessionKey   []byte
	CookieSecure bool
}

// Register mounts every trust-plane route onto mux.
func (d *Deps) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login/request", d.handleRequestLogin)
	mux.HandleFunc("POST /api/login/claim", d.handleClaimLogin)
	mux.HandleFunc("POST /api/login/revoke", d.handleRevokeLogin)
	mux.HandleFunc("GET /api/viewer", d.handleViewer)
	mux.HandleFunc("POST /api/register", d.handleRegister)
	mux.HandleFunc("POST /api/invites", d.handleIssueInvite)
	mux.HandleFunc("POST /api/permissions/grant", d.handleGrantPermission)
	mux.HandleFunc("POST /api/permissions/revoke", d.handleRevokePermission)
	mux.HandleFunc("POST /api/urls", d.handleCreateURL)
	mux.HandleFunc("DELETE /api/urls/{id}", d.handleDeleteURL)
	mux.HandleFunc("POST /api/urls/{id}/upvote", d.handleUpvoteURL)
	mux.HandleFunc("DELETE /api/urls/{id}/upvote", d.handleRemoveUpvote)
	mux.HandleFunc("POST /api/urls/{id}/comments", d.handleCreateComment)
	mux.HandleFunc("DELETE /api/comments/{id}", d.handleDeleteComment)
}

// newContext builds a reqctx.Context for r and resolves its identity
// against the session cookie, if any: extract cookie, validate it via
// the login store, attach the resolved user. It then sets the xsrf
// cookie on w, before the handler writes its response.
func (d *Deps) newContext(w http.ResponseWriter, r *http.Request) *reqctx.Context {
	ctx := reqctx.New(d.DB, r, reqctx.Collaborators{
		Users:  d.Users,
		Mailer: d.Mailer,
		Search: d.Search,
		HTTP:   d.HTTP,
	})
	if userID, ok := middleware.ResolveIdentity(ctx.Ctx(), d.Logins, ctx.Now(), ctx.UserAgent(), ctx.RemoteIP()); ok {
		ctx.Authenticate(userID)
	}
	d.finish(w, ctx)
	return ctx
}

// finish sets the xsrf cookie every response carries. A cookie added
// after the response header is written is not sent, so the call that
// takes effect is the one in newContext; the handlers' deferred calls
// run after the response is written and add nothing to it.
func (d *Deps) finish(w http.ResponseWriter, ctx *reqctx.Context) {
	xsrf.Set(w, ctx.XSRFToken(), d.CookieSecure)
}

// checkXSRF enforces the double-submit token on state-changing requests,
// failing without touching any store state if it does not match.
func (d *Deps) checkXSRF(w http.ResponseWriter, r *http.Request, ctx *reqctx.Context) bool {
	if !xsrf.CheckRequest(r, ctx.XSRFToken()) {
		api.Error(w, http.StatusForbidden, "XSRF_MISMATCH", "missing or invalid XSRF token", nil)
		return false
	}
	return true
}

// auditEvent assembles the shared audit fields for the current request:
// trace ID, remote IP, user agent, and the caller's email when the
// context is authenticated.
func auditEvent(r *http.Request, ctx *reqctx.Context, action, resource string) audit.Event {
	e := audit.Event{
		RequestID: middleware.RequestID(r),
		RemoteIP:  ctx.RemoteIP(),
		UserAgent: ctx.UserAgent(),
		Action:    action,
		Resource:  resource,
	}
	if u, err := ctx.MaybeUser(); err == nil && u != nil {
		e.UserEmail = u.Email
	}
	return e
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeDomainError maps the shared authentication/authorization error
// sentinels (reqctx/permissions/users) to their api.* response helper.
// Handlers call this first and fall through to their own mapping for
// package-specific errors.
func writeDomainError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, reqctx.ErrNotAuthenticated):
		api.Unauthorized(w, "authentication required")
	case errors.Is(err, users.ErrNotAuthorized):
		api.Forbidden(w, "you do not have permission to perform this action")
	default:
		return false
	}
	return true
}
