package handlers

import (
	"errors"
	"net/http"

	"github.com/urlsfyi/urls/internal/api"
	"github.com/urlsfyi/urls/internal/audit"
	"github.com/urlsfyi/urls/internal/invites"
	"github.com/urlsfyi/urls/internal/login"
	"github.com/urlsfyi/urls/internal/middleware"
	"github.com/urlsfyi/urls/internal/permissions"
	"github.com/urlsfyi/urls/internal/reqctx"
	"github.com/urlsfyi/urls/internal/tid"
	"github.com/urlsfyi/urls/internal/users"
)

type requestLoginInput struct {
	Email string `json:"email"`
}

// handleRequestLogin issues a PENDING login and emails its token. It
// responds {ok:true} both when the email belongs to a registered user and
// when it does not, so that answer cannot be used to enumerate accounts;
// a registered user over the per-hour login limit gets 429 instead.
func (d *Deps) handleRequestLogin(w http.ResponseWriter, r *http.Request) {
	var in requestLoginInput
	if err := decodeJSON(r, &in); err != nil {
		api.InvalidJSON(w, "malformed request body")
		return
	}
	if in.Email == "" {
		api.MissingField(w, "email")
		return
	}

	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)
	if !d.checkXSRF(w, r, ctx) {
		return
	}

	user, err := d.Users.ByEmail(ctx.Ctx(), in.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			api.Success(w, http.StatusOK, map[string]bool{"ok": true})
			return
		}
		api.InternalError(w, err)
		return
	}

	_, err = d.Logins.RequestLogin(ctx.Ctx(), ctx.Now(), user, ctx.Mailer())
	if err != nil {
		if errors.Is(err, login.ErrRateLimited) {
			audit.Failure(auditEvent(r, ctx, "login.request", user.Email), "rate limited")
			api.RateLimitExceeded(w, "too many login requests; try again later")
			return
		}
		api.InternalError(w, err)
		return
	}

	audit.Success(auditEvent(r, ctx, "login.request", user.Email))
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}

type claimLoginInput struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// handleClaimLogin completes a PENDING login, minting and returning a
// session cookie plus the request's XSRF cookie.
func (d *Deps) handleClaimLogin(w http.ResponseWriter, r *http.Request) {
	var in claimLoginInput
	if err := decodeJSON(r, &in); err != nil {
		api.InvalidJSON(w, "malformed request body")
		return
	}
	if in.Email == "" || in.Token == "" {
		api.MissingField(w, "email and token are required")
		return
	}

	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)
	if !d.checkXSRF(w, r, ctx) {
		return
	}

	sessionToken, err := d.Logins.Claim(ctx.Ctx(), ctx.Now(), in.Email, in.Token)
	if err != nil {
		audit.Failure(auditEvent(r, ctx, "login.claim", in.Email), err.Error())
		switch {
		case errors.Is(err, users.ErrNotFound), errors.Is(err, login.ErrNotFound):
			api.InvalidLoginToken(w)
		case errors.Is(err, login.ErrExpired):
			api.SessionExpired(w)
		case errors.Is(err, login.ErrInvalidToken), errors.Is(err, login.ErrAlreadyClaimed):
			api.InvalidLoginToken(w)
		default:
			api.InternalError(w, err)
		}
		return
	}

	if err := middleware.SetSession(w, sessionToken, d.SessionKey, d.CookieSecure); err != nil {
		api.InternalError(w, err)
		return
	}

	audit.Success(auditEvent(r, ctx, "login.claim", in.Email))
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}

type revokeLoginInput struct {
	LoginID string `json:"login_id"`
}

// handleRevokeLogin revokes a Login row owned by the caller. Requires
// both an authenticated caller and a matching XSRF token, since it is a
// state-changing request.
func (d *Deps) handleRevokeLogin(w http.ResponseWriter, r *http.Request) {
	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)

	if !d.checkXSRF(w, r, ctx) {
		return
	}

	caller, err := ctx.UserID()
	if err != nil {
		api.Unauthorized(w, "authentication required")
		return
	}

	var in revokeLoginInput
	if err := decodeJSON(r, &in); err != nil {
		api.InvalidJSON(w, "malformed request body")
		return
	}
	loginID, err := tid.Parse[tid.LoginKind](in.LoginID)
	if err != nil {
		api.ValidationError(w, "invalid login id", "login_id", "format")
		return
	}

	if err := d.Logins.Revoke(ctx.Ctx(), loginID, caller); err != nil {
		switch {
		case errors.Is(err, login.ErrNotFound):
			api.ResourceNotFound(w, "login", in.LoginID)
		case errors.Is(err, login.ErrForbidden):
			audit.Failure(auditEvent(r, ctx, "login.revoke", in.LoginID), "not the session owner")
			api.Forbidden(w, "you may only revoke your own sessions")
		default:
			api.InternalError(w, err)
		}
		return
	}

	audit.Success(auditEvent(r, ctx, "login.revoke", in.LoginID))
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}

type viewerResponse struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Email  string        `json:"email"`
	Logins []loginSummary `json:"logins"`
}

type loginSummary struct {
	ID       string `json:"id"`
	Claimed  bool   `json:"claimed"`
	Revoked  bool   `json:"revoked"`
	LastUsed string `json:"last_used"`
}

// handleViewer returns the authenticated user, or null if the request is
// anonymous - an expired or missing session is never an error here.
func (d *Deps) handleViewer(w http.ResponseWriter, r *http.Request) {
	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)

	user, err := ctx.MaybeUser()
	if err != nil {
		api.InternalError(w, err)
		return
	}
	if user == nil {
		api.Success(w, http.StatusOK, nil)
		return
	}

	rows, err := d.Logins.ListForUser(ctx.Ctx(), user.ID)
	if err != nil {
		api.InternalError(w, err)
		return
	}
	logins := make([]loginSummary, 0, len(rows))
	for _, l := range rows {
		logins = append(logins, loginSummary{
			ID:       l.ID.String(),
			Claimed:  l.Claimed,
			Revoked:  l.Revoked,
			LastUsed: l.LastUsed.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	api.Success(w, http.StatusOK, viewerResponse{
		ID:     user.ID.String(),
		Name:   user.Name,
		Email:  user.Email,
		Logins: logins,
	})
}

type registerInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// handleRegister performs the invite-gated registration pairing: create
// the user and claim the invite in one transaction.
func (d *Deps) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := decodeJSON(r, &in); err != nil {
		api.InvalidJSON(w, "malformed request body")
		return
	}
	if in.Name == "" || in.Email == "" || in.Token == "" {
		api.MissingField(w, "name, email, and token are required")
		return
	}

	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)

	if !d.checkXSRF(w, r, ctx) {
		return
	}

	user, err := d.Invites.RegisterUser(ctx.Ctx(), in.Name, in.Email, in.Token)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrInvalidEmail), errors.Is(err, users.ErrEmptyName), errors.Is(err, users.ErrDisposable):
			api.ValidationError(w, err.Error(), "email", "invalid")
		case errors.Is(err, users.ErrEmailTaken):
			api.Conflict(w, "that email is already registered")
		case errors.Is(err, invites.ErrNotFound):
			api.ResourceNotFound(w, "invite", in.Token)
		case errors.Is(err, invites.ErrAlreadyClaimed):
			api.Conflict(w, "that invite has already been claimed")
		default:
			api.InternalError(w, err)
		}
		return
	}

	audit.Success(auditEvent(r, ctx, "user.register", user.Email))
	api.Success(w, http.StatusCreated, map[string]string{
		"id":    user.ID.String(),
		"name":  user.Name,
		"email": user.Email,
	})
}

// handleIssueInvite issues a quota-limited invite for the caller.
func (d *Deps) handleIssueInvite(w http.ResponseWriter, r *http.Request) {
	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)

	if !d.checkXSRF(w, r, ctx) {
		return
	}

	caller, err := ctx.UserID()
	if err != nil {
		api.Unauthorized(w, "authentication required")
		return
	}

	inv, err := d.Invites.Issue(ctx.Ctx(), caller)
	if err != nil {
		writeInviteError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, map[string]string{
		"id":    inv.ID.String(),
		"token": inv.Token,
	})
}

type permissionInput struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
}

// handleGrantPermission grants a role; the caller must hold
// modify_user_roles.
func (d *Deps) handleGrantPermission(w http.ResponseWriter, r *http.Request) {
	d.handlePermissionChange(w, r, "role.grant", func(ctx *reqctx.Context, targetID tid.UserID, perm users.Permission) error {
		if _, err := permissions.Require(ctx, users.ModifyUserRoles); err != nil {
			return err
		}
		_, err := d.Users.GrantRole(ctx.Ctx(), targetID, perm)
		return err
	})
}

// handleRevokePermission revokes a role; the caller must hold
// modify_user_roles.
func (d *Deps) handleRevokePermission(w http.ResponseWriter, r *http.Request) {
	d.handlePermissionChange(w, r, "role.revoke", func(ctx *reqctx.Context, targetID tid.UserID, perm users.Permission) error {
		if _, err := permissions.Require(ctx, users.ModifyUserRoles); err != nil {
			return err
		}
		return d.Users.RevokeRole(ctx.Ctx(), targetID, perm)
	})
}

func (d *Deps) handlePermissionChange(w http.ResponseWriter, r *http.Request, action string, apply func(*reqctx.Context, tid.UserID, users.Permission) error) {
	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)

	if !d.checkXSRF(w, r, ctx) {
		return
	}

	var in permissionInput
	if err := decodeJSON(r, &in); err != nil {
		api.InvalidJSON(w, "malformed request body")
		return
	}

	targetID, err := tid.Parse[tid.UserKind](in.UserID)
	if err != nil {
		api.ValidationError(w, "invalid user id", "user_id", "format")
		return
	}
	perm := users.Permission(in.Permission)
	if perm != users.Administrator && perm != users.Moderator {
		api.ValidationError(w, "unknown permission", "permission", "enum")
		return
	}

	resource := in.UserID + ":" + in.Permission
	if err := apply(ctx, targetID, perm); err != nil {
		if errors.Is(err, users.ErrNotAuthorized) {
			audit.Failure(auditEvent(r, ctx, action, resource), "missing modify_user_roles")
		}
		if writeDomainError(w, err) {
			return
		}
		api.InternalError(w, err)
		return
	}

	audit.Success(auditEvent(r, ctx, action, resource))
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeInviteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invites.ErrQuotaExceeded):
		api.RateLimitExceeded(w, "invite quota exceeded")
	default:
		if !writeDomainError(w, err) {
			api.InternalError(w, err)
		}
	}
}
