package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/urlsfyi/urls/internal/api"
	"github.com/urlsfyi/urls/internal/audit"
	"github.com/urlsfyi/urls/internal/comments"
	"github.com/urlsfyi/urls/internal/tid"
	"github.com/urlsfyi/urls/internal/urls"
)

type createURLInput struct {
	URL string `json:"url"`
}

// handleCreateURL submits a new url: canonicalize, reject duplicates,
// fetch, extract metadata, persist.
func (d *Deps) handleCreateURL(w http.ResponseWriter, r *http.Request) {
	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)

	if !d.checkXSRF(w, r, ctx) {
		return
	}

	creator, err := ctx.UserID()
	if err != nil {
		api.Unauthorized(w, "authentication required")
		return
	}

	var in createURLInput
	if err := decodeJSON(r, &in); err != nil {
		api.InvalidJSON(w, "malformed request body")
		return
	}
	if in.URL == "" {
		api.MissingField(w, "url")
		return
	}

	u, err := d.Urls.Create(ctx, in.URL, creator)
	if err != nil {
		switch {
		case errors.Is(err, urls.ErrInvalidURL):
			api.ValidationError(w, "not a valid url", "url", "format")
		case errors.Is(err, urls.ErrDuplicate):
			api.Conflict(w, "that url has already been submitted")
		case errors.Is(err, urls.ErrFetchFailed):
			api.Error(w, http.StatusBadGateway, "FETCH_FAILED", "could not fetch that url", nil)
		default:
			api.InternalError(w, err)
		}
		return
	}

	api.Success(w, http.StatusCreated, urlResponse(u))
}

// handleDeleteURL removes a url, cascading to its comments and upvotes.
// The caller must own it or hold delete_any_url.
func (d *Deps) handleDeleteURL(w http.ResponseWriter, r *http.Request) {
	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)

	if !d.checkXSRF(w, r, ctx) {
		return
	}

	id, err := tid.Parse[tid.URLKind](r.PathValue("id"))
	if err != nil {
		api.ValidationError(w, "invalid url id", "id", "format")
		return
	}

	u, err := d.Urls.ByID(ctx.Ctx(), id)
	if err != nil {
		if errors.Is(err, urls.ErrNotFound) {
			api.ResourceNotFound(w, "url", r.PathValue("id"))
			return
		}
		api.InternalError(w, err)
		return
	}

	if err := d.Urls.Delete(ctx, u); err != nil {
		if writeDomainError(w, err) {
			return
		}
		api.InternalError(w, err)
		return
	}

	audit.Success(auditEvent(r, ctx, "url.delete", u.URL))
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}

func (d *Deps) handleUpvoteURL(w http.ResponseWriter, r *http.Request) {
	d.handleUpvoteChange(w, r, d.Urls.Upvote)
}

func (d *Deps) handleRemoveUpvote(w http.ResponseWriter, r *http.Request) {
	d.handleUpvoteChange(w, r, d.Urls.RemoveUpvote)
}

// handleUpvoteChange applies apply (Upvote or RemoveUpvote) for the
// caller against the url named by the request path, both of which are
// idempotent at the store layer (see internal/urls/upvotes.go).
func (d *Deps) handleUpvoteChange(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, urlID tid.URLID, userID tid.UserID) error) {
	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)

	if !d.checkXSRF(w, r, ctx) {
		return
	}

	userID, err := ctx.UserID()
	if err != nil {
		api.Unauthorized(w, "authentication required")
		return
	}

	urlID, err := tid.Parse[tid.URLKind](r.PathValue("id"))
	if err != nil {
		api.ValidationError(w, "invalid url id", "id", "format")
		return
	}

	if err := apply(ctx.Ctx(), urlID, userID); err != nil {
		api.InternalError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}

type urlOut struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	CreatedBy   string `json:"created_by"`
}

func urlResponse(u *urls.Url) urlOut {
	return urlOut{
		ID:          u.ID.String(),
		URL:         u.URL,
		Title:       u.Title,
		Description: u.Description,
		Image:       u.Image,
		CreatedBy:   u.CreatedBy.String(),
	}
}

type createCommentInput struct {
	Text      string  `json:"text"`
	RepliesTo *string `json:"replies_to,omitempty"`
}

// handleCreateComment posts a comment on a url, optionally threaded under
// another comment.
func (d *Deps) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)

	if !d.checkXSRF(w, r, ctx) {
		return
	}

	author, err := ctx.UserID()
	if err != nil {
		api.Unauthorized(w, "authentication required")
		return
	}

	urlID, err := tid.Parse[tid.URLKind](r.PathValue("id"))
	if err != nil {
		api.ValidationError(w, "invalid url id", "id", "format")
		return
	}

	var in createCommentInput
	if err := decodeJSON(r, &in); err != nil {
		api.InvalidJSON(w, "malformed request body")
		return
	}
	if in.Text == "" {
		api.MissingField(w, "text")
		return
	}

	var repliesTo *tid.CommentID
	if in.RepliesTo != nil {
		parsed, err := tid.Parse[tid.CommentKind](*in.RepliesTo)
		if err != nil {
			api.ValidationError(w, "invalid replies_to id", "replies_to", "format")
			return
		}
		repliesTo = &parsed
	}

	c, err := d.Comments.Create(ctx.Ctx(), urlID, author, repliesTo, in.Text)
	if err != nil {
		api.InternalError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, map[string]string{
		"id":   c.ID.String(),
		"text": c.Text,
	})
}

// handleDeleteComment removes a comment. The caller must own it or hold
// delete_any_comment.
func (d *Deps) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := d.newContext(w, r)
	defer d.finish(w, ctx)

	if !d.checkXSRF(w, r, ctx) {
		return
	}

	id, err := tid.Parse[tid.CommentKind](r.PathValue("id"))
	if err != nil {
		api.ValidationError(w, "invalid comment id", "id", "format")
		return
	}

	c, err := d.Comments.ByID(ctx.Ctx(), id)
	if err != nil {
		if errors.Is(err, comments.ErrNotFound) {
			api.ResourceNotFound(w, "comment", r.PathValue("id"))
			return
		}
		api.InternalError(w, err)
		return
	}

	if err := d.Comments.Delete(ctx, c); err != nil {
		if writeDomainError(w, err) {
			return
		}
		api.InternalError(w, err)
		return
	}

	audit.Success(auditEvent(r, ctx, "comment.delete", c.ID.String()))
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}
