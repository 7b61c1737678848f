// Package urls implements the URL submission guard: canonicalization,
// uniqueness enforcement, fetch + meta extraction, and cascading,
// capability-checked deletion.
package urls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/urlsfyi/urls/internal/metaparser"
	"github.com/urlsfyi/urls/internal/permissions"
	"github.com/urlsfyi/urls/internal/reqctx"
	"github.com/urlsfyi/urls/internal/tid"
	"github.com/urlsfyi/urls/internal/users"
)

var (
	ErrInvalidURL  = errors.New("urls: invalid url")
	ErrDuplicate   = errors.New("urls: duplicate url")
	ErrNotFound    = errors.New("urls: not found")
	ErrFetchFailed = errors.New("urls: fetch failed")
)

// Url is a submitted, canonicalized link.
type Url struct {
	ID          tid.URLID
	URL         string
	StatusCode  int
	Title       string
	Description string
	Image       string
	CreatedBy   tid.UserID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists Urls and enforces the submission/deletion invariants.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Create canonicalizes input, rejects duplicates, fetches the page, and
// extracts title/description/image via the meta-parser collaborator
// before persisting.
func (s *Store) Create(ctx *reqctx.Context, rawURL string, creator tid.UserID) (*Url, error) {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		return nil, ErrInvalidURL
	}

	var existing int
	if err := s.db.QueryRowContext(ctx.Ctx(), `SELECT COUNT(*) FROM urls WHERE url = ?`, canonical).Scan(&existing); err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrDuplicate
	}

	var meta metaparser.Meta
	statusCode := 0
	if client := ctx.HTTPClient(); client != nil {
		res, err := client.Get(ctx.Ctx(), canonical)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
		statusCode = res.StatusCode
		if statusCode < 200 || statusCode >= 400 {
			res.Body.Close()
			return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, statusCode)
		}
		meta, err = metaparser.Parse(res.Body)
		res.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	now := ctx.Now()
	u := &Url{
		ID:          tid.New[tid.URLKind](),
		URL:         canonical,
		StatusCode:  statusCode,
		Title:       meta.Title,
		Description: meta.Description,
		Image:       meta.Image,
		CreatedBy:   creator,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.db.ExecContext(ctx.Ctx(), `
		INSERT INTO urls (id, url, status_code, title, description, image, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID.String(), u.URL, u.StatusCode, u.Title, u.Description, u.Image, u.CreatedBy.String(), now.Unix(), now.Unix())
	if err != nil {
		return nil, err
	}

	if idx := ctx.Search(); idx != nil {
		if err := idx.Upsert(ctx.Ctx(), u.ID, u.Title, u.Description); err != nil {
			return nil, err
		}
	}

	return u, nil
}

// ByID loads a Url by ID.
func (s *Store) ByID(ctx context.Context, id tid.URLID) (*Url, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, status_code, title, description, image, created_by, created_at, updated_at
		FROM urls WHERE id = ?
	`, id.String())

	var u Url
	var rowID, createdBy string
	var createdAt, updatedAt int64
	err := row.Scan(&rowID, &u.URL, &u.StatusCode, &u.Title, &u.Description, &u.Image, &createdBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.ID, err = tid.Parse[tid.URLKind](rowID); err != nil {
		return nil, err
	}
	if u.CreatedBy, err = tid.Parse[tid.UserKind](createdBy); err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &u, nil
}

// Delete removes a Url and its upvotes/comments in one transaction, then
// notifies the search collaborator. The caller must either own the url or
// hold the DeleteAnyURL capability.
func (s *Store) Delete(ctx *reqctx.Context, u *Url) error {
	if callerID, err := ctx.UserID(); err != nil || callerID != u.CreatedBy {
		if _, err := permissions.Require(ctx, users.DeleteAnyURL); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx.Ctx(), nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx.Ctx(), `DELETE FROM url_upvotes WHERE url_id = ?`, u.ID.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx.Ctx(), `DELETE FROM comments WHERE url_id = ?`, u.ID.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx.Ctx(), `DELETE FROM urls WHERE id = ?`, u.ID.String()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if idx := ctx.Search(); idx != nil {
		return idx.Delete(ctx.Ctx(), u.ID)
	}
	return nil
}
