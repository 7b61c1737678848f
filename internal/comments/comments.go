// Package comments implements comment creation and ownership-or-capability
// checked deletion on urls, sharing the same authorization rule as
// internal/urls' url deletion.
package comments

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/urlsfyi/urls/internal/permissions"
	"github.com/urlsfyi/urls/internal/reqctx"
	"github.com/urlsfyi/urls/internal/tid"
	"github.com/urlsfyi/urls/internal/users"
)

var ErrNotFound = errors.New("comments: not found")

// Comment is a markdown reply attached to a Url, optionally threaded under
// another Comment.
type Comment struct {
	ID        tid.CommentID
	URLID     tid.URLID
	CreatedBy tid.UserID
	RepliesTo *tid.CommentID
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Create(ctx context.Context, urlID tid.URLID, author tid.UserID, repliesTo *tid.CommentID, text string) (*Comment, error) {
	now := time.Now().UTC()
	c := &Comment{
		ID:        tid.New[tid.CommentKind](),
		URLID:     urlID,
		CreatedBy: author,
		RepliesTo: repliesTo,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var repliesToStr any
	if repliesTo != nil {
		repliesToStr = repliesTo.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, url_id, created_by, replies_to, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID.String(), c.URLID.String(), c.CreatedBy.String(), repliesToStr, c.Text, now.Unix(), now.Unix())
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ByID(ctx context.Context, id tid.CommentID) (*Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url_id, created_by, replies_to, text, created_at, updated_at
		FROM comments WHERE id = ?
	`, id.String())

	var c Comment
	var rowID, urlID, createdBy string
	var repliesTo sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(&rowID, &urlID, &createdBy, &repliesTo, &c.Text, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.ID, err = tid.Parse[tid.CommentKind](rowID); err != nil {
		return nil, err
	}
	if c.URLID, err = tid.Parse[tid.URLKind](urlID); err != nil {
		return nil, err
	}
	if c.CreatedBy, err = tid.Parse[tid.UserKind](createdBy); err != nil {
		return nil, err
	}
	if repliesTo.Valid {
		parsed, err := tid.Parse[tid.CommentKind](repliesTo.String)
		if err != nil {
			return nil, err
		}
		c.RepliesTo = &parsed
	}
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &c, nil
}

// Delete removes a comment. The caller must own it or hold DeleteAnyComment.
func (s *Store) Delete(ctx *reqctx.Context, c *Comment) error {
	if callerID, err := ctx.UserID(); err != nil || callerID != c.CreatedBy {
		if _, err := permissions.Require(ctx, users.DeleteAnyComment); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx.Ctx(), `DELETE FROM comments WHERE id = ?`, c.ID.String())
	return err
}

// ListRecent returns the most recently created comments across every url,
// newest first, for moderator review (cmd/modcli).
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url_id, created_by, replies_to, text, created_at, updated_at
		FROM comments ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		var rowID, uID, createdBy string
		var repliesTo sql.NullString
		var createdAt, updatedAt int64
		if err := rows.Scan(&rowID, &uID, &createdBy, &repliesTo, &c.Text, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if c.ID, err = tid.Parse[tid.CommentKind](rowID); err != nil {
			return nil, err
		}
		if c.URLID, err = tid.Parse[tid.URLKind](uID); err != nil {
			return nil, err
		}
		if c.CreatedBy, err = tid.Parse[tid.UserKind](createdBy); err != nil {
			return nil, err
		}
		if repliesTo.Valid {
			parsed, err := tid.Parse[tid.CommentKind](repliesTo.String)
			if err != nil {
				return nil, err
			}
			c.RepliesTo = &parsed
		}
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListForURL returns comments on a url, oldest first.
func (s *Store) ListForURL(ctx context.Context, urlID tid.URLID) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url_id, created_by, replies_to, text, created_at, updated_at
		FROM comments WHERE url_id = ? ORDER BY created_at ASC
	`, urlID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		var rowID, uID, createdBy string
		var repliesTo sql.NullString
		var createdAt, updatedAt int64
		if err := rows.Scan(&rowID, &uID, &createdBy, &repliesTo, &c.Text, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if c.ID, err = tid.Parse[tid.CommentKind](rowID); err != nil {
			return nil, err
		}
		if c.URLID, err = tid.Parse[tid.URLKind](uID); err != nil {
			return nil, err
		}
		if c.CreatedBy, err = tid.Parse[tid.UserKind](createdBy); err != nil {
			return nil, err
		}
		if repliesTo.Valid {
			parsed, err := tid.Parse[tid.CommentKind](repliesTo.String)
			if err != nil {
				return nil, err
			}
			c.RepliesTo = &parsed
		}
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
