package urls

import (
	"context"
	"time"

	"github.com/urlsfyi/urls/internal/tid"
)

// Upvote records userID's upvote of a url. Upvoting twice is a no-op: the
// composite (url_id, user_id) primary key makes the insert idempotent
// rather than an error, mirroring how a reader expects "upvote" to behave
// on repeat clicks.
func (s *Store) Upvote(ctx context.Context, urlID tid.URLID, userID tid.UserID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO url_upvotes (url_id, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (url_id, user_id) DO NOTHING
	`, urlID.String(), userID.String(), time.Now().UTC().Unix())
	return err
}

// RemoveUpvote withdraws userID's upvote of a url, if any.
func (s *Store) RemoveUpvote(ctx context.Context, urlID tid.URLID, userID tid.UserID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM url_upvotes WHERE url_id = ? AND user_id = ?
	`, urlID.String(), userID.String())
	return err
}

// CountUpvotes reports how many users have upvoted a url.
func (s *Store) CountUpvotes(ctx context.Context, urlID tid.URLID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM url_upvotes WHERE url_id = ?`, urlID.String()).Scan(&n)
	return n, err
}

// HasUpvoted reports whether userID has upvoted a url.
func (s *Store) HasUpvoted(ctx context.Context, urlID tid.URLID, userID tid.UserID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM url_upvotes WHERE url_id = ? AND user_id = ?
	`, urlID.String(), userID.String()).Scan(&n)
	return n > 0, err
}
