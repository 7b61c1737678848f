// Package login implements the central trust-plane state machine: a
// Login row moves PENDING -> ACTIVE (claim) -> ACTIVE' (sliding use) ->
// REVOKED, or expires implicitly along either path.
package login

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/urlsfyi/urls/internal/mailer"
	"github.com/urlsfyi/urls/internal/policy"
	"github.com/urlsfyi/urls/internal/tid"
	"github.com/urlsfyi/urls/internal/users"
)

var (
	ErrRateLimited     = errors.New("login: rate limited")
	ErrNotFound        = errors.New("login: not found")
	ErrAlreadyClaimed  = errors.New("login: already claimed")
	ErrExpired         = errors.New("login: expired")
	ErrInvalidToken    = errors.New("login: invalid token")
	ErrSessionNotFound = errors.New("login: session not found")
	ErrSessionExpired  = errors.New("login: session expired")
	ErrSessionRevoked  = errors.New("login: session revoked")
	ErrSessionPending  = errors.New("login: session pending")
	ErrForbidden       = errors.New("login: forbidden")
)

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Login is the persistent side of a single email-triggered login attempt.
type Login struct {
	ID             tid.LoginID
	UserID         tid.UserID
	EmailToken     string
	ClaimUntil     time.Time
	Claimed        bool
	SessionToken   string // not populated by this package: Claim returns the token and only its hash is stored
	LastUsed       time.Time
	LastUserAgent  string
	LastRemoteIP   string
	Revoked        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store persists Login rows. Session tokens are stored hashed; the
// plaintext bearer secret exists only in the cookie envelope.
type Store struct {
	db    *sql.DB
	users *users.Store
}

func NewStore(db *sql.DB, userStore *users.Store) *Store {
	return &Store{db: db, users: userStore}
}

func randomAlnum(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alnum[int(b)%len(alnum)]
	}
	return string(out), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RequestLogin issues a new PENDING login for user, subject to the
// per-user rolling-hour rate limit, and asks m to deliver the email token.
func (s *Store) RequestLogin(ctx context.Context, now time.Time, user *users.User, m mailer.Mailer) (*Login, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM logins WHERE user_id = ? AND created_at > ?
	`, user.ID.String(), now.Add(-time.Hour).Unix()).Scan(&count)
	if err != nil {
		return nil, err
	}
	if count >= policy.LoginLimitPerHour {
		return nil, ErrRateLimited
	}

	emailToken, err := randomAlnum(policy.EmailTokenLen)
	if err != nil {
		return nil, err
	}

	l := &Login{
		ID:         tid.New[tid.LoginKind](),
		UserID:     user.ID,
		EmailToken: emailToken,
		ClaimUntil: now.Add(policy.LoginClaimWindow),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO logins (
			id, user_id, email_token, claim_until, claimed, session_token_hash,
			last_used, last_user_agent, last_remote_ip, revoked, created_at, updated_at
		) VALUES (?, ?, ?, ?, 0, NULL, ?, NULL, NULL, 0, ?, ?)
	`, l.ID.String(), l.UserID.String(), l.EmailToken, l.ClaimUntil.Unix(), now.Unix(), now.Unix(), now.Unix())
	if err != nil {
		return nil, err
	}

	if m != nil {
		if err := m.Send(ctx, user.Email, "Your urls.fyi login code", mailer.LoginEmailBody(user.Email, emailToken)); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Claim completes a PENDING login for the user with the given email,
// locating it by (user, email_token): up to LoginLimitPerHour unclaimed
// rows can be pending at once, and the token the user submits may belong
// to any of them, not just the newest.
func (s *Store) Claim(ctx context.Context, now time.Time, email, submittedToken string) (string, error) {
	user, err := s.users.ByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, claim_until, claimed
		FROM logins
		WHERE user_id = ? AND email_token = ?
		ORDER BY claimed ASC, created_at DESC
		LIMIT 1
	`, user.ID.String(), submittedToken)

	var id string
	var claimUntil int64
	var claimed bool
	if err := row.Scan(&id, &claimUntil, &claimed); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrInvalidToken
		}
		return "", err
	}

	if claimed {
		return "", ErrAlreadyClaimed
	}
	if claimUntil < now.Unix() {
		return "", ErrExpired
	}

	sessionToken, err := randomAlnum(policy.SessionTokenLen)
	if err != nil {
		return "", err
	}
	tokenHash := hashToken(sessionToken)

	res, err := s.db.ExecContext(ctx, `
		UPDATE logins
		SET claimed = 1, session_token_hash = ?, last_used = ?, updated_at = ?
		WHERE id = ? AND claimed = 0
	`, tokenHash, now.Unix(), now.Unix(), id)
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		// lost the race to a concurrent claim on the same row
		return "", ErrAlreadyClaimed
	}

	return sessionToken, nil
}

// UseSession validates sessionToken and, if the login is valid (claimed,
// not revoked, sliding window not elapsed), slides last_used and records
// the caller's user-agent/remote-IP for audit, returning the owning user.
func (s *Store) UseSession(ctx context.Context, now time.Time, sessionToken, userAgent, remoteIP string) (tid.UserID, error) {
	tokenHash := hashToken(sessionToken)

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, claimed, revoked, last_used
		FROM logins WHERE session_token_hash = ?
	`, tokenHash)

	var id, userID string
	var claimed, revoked bool
	var lastUsed int64
	if err := row.Scan(&id, &userID, &claimed, &revoked, &lastUsed); err != nil {
		if err == sql.ErrNoRows {
			return tid.UserID{}, ErrSessionNotFound
		}
		return tid.UserID{}, err
	}

	if revoked {
		return tid.UserID{}, ErrSessionRevoked
	}
	if !claimed {
		return tid.UserID{}, ErrSessionPending
	}
	// last_used is stored in whole seconds, so compare at that granularity:
	// a session used exactly SessionSlidingTTL after last_used is still valid.
	if now.Unix()-lastUsed > int64(policy.SessionSlidingTTL/time.Second) {
		return tid.UserID{}, ErrSessionExpired
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE logins SET last_used = ?, last_user_agent = ?, last_remote_ip = ?, updated_at = ?
		WHERE id = ?
	`, now.Unix(), userAgent, remoteIP, now.Unix(), id)
	if err != nil {
		return tid.UserID{}, err
	}

	return tid.Parse[tid.UserKind](userID)
}

// Revoke marks a login permanently invalid. Only the login's own user may
// revoke it.
func (s *Store) Revoke(ctx context.Context, loginID tid.LoginID, caller tid.UserID) error {
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM logins WHERE id = ?`, loginID.String()).Scan(&userID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if userID != caller.String() {
		return ErrForbidden
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE logins SET revoked = 1, updated_at = ? WHERE id = ?
	`, time.Now().UTC().Unix(), loginID.String())
	return err
}

// ListForUser returns every Login row belonging to userID, most recent
// first, for the viewer's "logins" listing.
func (s *Store) ListForUser(ctx context.Context, userID tid.UserID) ([]Login, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, claimed, revoked, last_used, created_at, updated_at
		FROM logins WHERE user_id = ? ORDER BY created_at DESC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Login
	for rows.Next() {
		var l Login
		var id, uid string
		var lastUsed, createdAt, updatedAt int64
		if err := rows.Scan(&id, &uid, &l.Claimed, &l.Revoked, &lastUsed, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if l.ID, err = tid.Parse[tid.LoginKind](id); err != nil {
			return nil, err
		}
		if l.UserID, err = tid.Parse[tid.UserKind](uid); err != nil {
			return nil, err
		}
		l.LastUsed = time.Unix(lastUsed, 0).UTC()
		l.CreatedAt = time.Unix(createdAt, 0).UTC()
		l.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}
