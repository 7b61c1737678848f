// Package invites implements the invitation lifecycle: quota-limited
// issuance, single-use claim, and the registration pairing that creates a
// user and claims an invite in one transaction.
package invites

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"time"

	"github.com/urlsfyi/urls/internal/policy"
	"github.com/urlsfyi/urls/internal/tid"
	"github.com/urlsfyi/urls/internal/users"
)

var (
	ErrQuotaExceeded  = errors.New("invites: quota exceeded")
	ErrNotFound       = errors.New("invites: not found")
	ErrAlreadyClaimed = errors.New("invites: already claimed")
)

// inviteAlphabet is a URL-safe alphanumeric set used for invite tokens.
const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Invite is a single-use registration token.
type Invite struct {
	ID        tid.InviteID
	Token     string
	CreatedBy tid.UserID
	ClaimedBy *tid.UserID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists invites on top of a shared *sql.DB and the user store.
type Store struct {
	db    *sql.DB
	users *users.Store
}

func NewStore(db *sql.DB, userStore *users.Store) *Store {
	return &Store{db: db, users: userStore}
}

func generateToken() (string, error) {
	buf := make([]byte, policy.InviteTokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, policy.InviteTokenLen)
	for i, b := range buf {
		out[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(out), nil
}

// Issue creates a new invite for issuer, unless they are over quota and
// lack the UnlimitedInvites capability.
func (s *Store) Issue(ctx context.Context, issuer tid.UserID) (*Invite, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invites WHERE created_by = ?`, issuer.String()).Scan(&count)
	if err != nil {
		return nil, err
	}
	if count >= policy.MaxInvitesPerUser {
		ok, err := s.users.CheckCapability(ctx, issuer, users.UnlimitedInvites)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrQuotaExceeded
		}
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inv := &Invite{
		ID:        tid.New[tid.InviteKind](),
		Token:     token,
		CreatedBy: issuer,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invites (id, token, created_by, claimed_by, created_at, updated_at)
		VALUES (?, ?, ?, NULL, ?, ?)
	`, inv.ID.String(), inv.Token, inv.CreatedBy.String(), now.Unix(), now.Unix())
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ByToken is an exact-match lookup.
func (s *Store) ByToken(ctx context.Context, token string) (*Invite, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, token, created_by, claimed_by, created_at, updated_at
		FROM invites WHERE token = ?
	`, token)
	return scanInvite(row)
}

func scanInvite(row *sql.Row) (*Invite, error) {
	var inv Invite
	var id, createdBy string
	var claimedBy sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&id, &inv.Token, &createdBy, &claimedBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var perr error
	if inv.ID, perr = tid.Parse[tid.InviteKind](id); perr != nil {
		return nil, perr
	}
	if inv.CreatedBy, perr = tid.Parse[tid.UserKind](createdBy); perr != nil {
		return nil, perr
	}
	if claimedBy.Valid {
		claimant, perr := tid.Parse[tid.UserKind](claimedBy.String)
		if perr != nil {
			return nil, perr
		}
		inv.ClaimedBy = &claimant
	}
	inv.CreatedAt = time.Unix(createdAt, 0).UTC()
	inv.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &inv, nil
}

// Claim binds invite to claimer, failing ErrAlreadyClaimed if it already
// has a claimant.
func (s *Store) Claim(ctx context.Context, inviteID tid.InviteID, claimer tid.UserID) error {
	return s.claimTx(ctx, s.db, inviteID, claimer)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) claimTx(ctx context.Context, ex execer, inviteID tid.InviteID, claimer tid.UserID) error {
	now := time.Now().UTC()
	res, err := ex.ExecContext(ctx, `
		UPDATE invites SET claimed_by = ?, updated_at = ?
		WHERE id = ? AND claimed_by IS NULL
	`, claimer.String(), now.Unix(), inviteID.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// RegisterUser performs the registration pairing atomically: validate
// input, find the invite by token, create the user, claim the invite -
// all inside a single transaction, so a crash between steps cannot
// strand a user row that never claimed an invite.
func (s *Store) RegisterUser(ctx context.Context, name, email, token string) (*users.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, token, created_by, claimed_by, created_at, updated_at
		FROM invites WHERE token = ?
	`, token)
	inv, err := scanInvite(row)
	if err != nil {
		return nil, err
	}
	if inv.ClaimedBy != nil {
		return nil, ErrAlreadyClaimed
	}

	u, err := s.users.CreateTx(ctx, tx, name, email)
	if err != nil {
		return nil, err
	}

	if err := s.claimTx(ctx, tx, inv.ID, u.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}
