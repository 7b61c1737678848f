// Package users implements the user and role store: user creation with
// email validation, role attachment, and capability-predicate evaluation.
package users

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/urlsfyi/urls/internal/disposable"
	"github.com/urlsfyi/urls/internal/tid"
)

var (
	ErrInvalidEmail  = errors.New("users: invalid email")
	ErrEmptyName     = errors.New("users: name is required")
	ErrDisposable    = errors.New("users: disposable email address")
	ErrEmailTaken    = errors.New("users: email already registered")
	ErrNotFound      = errors.New("users: not found")
)

// User is a registered account.
type User struct {
	ID        tid.UserID
	CreatedAt time.Time
	UpdatedAt time.Time
	Name      string
	Email     string
}

// Store provides user and role persistence on top of a *sql.DB.
type Store struct {
	db         *sql.DB
	disposable disposable.Checker
}

// NewStore constructs a Store. A nil checker defaults to disposable.Default.
func NewStore(db *sql.DB, checker disposable.Checker) *Store {
	if checker == nil {
		checker = disposable.Default
	}
	return &Store{db: db, disposable: checker}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validate(name, email string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a new user. It rejects empty names, syntactically invalid
// emails, and emails from disposable providers.
func (s *Store) Create(ctx context.Context, name, email string) (*User, error) {
	return s.create(ctx, s.db, name, email)
}

// CreateTx is Create run against an existing transaction, for callers
// that need the registration pairing to share one transaction
// (internal/invites).
func (s *Store) CreateTx(ctx context.Context, tx *sql.Tx, name, email string) (*User, error) {
	return s.create(ctx, tx, name, email)
}

func (s *Store) create(ctx context.Context, ex execer, name, email string) (*User, error) {
	email, err := validate(name, email)
	if err != nil {
		return nil, err
	}
	if s.disposable.IsDisposable(email) {
		return nil, ErrDisposable
	}

	u := &User{
		ID:        tid.New[tid.UserKind](),
		CreatedAt: time.Now().UTC(),
		Name:      strings.TrimSpace(name),
		Email:     email,
	}
	u.UpdatedAt = u.CreatedAt

	_, err = ex.ExecContext(ctx, `
		INSERT INTO users (id, created_at, updated_at, name, email)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID.String(), u.CreatedAt.Unix(), u.UpdatedAt.Unix(), u.Name, u.Email)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// DeleteTx removes a user row inside an existing transaction.
func (s *Store) DeleteTx(ctx context.Context, tx *sql.Tx, id tid.UserID) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	return err
}

// ByID loads a user by ID.
func (s *Store) ByID(ctx context.Context, id tid.UserID) (*User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at, name, email FROM users WHERE id = ?
	`, id.String()))
}

// ByEmail loads a user by email, lowercasing/trimming before lookup.
func (s *Store) ByEmail(ctx context.Context, email string) (*User, error) {
	email = normalizeEmail(email)
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at, name, email FROM users WHERE email = ?
	`, email))
}

func (s *Store) scanOne(row *sql.Row) (*User, error) {
	var u User
	var id string
	var createdAt, updatedAt int64
	err := row.Scan(&id, &createdAt, &updatedAt, &u.Name, &u.Email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	parsed, err := tid.Parse[tid.UserKind](id)
	if err != nil {
		return nil, err
	}
	u.ID = parsed
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &u, nil
}

// UpdateProfile applies non-nil patch fields with the same validation
// Create uses.
func (s *Store) UpdateProfile(ctx context.Context, id tid.UserID, name, email *string) error {
	current, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	newName := current.Name
	if name != nil {
		newName = *name
	}
	newEmail := current.Email
	if email != nil {
		newEmail = *email
	}
	validEmail, err := validate(newName, newEmail)
	if err != nil {
		return err
	}
	if s.disposable.IsDisposable(validEmail) {
		return ErrDisposable
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ?
	`, strings.TrimSpace(newName), validEmail, time.Now().UTC().Unix(), id.String())
	return err
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces UNIQUE constraint violations with this
	// substring in the error text; there is no typed sentinel exported.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
