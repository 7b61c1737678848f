package users

import (
	"context"
	"errors"
	"time"

	"github.com/urlsfyi/urls/internal/tid"
)

// Permission is a role a user can hold.
type Permission string

const (
	Administrator Permission = "ADMINISTRATOR"
	Moderator     Permission = "MODERATOR"
)

// Capability is a pure predicate over a Permission.
type Capability func(Permission) bool

// The fixed capability table. Unknown permissions default to false for
// every capability.
var (
	UnlimitedInvites    Capability = func(p Permission) bool { return p == Administrator }
	ModifyUserRoles     Capability = func(p Permission) bool { return p == Administrator }
	AccessAdminBackups  Capability = func(p Permission) bool { return p == Administrator }
	DeleteAnyURL        Capability = func(p Permission) bool { return p == Administrator || p == Moderator }
	DeleteAnyComment    Capability = func(p Permission) bool { return p == Administrator || p == Moderator }
)

// Role is a single granted permission, in the order it was attached.
type Role struct {
	ID         tid.RoleID
	UserID     tid.UserID
	Permission Permission
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ErrNotAuthorized is returned when no held role satisfies a capability.
var ErrNotAuthorized = errors.New("users: not authorized")

// Roles loads a user's roles in insertion order.
func (s *Store) Roles(ctx context.Context, userID tid.UserID) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, permission, created_at, updated_at
		FROM roles WHERE user_id = ? ORDER BY created_at ASC, rowid ASC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		var r Role
		var id, uid string
		var createdAt, updatedAt int64
		if err := rows.Scan(&id, &uid, &r.Permission, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if r.ID, err = tid.Parse[tid.RoleKind](id); err != nil {
			return nil, err
		}
		if r.UserID, err = tid.Parse[tid.UserKind](uid); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		r.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// CheckCapability reports whether any of userID's roles satisfies cap.
func (s *Store) CheckCapability(ctx context.Context, userID tid.UserID, cap Capability) (bool, error) {
	roles, err := s.Roles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if cap(r.Permission) {
			return true, nil
		}
	}
	return false, nil
}

// CountByPermission counts the users currently holding perm - used by
// bootstrap to decide whether an Administrator already exists.
func (s *Store) CountByPermission(ctx context.Context, perm Permission) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT user_id) FROM roles WHERE permission = ?`, perm).Scan(&n)
	return n, err
}

// GrantRole attaches perm to userID. Callers are responsible for enforcing
// modify_user_roles via internal/permissions before calling this, except
// for internal/bootstrap's first-run path.
func (s *Store) GrantRole(ctx context.Context, userID tid.UserID, perm Permission) (*Role, error) {
	now := time.Now().UTC()
	r := &Role{
		ID:         tid.New[tid.RoleKind](),
		UserID:     userID,
		Permission: perm,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (id, user_id, permission, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID.String(), r.UserID.String(), r.Permission, now.Unix(), now.Unix())
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RevokeRole removes perm from userID, if held.
func (s *Store) RevokeRole(ctx context.Context, userID tid.UserID, perm Permission) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM roles WHERE user_id = ? AND permission = ?
	`, userID.String(), perm)
	return err
}
