// Package permissions is the single centralized call surface for
// capability checks: no predicate is evaluated inline by a handler without
// going through Require.
package permissions

import (
	"github.com/urlsfyi/urls/internal/reqctx"
	"github.com/urlsfyi/urls/internal/users"
)

// Require resolves the current user from ctx, failing
// reqctx.ErrNotAuthenticated if anonymous, then evaluates cap against
// their roles, failing users.ErrNotAuthorized if none satisfy it.
func Require(ctx *reqctx.Context, cap users.Capability) (*users.User, error) {
	u, err := ctx.User()
	if err != nil {
		return nil, err
	}
	ok, err := ctx.Users().CheckCapability(ctx.Ctx(), u.ID, cap)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, users.ErrNotAuthorized
	}
	return u, nil
}
