// Package policy holds the tunable rate and quota constants shared across
// the trust plane.
package policy

import "time"

const (
	// MaxInvitesPerUser is the outstanding+claimed invite quota for a user
	// without the unlimited_invites capability.
	MaxInvitesPerUser = 3

	// LoginLimitPerHour bounds request_login calls per user per rolling hour.
	LoginLimitPerHour = 3

	// LoginClaimWindow is how long a PENDING login's email token remains claimable.
	LoginClaimWindow = 60 * time.Minute

	// SessionSlidingTTL is how long an ACTIVE login stays valid after its
	// last use before it is considered expired.
	SessionSlidingTTL = 90 * 24 * time.Hour

	// EmailTokenLen is the length of the one-shot PENDING claim secret.
	EmailTokenLen = 12

	// SessionTokenLen is the length of the long-lived bearer session secret.
	SessionTokenLen = 64

	// InviteTokenLen is the length of an invite's single-use token.
	InviteTokenLen = 32
)
