// Package disposable provides a narrow check for disposable/throwaway
// email providers: host-set lookup after Gmail dot-stripping
// normalization. The real, frequently-updated blocklist is an external
// data feed; this package ships a small built-in set sufficient for the
// registration path to enforce the rule end to end.
package disposable

import "strings"

// Checker reports whether an email address belongs to a known disposable
// provider.
type Checker interface {
	IsDisposable(email string) bool
}

// blocklist is a small seed set of well-known throwaway-email hosts.
var blocklist = map[string]bool{
	"mailinator.com":     true,
	"guerrillamail.com":  true,
	"10minutemail.com":   true,
	"tempmail.com":       true,
	"throwawaymail.com":  true,
	"yopmail.com":        true,
	"trashmail.com":      true,
	"getnada.com":        true,
}

// Default is a Checker backed by the built-in blocklist.
var Default Checker = builtin{}

type builtin struct{}

func (builtin) IsDisposable(email string) bool {
	host := hostOf(Normalize(email))
	return blocklist[host]
}

// Normalize lowercases the address and, for gmail.com addresses, strips
// dots from the local part (Gmail treats "a.b@gmail.com" and "ab@gmail.com"
// as the same mailbox).
func Normalize(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	local, host, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	if host == "gmail.com" || host == "googlemail.com" {
		local = strings.ReplaceAll(local, ".", "")
	}
	return local + "@" + host
}

func hostOf(email string) string {
	_, host, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	return host
}
