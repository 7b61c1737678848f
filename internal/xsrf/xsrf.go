// Package xsrf implements the double-submit XSRF token pattern: a random
// token round-tripped through a cookie, checked against a client-supplied
// header or form field on every state-changing request.
package xsrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

// CookieName is the name of the XSRF cookie.
const CookieName = "xsrf"

// HeaderName is the header API clients must echo the token on.
const HeaderName = "X-XSRF-Token"

// tokenBytes is the amount of entropy in a fresh token (>=16 bytes per spec).
const tokenBytes = 24

// New generates a fresh, URL-safe XSRF token.
func New() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// FromRequest extracts the XSRF token from the request's cookie, if any.
func FromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Set writes the XSRF cookie on the response.
func Set(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Check compares the context token against a client-supplied one in
// constant time.
func Check(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// CheckRequest validates the request's X-XSRF-Token header (API clients)
// or xsrf_token form field (HTML form submissions) against expected.
func CheckRequest(r *http.Request, expected string) bool {
	if got := r.Header.Get(HeaderName); got != "" {
		return Check(expected, got)
	}
	return Check(expected, r.FormValue("xsrf_token"))
}
