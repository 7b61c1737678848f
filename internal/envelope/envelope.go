// Package envelope implements the signed, detached session container:
// a transport-agnostic (payload, expiry) pair authenticated with
// HMAC-SHA256 and encoded for cookie transport. A well-formed, correctly
// signed envelope is still not enough to trust a session on its own -
// callers must additionally confirm the carried value against persistent
// state (see internal/login).
package envelope

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/gob"
	"errors"
	"time"
)

var (
	ErrMalformed    = errors.New("envelope: malformed")
	ErrBadSignature = errors.New("envelope: bad signature")
	ErrExpired      = errors.New("envelope: expired")
)

// payload is the serialised part of the envelope, before signing.
type payload struct {
	Value   string
	Expires int64 // unix seconds
}

// Encode signs value with an expiry and returns a base64url string safe to
// carry in a cookie. key is the process-wide HMAC key.
func Encode(value string, expires time.Time, key []byte) (string, error) {
	p := payload{Value: value, Expires: expires.Unix()}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return "", err
	}
	payloadBytes := buf.Bytes()

	mac := sign(payloadBytes, key)

	out := make([]byte, 0, len(payloadBytes)+len(mac))
	out = append(out, payloadBytes...)
	out = append(out, mac...)

	return base64.URLEncoding.EncodeToString(out), nil
}

// Decode verifies and decodes a token produced by Encode. It fails with
// ErrMalformed on any structural decode error, ErrBadSignature if the MAC
// does not verify (constant time), or ErrExpired if now is after the
// envelope's expiry.
func Decode(token string, key []byte, now time.Time) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) <= sha256.Size {
		return "", ErrMalformed
	}

	macLen := sha256.Size
	payloadBytes := raw[:len(raw)-macLen]
	gotMAC := raw[len(raw)-macLen:]

	wantMAC := sign(payloadBytes, key)
	if subtle.ConstantTimeCompare(gotMAC, wantMAC) != 1 {
		return "", ErrBadSignature
	}

	var p payload
	if err := gob.NewDecoder(bytes.NewReader(payloadBytes)).Decode(&p); err != nil {
		return "", ErrMalformed
	}

	if now.After(time.Unix(p.Expires, 0)) {
		return "", ErrExpired
	}

	return p.Value, nil
}

func sign(payloadBytes, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(payloadBytes)
	return mac.Sum(nil)
}
