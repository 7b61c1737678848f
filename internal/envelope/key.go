package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey derives a fixed-size HMAC key from a single configured secret
// using HKDF with a label specific to this envelope's purpose, so the same
// root secret can safely serve multiple envelope uses (session cookie,
// XSRF-bound values, ...) without key reuse across them.
func DeriveKey(secret []byte, label string) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, nil, []byte(label))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return key, nil
}

// RandomSecret generates a fresh process-wide secret for operators who
// never configured a persistent one. Every restart then invalidates all
// sessions; opting in to persistence means supplying a secret.
func RandomSecret() []byte {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("envelope: crypto/rand failed: " + err.Error())
	}
	return secret
}
