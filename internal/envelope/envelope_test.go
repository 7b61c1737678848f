package envelope

import (
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	key := RandomSecret()
	now := time.Now()
	expires := now.Add(time.Hour)

	tok, err := Encode("user-123", expires, key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(tok, key, now)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "user-123" {
		t.Fatalf("expected user-123, got %q", got)
	}
}

func TestDecodeWrongKeyFailsSignature(t *testing.T) {
	key1 := RandomSecret()
	key2 := RandomSecret()
	now := time.Now()

	tok, err := Encode("user-123", now.Add(time.Hour), key1)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := Decode(tok, key2, now); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestDecodeExpired(t *testing.T) {
	key := RandomSecret()
	now := time.Now()

	tok, err := Encode("user-123", now.Add(-time.Minute), key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := Decode(tok, key, now); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestDecodeTruncatedIsMalformed(t *testing.T) {
	key := RandomSecret()
	now := time.Now()

	tok, err := Encode("user-123", now.Add(time.Hour), key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	truncated := tok[:len(tok)-10]
	if _, err := Decode(truncated, key, now); err == nil {
		t.Fatalf("expected an error on truncated token")
	}
}

func TestDecodeSingleByteMutationFails(t *testing.T) {
	key := RandomSecret()
	now := time.Now()

	tok, err := Encode("user-123", now.Add(time.Hour), key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	mutated := []byte(tok)
	// Flip a character in the middle; base64 alphabet guarantees this
	// still decodes as valid base64 in the vast majority of positions.
	mid := len(mutated) / 2
	if mutated[mid] == 'A' {
		mutated[mid] = 'B'
	} else {
		mutated[mid] = 'A'
	}

	if _, err := Decode(string(mutated), key, now); err == nil {
		t.Fatalf("expected mutation to be detected")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	secret := []byte("a fixed root secret of arbitrary length")
	k1, err := DeriveKey(secret, "session")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	k2, err := DeriveKey(secret, "session")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if string(k1) != string(k2) {
		t.Fatalf("DeriveKey should be deterministic for the same secret and label")
	}

	k3, err := DeriveKey(secret, "xsrf")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if string(k3) == string(k1) {
		t.Fatalf("different labels should derive different keys")
	}
}
