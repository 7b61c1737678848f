// Package tid implements the typed opaque identifiers used for every
// domain entity: a 21-character random token over a URL-safe alphabet,
// tagged at compile time by kind so identifiers of different entities
// are not interchangeable.
package tid

import (
	"crypto/rand"
	"errors"
	"strings"
)

// alphabet is the nanoid default alphabet: 64 URL-safe symbols.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_-"

// Length is the fixed size of every TID.
const Length = 21

// ErrInvalidID is returned by Parse when the input is not a well-formed TID.
var ErrInvalidID = errors.New("tid: invalid id")

// Kind tags a TID with the entity it identifies. Each entity defines its
// own zero-sized Kind type, so TIDs of different kinds are distinct Go
// types and cannot be assigned to one another.
type Kind interface {
	kind() string
}

// TID is a 21-character random identifier tagged with kind K.
type TID[K Kind] struct {
	value string
}

// New generates a fresh random TID using a CSPRNG.
func New[K Kind]() TID[K] {
	return TID[K]{value: generate()}
}

// Parse validates s as a TID and returns it, or ErrInvalidID if s is not
// exactly Length characters drawn from the TID alphabet.
func Parse[K Kind](s string) (TID[K], error) {
	if !valid(s) {
		return TID[K]{}, ErrInvalidID
	}
	return TID[K]{value: s}, nil
}

// MustParse is Parse but panics on error; useful for compiled-in constants
// and tests.
func MustParse[K Kind](s string) TID[K] {
	t, err := Parse[K](s)
	if err != nil {
		panic(err)
	}
	return t
}

// String renders the TID as its wire format.
func (t TID[K]) String() string { return t.value }

// IsZero reports whether t is the zero value (never a valid generated TID).
func (t TID[K]) IsZero() bool { return t.value == "" }

// Equal reports byte-wise equality.
func (t TID[K]) Equal(other TID[K]) bool { return t.value == other.value }

// MarshalText implements encoding.TextMarshaler, so a TID serializes as a
// bare string in JSON responses (the GraphQL ID scalar equivalent for this
// module's JSON API).
func (t TID[K]) MarshalText() ([]byte, error) {
	return []byte(t.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting malformed
// identifiers at the edge rather than the model.
func (t *TID[K]) UnmarshalText(b []byte) error {
	if !valid(string(b)) {
		return ErrInvalidID
	}
	t.value = string(b)
	return nil
}

func valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(alphabet, rune(s[i])) {
			return false
		}
	}
	return true
}

func generate() string {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		panic("tid: crypto/rand failed: " + err.Error())
	}
	out := make([]byte, Length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}
