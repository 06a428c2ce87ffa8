// Package hash implements the content digest used to address trie nodes.
package hash

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding"
	"encoding/hex"
	"errors"

	"github.com/BadBoiLabs/cetf/go/common/cbor"
)

// Size is the size of a digest in bytes.
const Size = sha512.Size256

var (
	// ErrMalformed is the error returned when a hash is malformed.
	ErrMalformed = errors.New("hash: malformed hash")

	_ encoding.BinaryMarshaler   = (*Hash)(nil)
	_ encoding.BinaryUnmarshaler = (*Hash)(nil)
	_ encoding.TextMarshaler     = Hash{}
	_ encoding.TextUnmarshaler   = (*Hash)(nil)
)

// Hash is a SHA-512/256 digest.
type Hash [Size]byte

// MarshalBinary returns a copy of the raw digest.
func (h *Hash) MarshalBinary() ([]byte, error) {
	return append([]byte{}, h[:]...), nil
}

// UnmarshalBinary sets the digest from its raw form.
func (h *Hash) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return ErrMalformed
	}
	copy(h[:], data)

	return nil
}

// MarshalText encodes the digest as lowercase hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex encoded digest.
func (h *Hash) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != Size {
		return ErrMalformed
	}
	_, err := hex.Decode(h[:], text)
	return err
}

// Equal compares vs another hash for equality.
func (h *Hash) Equal(cmp *Hash) bool {
	if cmp == nil {
		return false
	}
	return subtle.ConstantTimeCompare(h[:], cmp[:]) == 1
}

// String returns the hex representation of the digest.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// NewFrom hashes the canonical CBOR encoding of v.
func NewFrom(v interface{}) Hash {
	return NewFromBytes(cbor.Marshal(v))
}

// NewFromBytes hashes the concatenation of the given byte strings.
func NewFromBytes(data ...[]byte) (h Hash) {
	hasher := sha512.New512_256()
	for _, d := range data {
		_, _ = hasher.Write(d)
	}
	hasher.Sum(h[:0])
	return
}

// Parse decodes a hex encoded digest.
func Parse(s string) (h Hash, err error) {
	err = h.UnmarshalText([]byte(s))
	return
}
