package api

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// Tag is an opaque tag blob.
type Tag []byte

// String returns a hex representation of the tag.
func (t Tag) String() string {
	return hex.EncodeToString(t)
}

// Height is the index a tag queue is stored under, derived from a caller
// sequence number.
type Height uint64

// String returns a string representation of the height.
func (h Height) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// TagQueue is the ordered list of tags enqueued at a height.
type TagQueue []Tag

// AddressSize is the size of an address in bytes.
const AddressSize = 20

// Address is a caller identity.
type Address [AddressSize]byte

// SystemAddress is the distinguished privileged system identity.
var SystemAddress = Address{}

// MarshalText encodes an address into text form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(a[:])), nil
}

// UnmarshalText decodes a text marshaled address.
func (a *Address) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("%w: malformed address: %s", ErrInvalidArgument, err)
	}
	if len(b) != AddressSize {
		return fmt.Errorf("%w: malformed address: expected %d bytes, got %d", ErrInvalidArgument, AddressSize, len(b))
	}
	copy(a[:], b)

	return nil
}

// String returns a string representation of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Caller is the resolved identity and sequence number of a call.
type Caller struct {
	Address Address
	Nonce   uint64
}

// Height returns the height the caller's sequence number maps to.
func (c Caller) Height() Height {
	return Height(c.Nonce)
}

// Authorizer is the capability check gating privileged calls.
type Authorizer interface {
	// IsPrivileged returns true iff the address may construct the store
	// and clear queues.
	IsPrivileged(addr Address) bool
}

type systemAuthorizer struct{}

func (systemAuthorizer) IsPrivileged(addr Address) bool {
	return addr == SystemAddress
}

// SystemAuthorizer is an Authorizer that only privileges SystemAddress.
var SystemAuthorizer Authorizer = systemAuthorizer{}

// AuthorizerFunc is an adapter to allow the use of ordinary functions as
// an Authorizer.
type AuthorizerFunc func(addr Address) bool

// IsPrivileged calls f(addr).
func (f AuthorizerFunc) IsPrivileged(addr Address) bool {
	return f(addr)
}
