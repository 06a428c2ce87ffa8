package keyformat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
)

func TestKeyFormat(t *testing.T) {
	require := require.New(t)

	fmt1 := New(0x01, uint64(0))
	require.Equal(9, fmt1.Size())
	require.EqualValues(0x01, fmt1.Prefix())

	enc := fmt1.Encode(uint64(5))
	require.Equal([]byte{0x01, 0, 0, 0, 0, 0, 0, 0, 5}, enc)

	var h uint64
	require.True(fmt1.Decode(enc, &h))
	require.EqualValues(5, h)
	require.False(New(0x02, uint64(0)).Decode(enc, &h), "prefix mismatch")
	require.Equal([]byte{0x01}, fmt1.Encode(), "prefix only")

	// Keys sort by numeric value.
	require.Equal(-1, bytes.Compare(fmt1.Encode(uint64(9)), fmt1.Encode(uint64(10))))
}

func TestKeyFormatHash(t *testing.T) {
	require := require.New(t)

	kf := New(0x00, &hash.Hash{})
	require.Equal(1+hash.Size, kf.Size())

	h := hash.NewFromBytes([]byte("node"))
	enc := kf.Encode(&h)

	var dec hash.Hash
	require.True(kf.Decode(enc, &dec))
	require.Equal(h, dec)
}

func TestKeyFormatMismatch(t *testing.T) {
	require := require.New(t)

	kf := New(0x03, uint64(0), uint64(0))
	require.Equal(17, kf.Size())

	enc := kf.Encode(uint64(7), uint64(8))
	var a, b uint64
	require.True(kf.Decode(enc, &a, &b))
	require.EqualValues(7, a)
	require.EqualValues(8, b)

	a = 42
	require.False(kf.Decode(enc[:9], &a), "truncated key")
	require.False(kf.Decode(append(enc, 0), &a), "overlong key")
	require.False(kf.Decode(nil, &a), "empty key")
	require.EqualValues(42, a, "failed decode must not touch values")

	require.Panics(func() { New(0x04, "string") })
	require.Panics(func() { kf.Encode(uint64(1), uint64(2), uint64(3)) })
}
