package cbor

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

type queue struct {
	Items [][]byte `json:"items"`
}

func TestOutOfMem1(t *testing.T) {
	require := require.New(t)

	var f []byte
	err := Unmarshal([]byte("\x9b\x00\x00000000"), &f)
	require.Error(err, "Invalid CBOR input should fail")
}

func TestOutOfMem2(t *testing.T) {
	require := require.New(t)

	var f []byte
	err := Unmarshal([]byte("\x9b\x00\x00\x81112233"), &f)
	require.Error(err, "Invalid CBOR input should fail")
}

func TestCanonicalMapOrder(t *testing.T) {
	require := require.New(t)

	a := map[string]uint64{"b": 2, "a": 1, "ccc": 3}
	b := map[string]uint64{"ccc": 3, "a": 1, "b": 2}
	require.Equal(Marshal(a), Marshal(b), "map encoding must not depend on insertion order")
}

func TestIndefiniteLengthRejected(t *testing.T) {
	require := require.New(t)

	// Indefinite-length byte string.
	var f []byte
	err := Unmarshal([]byte{0x5f, 0x41, 0x01, 0xff}, &f)
	require.Error(err, "indefinite-length encodings are not canonical")
}

func TestStrictRoundTrip(t *testing.T) {
	require := require.New(t)

	// 5 encoded with a one byte argument instead of inline.
	nonCanonical := []byte{0x18, 0x05}
	var v uint64

	require.NoError(Unmarshal(nonCanonical, &v), "lenient decoding")
	require.EqualValues(5, v)

	viper.Set(CfgDebugStrictCBOR, true)
	defer viper.Set(CfgDebugStrictCBOR, false)

	require.Error(Unmarshal(nonCanonical, &v), "strict decoding rejects non-canonical input")
	require.NoError(Unmarshal(Marshal(uint64(5)), &v), "strict decoding accepts canonical input")
}

func TestUnmarshalNil(t *testing.T) {
	var dec queue
	require.NoError(t, Unmarshal(nil, &dec), "nil input decodes into nothing")
	require.Nil(t, dec.Items)
}
