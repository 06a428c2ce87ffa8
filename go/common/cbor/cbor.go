// Package cbor encodes and decodes canonical CBOR.
//
// Every value has exactly one encoding, so encodings can be hashed to
// address content.
package cbor

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// CfgDebugStrictCBOR makes decoding fail on input that is not the
// canonical encoding of the decoded value.
const CfgDebugStrictCBOR = "debug.strict_cbor"

// Flags has the CBOR configuration flags.
var Flags = flag.NewFlagSet("", flag.ContinueOnError)

// RawMessage is an encoded CBOR value whose decoding is deferred.
type RawMessage = cbor.RawMessage

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

// Marshal returns the canonical encoding of src. It panics if src cannot
// be encoded.
func Marshal(src interface{}) []byte {
	b, err := encMode.Marshal(src)
	if err != nil {
		panic("cbor: failed to marshal: " + err.Error())
	}
	return b
}

// Unmarshal decodes data into dst. A nil data leaves dst untouched.
func Unmarshal(data []byte, dst interface{}) error {
	if data == nil {
		return nil
	}
	if err := decMode.Unmarshal(data, dst); err != nil {
		return err
	}
	if viper.GetBool(CfgDebugStrictCBOR) {
		return checkCanonical(data, dst)
	}
	return nil
}

func checkCanonical(data []byte, v interface{}) error {
	if reencoded := Marshal(v); !bytes.Equal(data, reencoded) {
		return fmt.Errorf("cbor: %T is not canonically encoded (got %x, canonical %x)", v, data, reencoded)
	}
	return nil
}

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		TagsMd:      cbor.TagsForbidden,
	}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(err)
	}

	Flags.Bool(CfgDebugStrictCBOR, false, "(DEBUG) reject non-canonical CBOR input")
	_ = Flags.MarkHidden(CfgDebugStrictCBOR)

	_ = viper.BindPFlags(Flags)
}
