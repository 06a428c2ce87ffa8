// Package keyformat builds fixed-layout binary keys for key-value backends.
//
// A key is a one byte prefix followed by fixed-size elements. Integers are
// encoded big endian so that keys sort by numeric value.
package keyformat

import (
	"encoding"
	"encoding/binary"
	"fmt"
)

// Element is a fixed-size key element other than uint64.
type Element interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// KeyFormat is a key layout.
type KeyFormat struct {
	prefix byte
	sizes  []int
	size   int
}

// New constructs a key format from example values of each element. The
// supported elements are uint64 and Element implementations.
func New(prefix byte, layout ...interface{}) *KeyFormat {
	kf := &KeyFormat{
		prefix: prefix,
		sizes:  make([]int, 0, len(layout)),
		size:   1,
	}
	for _, item := range layout {
		var n int
		switch t := item.(type) {
		case uint64:
			n = 8
		case Element:
			data, err := t.MarshalBinary()
			if err != nil {
				panic(fmt.Sprintf("keyformat: failed to size element: %s", err))
			}
			n = len(data)
		default:
			panic(fmt.Sprintf("keyformat: unsupported type: %T", item))
		}
		kf.sizes = append(kf.sizes, n)
		kf.size += n
	}
	return kf
}

// Prefix returns the key prefix.
func (k *KeyFormat) Prefix() byte {
	return k.prefix
}

// Size returns the size of a complete key in bytes.
func (k *KeyFormat) Size() int {
	return k.size
}

// Encode encodes values into a key. Fewer values than the layout has
// produce a key prefix suitable for iteration.
func (k *KeyFormat) Encode(values ...interface{}) []byte {
	if len(values) > len(k.sizes) {
		panic("keyformat: more values than layout elements")
	}

	key := make([]byte, 1, k.size)
	key[0] = k.prefix
	for i, v := range values {
		switch t := v.(type) {
		case uint64:
			key = binary.BigEndian.AppendUint64(key, t)
		case Element:
			data, err := t.MarshalBinary()
			if err != nil {
				panic(fmt.Sprintf("keyformat: failed to marshal: %s", err))
			}
			if len(data) != k.sizes[i] {
				panic(fmt.Sprintf("keyformat: element %d has size %d, expected %d", i, len(data), k.sizes[i]))
			}
			key = append(key, data...)
		default:
			panic(fmt.Sprintf("keyformat: unsupported type: %T", v))
		}
	}
	return key
}

// Decode decodes a complete key into values (*uint64 or Element). It
// returns false, leaving values untouched, if the key does not have this
// format.
func (k *KeyFormat) Decode(key []byte, values ...interface{}) bool {
	if len(key) != k.size || key[0] != k.prefix {
		return false
	}
	if len(values) > len(k.sizes) {
		panic("keyformat: more values than layout elements")
	}

	offset := 1
	for i, v := range values {
		buf := key[offset : offset+k.sizes[i]]
		offset += k.sizes[i]

		switch t := v.(type) {
		case *uint64:
			*t = binary.BigEndian.Uint64(buf)
		case Element:
			if err := t.UnmarshalBinary(buf); err != nil {
				return false
			}
		default:
			panic(fmt.Sprintf("keyformat: unsupported type: %T", v))
		}
	}
	return true
}
