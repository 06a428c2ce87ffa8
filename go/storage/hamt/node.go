package hamt

import (
	"bytes"
	"fmt"
	"math/bits"
	"sort"

	"github.com/BadBoiLabs/cetf/go/common/cbor"
	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
)

const (
	// bitWidth is the number of hashed key bits consumed per level.
	bitWidth = 5
	// bucketSize is the maximum number of entries stored inline in a slot
	// before the slot is split into a child node.
	bucketSize = 3
	// maxDepth is the number of levels before the hashed key runs out.
	maxDepth = hash.Size * 8 / bitWidth
)

// KV is a key/value pair stored in a bucket.
type KV struct {
	_ struct{} `cbor:",toarray"` // nolint

	Key   []byte
	Value []byte
}

// Pointer is a populated slot of a node. Exactly one of Link or KVs is set
// in a serialized pointer.
type Pointer struct {
	// Link is the digest of a child node.
	Link *hash.Hash `cbor:"l,omitempty"`
	// KVs is the bucket of entries, sorted by key.
	KVs []*KV `cbor:"v,omitempty"`

	// child is the loaded (possibly dirty) child node.
	child *node
}

func (p *Pointer) isShard() bool {
	return p.child != nil || p.Link != nil
}

type node struct {
	Bitfield uint32     `cbor:"b"`
	Pointers []*Pointer `cbor:"p,omitempty"`

	dirty bool
}

func (n *node) has(idx int) bool {
	return n.Bitfield&(1<<uint(idx)) != 0
}

// pointerIndex returns the position in Pointers of the given slot.
func (n *node) pointerIndex(idx int) int {
	mask := uint32(1)<<uint(idx) - 1
	return bits.OnesCount32(n.Bitfield & mask)
}

func (n *node) setPointer(idx int, p *Pointer) {
	pi := n.pointerIndex(idx)
	if n.has(idx) {
		n.Pointers[pi] = p
		return
	}

	n.Bitfield |= 1 << uint(idx)
	n.Pointers = append(n.Pointers, nil)
	copy(n.Pointers[pi+1:], n.Pointers[pi:])
	n.Pointers[pi] = p
}

func (n *node) clearPointer(idx int) {
	pi := n.pointerIndex(idx)
	n.Bitfield &^= 1 << uint(idx)
	n.Pointers = append(n.Pointers[:pi], n.Pointers[pi+1:]...)
	if len(n.Pointers) == 0 {
		n.Pointers = nil
	}
}

// marshal encodes a node. All loaded children must already be linked.
func (n *node) marshal() ([]byte, error) {
	for i, p := range n.Pointers {
		if p.child != nil && p.Link == nil {
			return nil, fmt.Errorf("hamt: pointer %d has an unflushed child", i)
		}
	}
	return cbor.Marshal(n), nil
}

func (n *node) unmarshal(data []byte) error {
	if err := cbor.Unmarshal(data, n); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedNode, err)
	}
	return n.validate()
}

func (n *node) validate() error {
	if bits.OnesCount32(n.Bitfield) != len(n.Pointers) {
		return fmt.Errorf("%w: bitfield does not match pointer count", ErrMalformedNode)
	}
	for i, p := range n.Pointers {
		switch {
		case p == nil:
			return fmt.Errorf("%w: nil pointer %d", ErrMalformedNode, i)
		case p.Link != nil && len(p.KVs) > 0:
			return fmt.Errorf("%w: pointer %d is both link and bucket", ErrMalformedNode, i)
		case p.Link == nil && len(p.KVs) == 0:
			return fmt.Errorf("%w: empty pointer %d", ErrMalformedNode, i)
		case len(p.KVs) > bucketSize:
			return fmt.Errorf("%w: bucket %d overflows", ErrMalformedNode, i)
		}
		for j := 1; j < len(p.KVs); j++ {
			if bytes.Compare(p.KVs[j-1].Key, p.KVs[j].Key) >= 0 {
				return fmt.Errorf("%w: bucket %d not sorted", ErrMalformedNode, i)
			}
		}
	}
	return nil
}

func hashKey(key []byte) []byte {
	h := hash.NewFromBytes(key)
	return h[:]
}

// indexAt returns the slot index of the hashed key at the given depth,
// consuming bits most significant first.
func indexAt(hk []byte, depth int) int {
	var idx int
	for i := 0; i < bitWidth; i++ {
		bit := depth*bitWidth + i
		idx <<= 1
		if hk[bit/8]&(0x80>>uint(bit%8)) != 0 {
			idx |= 1
		}
	}
	return idx
}

func sortKVs(kvs []*KV) {
	sort.Slice(kvs, func(i, j int) bool {
		return bytes.Compare(kvs[i].Key, kvs[j].Key) < 0
	})
}
