// Package hamt implements a content-addressed hash array mapped trie.
//
// Every node is stored in a node database under the digest of its
// serialization, so the whole mapping commits to the digest of the root
// node. Buckets are kept sorted and underfull children are collapsed on
// removal, which makes the root a function of the mapping alone.
package hamt

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/storage/api"
)

var (
	// ErrMalformedNode is the error when a malformed node is encountered.
	ErrMalformedNode = errors.New("hamt: malformed node")
	// ErrMaxDepth is the error when the hashed key is exhausted.
	ErrMaxDepth = errors.New("hamt: maximum depth exceeded")
)

// Tree is a hash array mapped trie over a node database.
//
// A Tree is not safe for concurrent use.
type Tree struct {
	db   api.NodeDB
	root *node
}

// Get looks up the value stored under key. The boolean is false if the
// key is not present.
func (t *Tree) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	hk := hashKey(key)
	n := t.root
	for depth := 0; depth < maxDepth; depth++ {
		idx := indexAt(hk, depth)
		if !n.has(idx) {
			return nil, false, nil
		}
		p := n.Pointers[n.pointerIndex(idx)]
		if !p.isShard() {
			for _, kv := range p.KVs {
				if bytes.Equal(kv.Key, key) {
					return kv.Value, true, nil
				}
			}
			return nil, false, nil
		}

		child, err := t.loadChild(ctx, p)
		if err != nil {
			return nil, false, err
		}
		n = child
	}
	return nil, false, ErrMaxDepth
}

// Insert inserts or replaces the value stored under key.
func (t *Tree) Insert(ctx context.Context, key, value []byte) error {
	kv := &KV{
		Key:   append([]byte{}, key...),
		Value: append([]byte{}, value...),
	}
	return t.doInsert(ctx, t.root, hashKey(key), 0, kv)
}

func (t *Tree) doInsert(ctx context.Context, n *node, hk []byte, depth int, kv *KV) error {
	if depth >= maxDepth {
		return ErrMaxDepth
	}

	idx := indexAt(hk, depth)
	if !n.has(idx) {
		n.setPointer(idx, &Pointer{KVs: []*KV{kv}})
		n.dirty = true
		return nil
	}

	pi := n.pointerIndex(idx)
	p := n.Pointers[pi]
	if p.isShard() {
		child, err := t.loadChild(ctx, p)
		if err != nil {
			return err
		}
		if err = t.doInsert(ctx, child, hk, depth+1, kv); err != nil {
			return err
		}
		n.dirty = true
		return nil
	}

	for i, existing := range p.KVs {
		if bytes.Equal(existing.Key, kv.Key) {
			p.KVs[i] = kv
			n.dirty = true
			return nil
		}
	}

	if len(p.KVs) < bucketSize {
		p.KVs = append(p.KVs, kv)
		sortKVs(p.KVs)
		n.dirty = true
		return nil
	}

	// Bucket is full, push its entries one level down.
	child := &node{dirty: true}
	for _, existing := range append(p.KVs, kv) {
		if err := t.doInsert(ctx, child, hashKey(existing.Key), depth+1, existing); err != nil {
			return err
		}
	}
	n.Pointers[pi] = &Pointer{child: child}
	n.dirty = true

	return nil
}

// Remove removes the value stored under key. The boolean reports whether
// the key was present; removing an absent key leaves the tree untouched.
func (t *Tree) Remove(ctx context.Context, key []byte) (bool, error) {
	return t.doRemove(ctx, t.root, hashKey(key), 0, key)
}

func (t *Tree) doRemove(ctx context.Context, n *node, hk []byte, depth int, key []byte) (bool, error) {
	if depth >= maxDepth {
		return false, ErrMaxDepth
	}

	idx := indexAt(hk, depth)
	if !n.has(idx) {
		return false, nil
	}

	pi := n.pointerIndex(idx)
	p := n.Pointers[pi]
	if p.isShard() {
		child, err := t.loadChild(ctx, p)
		if err != nil {
			return false, err
		}
		found, err := t.doRemove(ctx, child, hk, depth+1, key)
		if err != nil || !found {
			return found, err
		}
		n.dirty = true
		return true, collapseChild(n, pi, child)
	}

	for i, kv := range p.KVs {
		if !bytes.Equal(kv.Key, key) {
			continue
		}
		if len(p.KVs) == 1 {
			n.clearPointer(idx)
		} else {
			p.KVs = append(p.KVs[:i], p.KVs[i+1:]...)
		}
		n.dirty = true
		return true, nil
	}
	return false, nil
}

// collapseChild folds the child at pointer position pi back into n if all
// of its entries fit in a single bucket.
func collapseChild(n *node, pi int, child *node) error {
	switch len(child.Pointers) {
	case 0:
		return fmt.Errorf("%w: empty child node", ErrMalformedNode)
	case 1:
		// A lone shard stays, it still holds more than a bucket.
		if p := child.Pointers[0]; !p.isShard() {
			n.Pointers[pi] = &Pointer{KVs: p.KVs}
		}
		return nil
	}

	if len(child.Pointers) > bucketSize {
		return nil
	}

	var kvs []*KV
	for _, p := range child.Pointers {
		if p.isShard() {
			return nil
		}
		kvs = append(kvs, p.KVs...)
		if len(kvs) > bucketSize {
			return nil
		}
	}
	sortKVs(kvs)
	n.Pointers[pi] = &Pointer{KVs: kvs}

	return nil
}

// ForEach calls fn for every key/value pair in the tree, in trie order.
// Iteration stops at the first error returned by fn.
func (t *Tree) ForEach(ctx context.Context, fn func(key, value []byte) error) error {
	return t.doForEach(ctx, t.root, fn)
}

func (t *Tree) doForEach(ctx context.Context, n *node, fn func(key, value []byte) error) error {
	for _, p := range n.Pointers {
		if !p.isShard() {
			for _, kv := range p.KVs {
				if err := fn(kv.Key, kv.Value); err != nil {
					return err
				}
			}
			continue
		}

		child, err := t.loadChild(ctx, p)
		if err != nil {
			return err
		}
		if err = t.doForEach(ctx, child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Commit writes all dirty nodes to the node database in a single batch and
// returns the new root digest. Nothing is marked clean unless the batch
// commit succeeds.
func (t *Tree) Commit(ctx context.Context) (hash.Hash, error) {
	batch := t.db.NewBatch()

	var flushed []*node
	root, err := flush(batch, t.root, &flushed)
	if err != nil {
		batch.Reset()
		return hash.Hash{}, err
	}
	if err = batch.Commit(ctx); err != nil {
		return hash.Hash{}, err
	}

	for _, n := range flushed {
		n.dirty = false
	}
	return root, nil
}

func flush(batch api.Batch, n *node, flushed *[]*node) (hash.Hash, error) {
	for _, p := range n.Pointers {
		if p.child == nil || (!p.child.dirty && p.Link != nil) {
			continue
		}
		h, err := flush(batch, p.child, flushed)
		if err != nil {
			return hash.Hash{}, err
		}
		p.Link = &h
	}

	data, err := n.marshal()
	if err != nil {
		return hash.Hash{}, err
	}
	*flushed = append(*flushed, n)

	return batch.PutNode(data), nil
}

func (t *Tree) loadChild(ctx context.Context, p *Pointer) (*node, error) {
	if p.child != nil {
		return p.child, nil
	}

	child, err := fetchNode(ctx, t.db, *p.Link)
	if err != nil {
		return nil, err
	}
	p.child = child

	return child, nil
}

func fetchNode(ctx context.Context, db api.NodeDB, id hash.Hash) (*node, error) {
	data, err := db.GetNode(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("hamt: failed to fetch node %s: %w", id, err)
	}

	var n node
	if err = n.unmarshal(data); err != nil {
		return nil, fmt.Errorf("hamt: node %s: %w", id, err)
	}
	return &n, nil
}

// EmptyRoot returns the root digest of an empty tree.
func EmptyRoot() hash.Hash {
	data, _ := (&node{}).marshal()
	return api.NodeHash(data)
}

// New creates a new empty tree over the given node database. Nothing is
// written until Commit.
func New(db api.NodeDB) *Tree {
	return &Tree{
		db:   db,
		root: &node{dirty: true},
	}
}

// Load loads the tree with the given root from the node database.
func Load(ctx context.Context, db api.NodeDB, root hash.Hash) (*Tree, error) {
	n, err := fetchNode(ctx, db, root)
	if err != nil {
		return nil, err
	}

	return &Tree{
		db:   db,
		root: n,
	}, nil
}
