// Package state implements the height-indexed tag store.
//
// The store maps a height to the ordered queue of tags enqueued at that
// height. It lives in a hash array mapped trie so the whole mapping
// commits to a single root digest. Every operation loads the trie from a
// root and returns a new root; nothing is retained between calls.
package state

import (
	"context"
	"fmt"
	"sort"

	"github.com/BadBoiLabs/cetf/go/cetf/api"
	"github.com/BadBoiLabs/cetf/go/common/cbor"
	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/common/errors"
	"github.com/BadBoiLabs/cetf/go/common/keyformat"
	storage "github.com/BadBoiLabs/cetf/go/storage/api"
	"github.com/BadBoiLabs/cetf/go/storage/hamt"
)

// tagQueueKeyFmt is the tag queue key format (height).
//
// Value is a CBOR-serialized api.TagQueue.
var tagQueueKeyFmt = keyformat.New(0x70, uint64(0))

// unavailableStateError wraps a node database or trie failure.
func unavailableStateError(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithContext(api.ErrStorage, err.Error())
}

// ImmutableState is the read-only tag store state wrapper.
type ImmutableState struct {
	tree *hamt.Tree
}

// TagQueue returns the queue at the given height. An absent height yields
// an empty queue.
func (st *ImmutableState) TagQueue(ctx context.Context, height api.Height) (api.TagQueue, error) {
	raw, ok, err := st.tree.Get(ctx, tagQueueKeyFmt.Encode(uint64(height)))
	if err != nil {
		return nil, unavailableStateError(err)
	}
	if !ok {
		return api.TagQueue{}, nil
	}

	var queue api.TagQueue
	if err = cbor.Unmarshal(raw, &queue); err != nil {
		return nil, unavailableStateError(fmt.Errorf("malformed queue at height %d: %w", height, err))
	}
	if queue == nil {
		queue = api.TagQueue{}
	}
	return queue, nil
}

// Heights returns all populated heights in ascending order.
func (st *ImmutableState) Heights(ctx context.Context) ([]api.Height, error) {
	heights := []api.Height{}
	err := st.tree.ForEach(ctx, func(key, _ []byte) error {
		var h uint64
		if tagQueueKeyFmt.Decode(key, &h) {
			heights = append(heights, api.Height(h))
		}
		return nil
	})
	if err != nil {
		return nil, unavailableStateError(err)
	}

	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights, nil
}

// NewImmutableState loads the tag store with the given root.
func NewImmutableState(ctx context.Context, db storage.NodeDB, root hash.Hash) (*ImmutableState, error) {
	tree, err := hamt.Load(ctx, db, root)
	if err != nil {
		return nil, unavailableStateError(err)
	}
	return &ImmutableState{tree: tree}, nil
}

// MutableState is the mutable tag store state wrapper.
type MutableState struct {
	*ImmutableState
}

// AppendTag appends the tag to the end of the queue at the given height,
// creating the queue if needed.
func (st *MutableState) AppendTag(ctx context.Context, height api.Height, tag api.Tag) error {
	queue, err := st.TagQueue(ctx, height)
	if err != nil {
		return err
	}
	queue = append(queue, append(api.Tag{}, tag...))

	if err = st.tree.Insert(ctx, tagQueueKeyFmt.Encode(uint64(height)), cbor.Marshal(queue)); err != nil {
		return unavailableStateError(err)
	}
	return nil
}

// ClearTagQueue removes the queue at the given height. The boolean
// reports whether a queue was present.
func (st *MutableState) ClearTagQueue(ctx context.Context, height api.Height) (bool, error) {
	found, err := st.tree.Remove(ctx, tagQueueKeyFmt.Encode(uint64(height)))
	if err != nil {
		return false, unavailableStateError(err)
	}
	return found, nil
}

// Commit flushes all modifications to the node database and returns the
// new root.
func (st *MutableState) Commit(ctx context.Context) (hash.Hash, error) {
	root, err := st.tree.Commit(ctx)
	if err != nil {
		return hash.Hash{}, unavailableStateError(err)
	}
	return root, nil
}

// NewMutableState loads the tag store with the given root for
// modification.
func NewMutableState(ctx context.Context, db storage.NodeDB, root hash.Hash) (*MutableState, error) {
	is, err := NewImmutableState(ctx, db, root)
	if err != nil {
		return nil, err
	}
	return &MutableState{ImmutableState: is}, nil
}

// Initialize creates an empty tag store and returns its root.
func Initialize(ctx context.Context, db storage.NodeDB) (hash.Hash, error) {
	st := &MutableState{
		ImmutableState: &ImmutableState{tree: hamt.New(db)},
	}
	return st.Commit(ctx)
}

// Insert appends the tag to the queue at the given height and returns the
// new root.
func Insert(ctx context.Context, db storage.NodeDB, root hash.Hash, height api.Height, tag api.Tag) (hash.Hash, error) {
	st, err := NewMutableState(ctx, db, root)
	if err != nil {
		return hash.Hash{}, err
	}
	if err = st.AppendTag(ctx, height, tag); err != nil {
		return hash.Hash{}, err
	}
	return st.Commit(ctx)
}

// Remove deletes the queue at the given height and returns the new root.
// Removing an absent height returns root unchanged.
func Remove(ctx context.Context, db storage.NodeDB, root hash.Hash, height api.Height) (hash.Hash, error) {
	st, err := NewMutableState(ctx, db, root)
	if err != nil {
		return hash.Hash{}, err
	}
	found, err := st.ClearTagQueue(ctx, height)
	if err != nil {
		return hash.Hash{}, err
	}
	if !found {
		return root, nil
	}
	return st.Commit(ctx)
}

// Read returns the queue at the given height, empty if absent.
func Read(ctx context.Context, db storage.NodeDB, root hash.Hash, height api.Height) (api.TagQueue, error) {
	st, err := NewImmutableState(ctx, db, root)
	if err != nil {
		return nil, err
	}
	return st.TagQueue(ctx, height)
}

// Heights returns all populated heights in ascending order.
func Heights(ctx context.Context, db storage.NodeDB, root hash.Hash) ([]api.Height, error) {
	st, err := NewImmutableState(ctx, db, root)
	if err != nil {
		return nil, err
	}
	return st.Heights(ctx)
}
