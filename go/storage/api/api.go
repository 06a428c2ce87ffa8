// Package api defines the content-addressed storage interfaces the tag
// store is persisted through.
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
)

var (
	// ErrNodeNotFound is the error returned when a node is not present in
	// the node database.
	ErrNodeNotFound = errors.New("storage: node not found in node db")

	// ErrCorruptedNode is the error returned when the bytes stored under a
	// digest do not hash to that digest.
	ErrCorruptedNode = errors.New("storage: node digest mismatch")

	// ErrClosed is the error returned when using a closed backend.
	ErrClosed = errors.New("storage: backend closed")
)

// NodeDB is a content-addressed node database. Nodes are immutable and
// addressed by the digest of their serialization.
type NodeDB interface {
	// GetNode looks up a serialized node by its digest.
	//
	// Returns ErrNodeNotFound if no such node exists.
	GetNode(ctx context.Context, id hash.Hash) ([]byte, error)

	// NewBatch starts a new write batch.
	NewBatch() Batch

	// Close closes the database.
	Close()
}

// Batch is a set of node writes that are persisted together.
type Batch interface {
	// PutNode stages a serialized node and returns its digest.
	PutNode(data []byte) hash.Hash

	// Commit atomically persists all staged nodes. Nothing staged in the
	// batch is visible to readers before Commit succeeds.
	Commit(ctx context.Context) error

	// Reset discards all staged nodes so the batch can be reused.
	Reset()
}

// RootStore persists the single committed root of the tag store.
type RootStore interface {
	// LoadRoot returns the last committed root or nil if no root has ever
	// been committed.
	LoadRoot(ctx context.Context) (*hash.Hash, error)

	// CommitRoot atomically replaces the committed root.
	CommitRoot(ctx context.Context, root hash.Hash) error
}

// Backend is a storage backend providing both a node database and a root
// store over the same underlying database.
type Backend interface {
	NodeDB
	RootStore
}

// Config is the storage backend configuration.
type Config struct {
	// Backend is the name of the backend implementation.
	Backend string

	// DB is the path to the database directory. Ignored by the memory
	// backend.
	DB string

	// MaxCacheSize is the maximum node cache size in bytes. Zero disables
	// the cache.
	MaxCacheSize uint64
}

// NodeHash returns the digest a node is addressed by.
func NodeHash(data []byte) hash.Hash {
	return hash.NewFromBytes(data)
}

// VerifyNode checks that the given serialized node hashes to id.
func VerifyNode(id hash.Hash, data []byte) error {
	h := NodeHash(data)
	if !h.Equal(&id) {
		return fmt.Errorf("%w: expected %s, got %s", ErrCorruptedNode, id, h)
	}
	return nil
}
