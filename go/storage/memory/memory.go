// Package memory implements the memory backed storage backend.
package memory

import (
	"context"
	"sync"

	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/common/logging"
	"github.com/BadBoiLabs/cetf/go/storage/api"
)

// BackendName is the name of this implementation.
const BackendName = "memory"

var _ api.Backend = (*memoryBackend)(nil)

type memoryBackend struct {
	sync.RWMutex

	logger *logging.Logger

	nodes  map[hash.Hash][]byte
	root   *hash.Hash
	closed bool
}

func (b *memoryBackend) GetNode(ctx context.Context, id hash.Hash) ([]byte, error) {
	b.RLock()
	defer b.RUnlock()

	if b.closed {
		return nil, api.ErrClosed
	}

	data, ok := b.nodes[id]
	if !ok {
		return nil, api.ErrNodeNotFound
	}
	return append([]byte{}, data...), nil
}

func (b *memoryBackend) NewBatch() api.Batch {
	return &memoryBatch{
		backend: b,
		nodes:   make(map[hash.Hash][]byte),
	}
}

func (b *memoryBackend) LoadRoot(ctx context.Context) (*hash.Hash, error) {
	b.RLock()
	defer b.RUnlock()

	if b.closed {
		return nil, api.ErrClosed
	}
	if b.root == nil {
		return nil, nil
	}

	root := *b.root
	return &root, nil
}

func (b *memoryBackend) CommitRoot(ctx context.Context, root hash.Hash) error {
	b.Lock()
	defer b.Unlock()

	if b.closed {
		return api.ErrClosed
	}
	b.root = &root

	return nil
}

func (b *memoryBackend) Close() {
	b.Lock()
	defer b.Unlock()

	b.closed = true
	b.nodes = nil
}

type memoryBatch struct {
	backend *memoryBackend

	nodes map[hash.Hash][]byte
}

func (mb *memoryBatch) PutNode(data []byte) hash.Hash {
	h := api.NodeHash(data)
	mb.nodes[h] = append([]byte{}, data...)
	return h
}

func (mb *memoryBatch) Commit(ctx context.Context) error {
	b := mb.backend

	b.Lock()
	defer b.Unlock()

	if b.closed {
		return api.ErrClosed
	}
	for h, data := range mb.nodes {
		b.nodes[h] = data
	}

	b.logger.Debug("committed batch",
		"nodes", len(mb.nodes),
	)
	mb.Reset()

	return nil
}

func (mb *memoryBatch) Reset() {
	mb.nodes = make(map[hash.Hash][]byte)
}

// New constructs a new memory backed storage Backend instance.
func New() api.Backend {
	return &memoryBackend{
		logger: logging.GetLogger("storage/memory"),
		nodes:  make(map[hash.Hash][]byte),
	}
}
