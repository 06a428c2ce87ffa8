package tests

import (
	"context"
	"errors"
	"sync"

	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/storage/api"
)

// ErrInjected is the error returned by a FaultyBackend operation that has
// been configured to fail.
var ErrInjected = errors.New("storage/tests: injected failure")

// FaultyBackend is a storage backend wrapper that can be told to fail
// specific operations.
type FaultyBackend struct {
	api.Backend

	sync.Mutex

	failGetNode     bool
	failCommitBatch bool
	failCommitRoot  bool
}

// FailGetNode toggles GetNode failures.
func (b *FaultyBackend) FailGetNode(fail bool) {
	b.Lock()
	defer b.Unlock()
	b.failGetNode = fail
}

// FailCommitBatch toggles batch Commit failures.
func (b *FaultyBackend) FailCommitBatch(fail bool) {
	b.Lock()
	defer b.Unlock()
	b.failCommitBatch = fail
}

// FailCommitRoot toggles CommitRoot failures.
func (b *FaultyBackend) FailCommitRoot(fail bool) {
	b.Lock()
	defer b.Unlock()
	b.failCommitRoot = fail
}

func (b *FaultyBackend) GetNode(ctx context.Context, id hash.Hash) ([]byte, error) {
	b.Lock()
	fail := b.failGetNode
	b.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return b.Backend.GetNode(ctx, id)
}

func (b *FaultyBackend) NewBatch() api.Batch {
	return &faultyBatch{
		Batch:   b.Backend.NewBatch(),
		backend: b,
	}
}

func (b *FaultyBackend) CommitRoot(ctx context.Context, root hash.Hash) error {
	b.Lock()
	fail := b.failCommitRoot
	b.Unlock()
	if fail {
		return ErrInjected
	}
	return b.Backend.CommitRoot(ctx, root)
}

type faultyBatch struct {
	api.Batch

	backend *FaultyBackend
}

func (fb *faultyBatch) Commit(ctx context.Context) error {
	fb.backend.Lock()
	fail := fb.backend.failCommitBatch
	fb.backend.Unlock()
	if fail {
		return ErrInjected
	}
	return fb.Batch.Commit(ctx)
}

// NewFaultyBackend wraps the given backend with fault injection, all
// failures initially disabled.
func NewFaultyBackend(backend api.Backend) *FaultyBackend {
	return &FaultyBackend{Backend: backend}
}
