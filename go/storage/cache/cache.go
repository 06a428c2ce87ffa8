// Package cache implements a storage backend wrapper with an in-memory
// LRU cache of nodes.
//
// Nodes are immutable and content-addressed, so cached entries never need
// to be invalidated.
package cache

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BadBoiLabs/cetf/go/common/cache/lru"
	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/common/logging"
	"github.com/BadBoiLabs/cetf/go/storage/api"
)

var (
	_ api.Backend = (*cachingBackend)(nil)

	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cetf_storage_cache_hits",
			Help: "Number of node cache hits.",
		},
	)
	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cetf_storage_cache_misses",
			Help: "Number of node cache misses.",
		},
	)

	cacheCollectors = []prometheus.Collector{
		cacheHits,
		cacheMisses,
	}

	metricsOnce sync.Once
)

type cachingBackend struct {
	api.Backend

	logger *logging.Logger
	local  *lru.Cache[hash.Hash, []byte]
}

func (b *cachingBackend) GetNode(ctx context.Context, id hash.Hash) ([]byte, error) {
	if cached, ok := b.local.Get(id); ok {
		cacheHits.Inc()
		return append([]byte{}, cached...), nil
	}

	cacheMisses.Inc()
	data, err := b.Backend.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	b.insertLocal(id, data)

	return data, nil
}

func (b *cachingBackend) NewBatch() api.Batch {
	return &cachingBatch{
		Batch:   b.Backend.NewBatch(),
		backend: b,
		staged:  make(map[hash.Hash][]byte),
	}
}

func (b *cachingBackend) insertLocal(id hash.Hash, data []byte) {
	if err := b.local.Put(id, append([]byte{}, data...)); err != nil {
		// Node larger than the whole cache, just skip caching it.
		b.logger.Debug("not caching node",
			"id", id,
			"size", len(data),
			"err", err,
		)
	}
}

type cachingBatch struct {
	api.Batch

	backend *cachingBackend
	staged  map[hash.Hash][]byte
}

func (cb *cachingBatch) PutNode(data []byte) hash.Hash {
	h := cb.Batch.PutNode(data)
	cb.staged[h] = data
	return h
}

func (cb *cachingBatch) Commit(ctx context.Context) error {
	if err := cb.Batch.Commit(ctx); err != nil {
		return err
	}

	// Write-through, only after the underlying batch made it to disk.
	for h, data := range cb.staged {
		cb.backend.insertLocal(h, data)
	}
	cb.staged = make(map[hash.Hash][]byte)

	return nil
}

func (cb *cachingBatch) Reset() {
	cb.Batch.Reset()
	cb.staged = make(map[hash.Hash][]byte)
}

// New wraps the given backend with an LRU node cache of the given size in
// bytes.
func New(backend api.Backend, sizeInBytes uint64) (api.Backend, error) {
	local := lru.New(
		lru.Capacity[hash.Hash, []byte](sizeInBytes),
		lru.Sized[hash.Hash, []byte](func(data []byte) uint64 { return uint64(len(data)) }),
	)

	metricsOnce.Do(func() {
		prometheus.MustRegister(cacheCollectors...)
	})

	return &cachingBackend{
		Backend: backend,
		logger:  logging.GetLogger("storage/cache"),
		local:   local,
	}, nil
}
