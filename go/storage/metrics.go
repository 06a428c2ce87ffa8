package storage

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/storage/api"
)

const (
	callGetNode     = "get_node"
	callCommitBatch = "commit_batch"
	callLoadRoot    = "load_root"
	callCommitRoot  = "commit_root"
)

var (
	storageCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cetf_storage_calls",
			Help: "Number of storage calls by call and outcome.",
		},
		[]string{"call", "outcome"},
	)
	storageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cetf_storage_latency",
			Help:    "Storage call latency (seconds).",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"call"},
	)
	storageBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cetf_storage_bytes",
			Help: "Number of node bytes read and written.",
		},
		[]string{"call"},
	)

	storageCollectors = []prometheus.Collector{
		storageCalls,
		storageLatency,
		storageBytes,
	}

	_ api.Backend = (*metricsWrapper)(nil)

	metricsOnce sync.Once
)

func observe(call string, start time.Time, size int, err error) {
	storageLatency.WithLabelValues(call).Observe(time.Since(start).Seconds())
	if err != nil {
		storageCalls.WithLabelValues(call, "failure").Inc()
		return
	}
	storageCalls.WithLabelValues(call, "success").Inc()
	if size > 0 {
		storageBytes.WithLabelValues(call).Add(float64(size))
	}
}

type metricsWrapper struct {
	api.Backend
}

func (w *metricsWrapper) GetNode(ctx context.Context, id hash.Hash) ([]byte, error) {
	start := time.Now()
	data, err := w.Backend.GetNode(ctx, id)
	observe(callGetNode, start, len(data), err)
	return data, err
}

func (w *metricsWrapper) NewBatch() api.Batch {
	return &metricsBatch{Batch: w.Backend.NewBatch()}
}

func (w *metricsWrapper) LoadRoot(ctx context.Context) (*hash.Hash, error) {
	start := time.Now()
	root, err := w.Backend.LoadRoot(ctx)
	observe(callLoadRoot, start, 0, err)
	return root, err
}

func (w *metricsWrapper) CommitRoot(ctx context.Context, root hash.Hash) error {
	start := time.Now()
	err := w.Backend.CommitRoot(ctx, root)
	observe(callCommitRoot, start, 0, err)
	return err
}

type metricsBatch struct {
	api.Batch

	size int
}

func (b *metricsBatch) PutNode(data []byte) hash.Hash {
	b.size += len(data)
	return b.Batch.PutNode(data)
}

func (b *metricsBatch) Commit(ctx context.Context) error {
	start := time.Now()
	err := b.Batch.Commit(ctx)
	observe(callCommitBatch, start, b.size, err)
	if err == nil {
		b.size = 0
	}
	return err
}

func (b *metricsBatch) Reset() {
	b.Batch.Reset()
	b.size = 0
}

func newMetricsWrapper(base api.Backend) api.Backend {
	metricsOnce.Do(func() {
		prometheus.MustRegister(storageCollectors...)
	})

	return &metricsWrapper{Backend: base}
}
