// Package badger implements the BadgerDB backed storage backend.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"

	cmnBadger "github.com/BadBoiLabs/cetf/go/common/badger"
	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/common/keyformat"
	"github.com/BadBoiLabs/cetf/go/common/logging"
	"github.com/BadBoiLabs/cetf/go/storage/api"
)

const (
	// BackendName is the name of this implementation.
	BackendName = "badger"

	// DBFile is the default backing store filename.
	DBFile = "cetf_storage.badger.db"
)

var (
	_ api.Backend = (*badgerBackend)(nil)

	// nodeKeyFmt is the key format for nodes (node hash).
	//
	// Value is the serialized node.
	nodeKeyFmt = keyformat.New(0x00, &hash.Hash{})
	// rootKeyFmt is the key format for the committed root.
	//
	// Value is the raw root hash.
	rootKeyFmt = keyformat.New(0x01)
)

type badgerBackend struct {
	logger *logging.Logger

	db *badger.DB
	gc *cmnBadger.GCWorker

	closeOnce sync.Once
}

func (b *badgerBackend) GetNode(ctx context.Context, id hash.Hash) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *badger.Txn) error {
		item, txErr := tx.Get(nodeKeyFmt.Encode(&id))
		if txErr != nil {
			return txErr
		}
		data, txErr = item.ValueCopy(nil)
		return txErr
	})
	switch {
	case err == nil:
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, api.ErrNodeNotFound
	case errors.Is(err, badger.ErrDBClosed):
		return nil, api.ErrClosed
	default:
		return nil, fmt.Errorf("storage/badger: failed to get node %s: %w", id, err)
	}

	if err = api.VerifyNode(id, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (b *badgerBackend) NewBatch() api.Batch {
	return &badgerBatch{
		backend: b,
		nodes:   make(map[hash.Hash][]byte),
	}
}

func (b *badgerBackend) LoadRoot(ctx context.Context) (*hash.Hash, error) {
	var root *hash.Hash
	err := b.db.View(func(tx *badger.Txn) error {
		item, txErr := tx.Get(rootKeyFmt.Encode())
		switch {
		case txErr == nil:
		case errors.Is(txErr, badger.ErrKeyNotFound):
			return nil
		default:
			return txErr
		}

		return item.Value(func(val []byte) error {
			var h hash.Hash
			if err := h.UnmarshalBinary(val); err != nil {
				return fmt.Errorf("malformed root: %w", err)
			}
			root = &h
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return nil, api.ErrClosed
		}
		return nil, fmt.Errorf("storage/badger: failed to load root: %w", err)
	}
	return root, nil
}

func (b *badgerBackend) CommitRoot(ctx context.Context, root hash.Hash) error {
	err := b.db.Update(func(tx *badger.Txn) error {
		return tx.Set(rootKeyFmt.Encode(), append([]byte{}, root[:]...))
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return api.ErrClosed
		}
		return fmt.Errorf("storage/badger: failed to commit root: %w", err)
	}
	return nil
}

func (b *badgerBackend) Close() {
	b.closeOnce.Do(func() {
		if b.gc != nil {
			b.gc.Close()
		}
		if err := b.db.Close(); err != nil {
			b.logger.Error("failed to close database",
				"err", err,
			)
		}
	})
}

type badgerBatch struct {
	backend *badgerBackend

	nodes map[hash.Hash][]byte
}

func (bb *badgerBatch) PutNode(data []byte) hash.Hash {
	h := api.NodeHash(data)
	bb.nodes[h] = append([]byte{}, data...)
	return h
}

func (bb *badgerBatch) Commit(ctx context.Context) error {
	// A single transaction keeps the batch all-or-nothing.
	err := bb.backend.db.Update(func(tx *badger.Txn) error {
		for h, data := range bb.nodes {
			h := h
			if err := tx.Set(nodeKeyFmt.Encode(&h), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return api.ErrClosed
		}
		return fmt.Errorf("storage/badger: failed to commit batch: %w", err)
	}

	bb.Reset()

	return nil
}

func (bb *badgerBatch) Reset() {
	bb.nodes = make(map[hash.Hash][]byte)
}

// New constructs a new Badger backed storage Backend instance, using the
// provided directory for the database. An empty directory opens a purely
// in-memory database.
func New(dbDir string) (api.Backend, error) {
	logger := logging.GetLogger("storage/badger")

	opts := badger.DefaultOptions(dbDir)
	if dbDir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(cmnBadger.NewLogAdapter(logger))
	opts = opts.WithSyncWrites(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage/badger: failed to open database: %w", err)
	}

	b := &badgerBackend{
		logger: logger,
		db:     db,
	}
	if !opts.InMemory {
		b.gc = cmnBadger.NewGCWorker(logger, db, cmnBadger.DefaultGCInterval)
	}

	return b, nil
}
