// Package leveldb implements the LevelDB backed storage backend.
package leveldb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/common/keyformat"
	"github.com/BadBoiLabs/cetf/go/common/logging"
	"github.com/BadBoiLabs/cetf/go/storage/api"
)

const (
	// BackendName is the name of this implementation.
	BackendName = "leveldb"

	// DBFile is the default backing store filename.
	DBFile = "cetf_storage.leveldb.db"
)

var (
	_ api.Backend = (*leveldbBackend)(nil)

	// nodeKeyFmt is the key format for nodes (node hash).
	//
	// Value is the serialized node.
	nodeKeyFmt = keyformat.New(0x00, &hash.Hash{})
	// rootKeyFmt is the key format for the committed root.
	//
	// Value is the raw root hash.
	rootKeyFmt = keyformat.New(0x01)

	syncWrite = &opt.WriteOptions{Sync: true}
)

type leveldbBackend struct {
	logger *logging.Logger

	db *leveldb.DB

	closeOnce sync.Once
}

func (b *leveldbBackend) GetNode(ctx context.Context, id hash.Hash) ([]byte, error) {
	data, err := b.db.Get(nodeKeyFmt.Encode(&id), nil)
	switch {
	case err == nil:
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, api.ErrNodeNotFound
	case errors.Is(err, leveldb.ErrClosed):
		return nil, api.ErrClosed
	default:
		return nil, fmt.Errorf("storage/leveldb: failed to get node %s: %w", id, err)
	}

	if err = api.VerifyNode(id, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (b *leveldbBackend) NewBatch() api.Batch {
	return &leveldbBatch{
		backend: b,
		bat:     new(leveldb.Batch),
	}
}

func (b *leveldbBackend) LoadRoot(ctx context.Context) (*hash.Hash, error) {
	data, err := b.db.Get(rootKeyFmt.Encode(), nil)
	switch {
	case err == nil:
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, nil
	case errors.Is(err, leveldb.ErrClosed):
		return nil, api.ErrClosed
	default:
		return nil, fmt.Errorf("storage/leveldb: failed to load root: %w", err)
	}

	var root hash.Hash
	if err = root.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("storage/leveldb: malformed root: %w", err)
	}
	return &root, nil
}

func (b *leveldbBackend) CommitRoot(ctx context.Context, root hash.Hash) error {
	if err := b.db.Put(rootKeyFmt.Encode(), root[:], syncWrite); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return api.ErrClosed
		}
		return fmt.Errorf("storage/leveldb: failed to commit root: %w", err)
	}
	return nil
}

func (b *leveldbBackend) Close() {
	b.closeOnce.Do(func() {
		if err := b.db.Close(); err != nil {
			b.logger.Error("failed to close database",
				"err", err,
			)
		}
	})
}

type leveldbBatch struct {
	backend *leveldbBackend

	bat *leveldb.Batch
}

func (lb *leveldbBatch) PutNode(data []byte) hash.Hash {
	h := api.NodeHash(data)
	lb.bat.Put(nodeKeyFmt.Encode(&h), data)
	return h
}

func (lb *leveldbBatch) Commit(ctx context.Context) error {
	if err := lb.backend.db.Write(lb.bat, syncWrite); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return api.ErrClosed
		}
		return fmt.Errorf("storage/leveldb: failed to commit batch: %w", err)
	}

	lb.Reset()

	return nil
}

func (lb *leveldbBatch) Reset() {
	lb.bat.Reset()
}

// New constructs a new LevelDB backed storage Backend instance, using the
// provided path for the database.
func New(dbDir string) (api.Backend, error) {
	db, err := leveldb.OpenFile(dbDir, nil)
	if err != nil {
		return nil, fmt.Errorf("storage/leveldb: failed to open database: %w", err)
	}

	return &leveldbBackend{
		logger: logging.GetLogger("storage/leveldb"),
		db:     db,
	}, nil
}
