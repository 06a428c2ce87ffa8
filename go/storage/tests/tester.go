// Package tests is a collection of storage implementation test cases.
package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/storage/api"
)

var testValues = [][]byte{
	[]byte("Thou seest Me as Time who kills, Time who brings all to doom,"),
	[]byte("The Slayer Time, Ancient of Days, come hither to consume;"),
	[]byte("Excepting thee, of all these hosts of hostile chiefs arrayed,"),
	[]byte("There shines not one shall leave alive the battlefield!"),
}

// StorageImplementationTests exercises the basic functionality of a
// storage backend.
func StorageImplementationTests(t *testing.T, backend api.Backend) {
	ctx := context.Background()

	testNodes(ctx, t, backend)
	testBatchReset(ctx, t, backend)
	testRoots(ctx, t, backend)
}

func testNodes(ctx context.Context, t *testing.T, backend api.Backend) {
	require := require.New(t)

	batch := backend.NewBatch()
	hashes := make([]hash.Hash, 0, len(testValues))
	for _, v := range testValues {
		hashes = append(hashes, batch.PutNode(v))
	}
	for i, h := range hashes {
		require.Equal(api.NodeHash(testValues[i]), h, "PutNode(%d) must return the content digest", i)
	}

	// Nothing is visible before commit.
	_, err := backend.GetNode(ctx, hashes[0])
	require.ErrorIs(err, api.ErrNodeNotFound, "GetNode before Commit")

	err = batch.Commit(ctx)
	require.NoError(err, "Commit")

	for i, h := range hashes {
		data, gerr := backend.GetNode(ctx, h)
		require.NoError(gerr, "GetNode(%d)", i)
		require.EqualValues(testValues[i], data, "GetNode(%d)", i)
	}

	// Re-inserting an existing node is harmless.
	batch = backend.NewBatch()
	require.Equal(hashes[0], batch.PutNode(testValues[0]))
	require.NoError(batch.Commit(ctx), "Commit (duplicate)")

	missing := hash.NewFromBytes([]byte("missing"))
	_, err = backend.GetNode(ctx, missing)
	require.ErrorIs(err, api.ErrNodeNotFound, "GetNode(missing)")
}

func testBatchReset(ctx context.Context, t *testing.T, backend api.Backend) {
	require := require.New(t)

	batch := backend.NewBatch()
	h := batch.PutNode([]byte("discarded"))
	batch.Reset()
	require.NoError(batch.Commit(ctx), "Commit (empty)")

	_, err := backend.GetNode(ctx, h)
	require.ErrorIs(err, api.ErrNodeNotFound, "GetNode after Reset")
}

func testRoots(ctx context.Context, t *testing.T, backend api.Backend) {
	require := require.New(t)

	root, err := backend.LoadRoot(ctx)
	require.NoError(err, "LoadRoot (empty)")
	require.Nil(root, "LoadRoot must return nil before any commit")

	first := hash.NewFromBytes([]byte("first"))
	require.NoError(backend.CommitRoot(ctx, first), "CommitRoot(first)")
	root, err = backend.LoadRoot(ctx)
	require.NoError(err, "LoadRoot(first)")
	require.NotNil(root)
	require.Equal(first, *root)

	second := hash.NewFromBytes([]byte("second"))
	require.NoError(backend.CommitRoot(ctx, second), "CommitRoot(second)")
	root, err = backend.LoadRoot(ctx)
	require.NoError(err, "LoadRoot(second)")
	require.Equal(second, *root)
}
