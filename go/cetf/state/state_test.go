package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BadBoiLabs/cetf/go/cetf/api"
	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/storage/hamt"
	"github.com/BadBoiLabs/cetf/go/storage/memory"
	"github.com/BadBoiLabs/cetf/go/storage/tests"
)

func mustInsert(t *testing.T, db *tests.FaultyBackend, root hash.Hash, height api.Height, tag string) hash.Hash {
	newRoot, err := Insert(context.Background(), db, root, height, api.Tag(tag))
	require.NoError(t, err, "Insert(%d, %s)", height, tag)
	return newRoot
}

func mustRead(t *testing.T, db *tests.FaultyBackend, root hash.Hash, height api.Height) api.TagQueue {
	queue, err := Read(context.Background(), db, root, height)
	require.NoError(t, err, "Read(%d)", height)
	return queue
}

func newTestDB(t *testing.T) *tests.FaultyBackend {
	db := tests.NewFaultyBackend(memory.New())
	t.Cleanup(db.Close)
	return db
}

func TestInitialize(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)

	root, err := Initialize(ctx, db)
	require.NoError(err, "Initialize")
	require.Equal(hamt.EmptyRoot(), root)

	heights, err := Heights(ctx, db, root)
	require.NoError(err, "Heights")
	require.Empty(heights)

	db.FailCommitBatch(true)
	_, err = Initialize(ctx, db)
	require.ErrorIs(err, api.ErrStorage, "Initialize with failing storage")
}

func TestReadAbsent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)

	root, err := Initialize(ctx, db)
	require.NoError(err, "Initialize")

	queue := mustRead(t, db, root, 42)
	require.NotNil(queue, "absent queue must be empty, not nil")
	require.Len(queue, 0)
}

func TestHeightIsolation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)

	root, err := Initialize(ctx, db)
	require.NoError(err, "Initialize")

	root = mustInsert(t, db, root, 1, "a")
	root = mustInsert(t, db, root, 2, "b")
	root = mustInsert(t, db, root, 1, "c")
	root = mustInsert(t, db, root, 3, "d")

	require.Equal(api.TagQueue{api.Tag("a"), api.Tag("c")}, mustRead(t, db, root, 1))
	require.Equal(api.TagQueue{api.Tag("b")}, mustRead(t, db, root, 2))
	require.Equal(api.TagQueue{api.Tag("d")}, mustRead(t, db, root, 3))
	require.Empty(mustRead(t, db, root, 4))

	// Clearing one height leaves the others alone.
	root, err = Remove(ctx, db, root, 2)
	require.NoError(err, "Remove(2)")
	require.Equal(api.TagQueue{api.Tag("a"), api.Tag("c")}, mustRead(t, db, root, 1))
	require.Empty(mustRead(t, db, root, 2))
	require.Equal(api.TagQueue{api.Tag("d")}, mustRead(t, db, root, 3))

	heights, err := Heights(ctx, db, root)
	require.NoError(err, "Heights")
	require.Equal([]api.Height{1, 3}, heights)
}

func TestAppendOrder(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)

	root, err := Initialize(ctx, db)
	require.NoError(err, "Initialize")

	for _, tag := range []string{"tag1", "tag2", "tag3"} {
		root = mustInsert(t, db, root, 7, tag)
	}
	require.Equal(api.TagQueue{api.Tag("tag1"), api.Tag("tag2"), api.Tag("tag3")}, mustRead(t, db, root, 7))

	// Duplicates are kept, the queue is an append log.
	root = mustInsert(t, db, root, 7, "tag1")
	require.Len(mustRead(t, db, root, 7), 4)
}

func TestIdempotentRemove(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)

	empty, err := Initialize(ctx, db)
	require.NoError(err, "Initialize")

	root := mustInsert(t, db, empty, 5, "x")
	root = mustInsert(t, db, root, 6, "y")

	first, err := Remove(ctx, db, root, 5)
	require.NoError(err, "Remove (first)")
	require.Empty(mustRead(t, db, first, 5))

	second, err := Remove(ctx, db, first, 5)
	require.NoError(err, "Remove (second)")
	require.Equal(first, second, "repeated remove must not change the root")
	require.Empty(mustRead(t, db, second, 5))

	// Removing the last height returns to the empty root.
	root, err = Remove(ctx, db, second, 6)
	require.NoError(err, "Remove(6)")
	require.Equal(empty, root)
}

func TestRootDeterminism(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)

	empty, err := Initialize(ctx, db)
	require.NoError(err, "Initialize")

	a := mustInsert(t, db, empty, 1, "x")
	a = mustInsert(t, db, a, 2, "y")

	b := mustInsert(t, db, empty, 2, "y")
	b = mustInsert(t, db, b, 1, "x")
	require.Equal(a, b, "independent heights must commute")

	c := mustInsert(t, db, a, 3, "z")
	c, err = Remove(ctx, db, c, 3)
	require.NoError(err, "Remove(3)")
	require.Equal(a, c, "insert then clear must restore the root")
}

func TestStorageFailures(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)

	root, err := Initialize(ctx, db)
	require.NoError(err, "Initialize")
	root = mustInsert(t, db, root, 5, "x")

	db.FailCommitBatch(true)
	_, err = Insert(ctx, db, root, 5, api.Tag("y"))
	require.ErrorIs(err, api.ErrStorage, "Insert with failing commit")
	_, err = Remove(ctx, db, root, 5)
	require.ErrorIs(err, api.ErrStorage, "Remove with failing commit")
	db.FailCommitBatch(false)

	db.FailGetNode(true)
	_, err = Read(ctx, db, root, 5)
	require.ErrorIs(err, api.ErrStorage, "Read with failing storage")
	_, err = Insert(ctx, db, root, 5, api.Tag("y"))
	require.ErrorIs(err, api.ErrStorage, "Insert with failing storage")
	db.FailGetNode(false)

	// The prior root is intact.
	require.Equal(api.TagQueue{api.Tag("x")}, mustRead(t, db, root, 5))

	_, err = Read(ctx, db, hash.NewFromBytes([]byte("unknown root")), 5)
	require.ErrorIs(err, api.ErrStorage, "Read from unknown root")
}
