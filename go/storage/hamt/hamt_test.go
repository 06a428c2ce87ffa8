package hamt

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BadBoiLabs/cetf/go/common/cbor"
	"github.com/BadBoiLabs/cetf/go/storage/api"
	"github.com/BadBoiLabs/cetf/go/storage/memory"
	"github.com/BadBoiLabs/cetf/go/storage/tests"
)

func testKey(i int) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(i))
	return k[:]
}

func testValue(i int) []byte {
	return []byte(fmt.Sprintf("value %d", i))
}

func TestEmptyTree(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db := memory.New()
	defer db.Close()

	tree := New(db)
	root, err := tree.Commit(ctx)
	require.NoError(err, "Commit")
	require.Equal(EmptyRoot(), root, "empty tree must commit to the empty root")

	tree, err = Load(ctx, db, root)
	require.NoError(err, "Load")
	_, ok, err := tree.Get(ctx, []byte("missing"))
	require.NoError(err, "Get")
	require.False(ok, "Get on empty tree")

	found, err := tree.Remove(ctx, []byte("missing"))
	require.NoError(err, "Remove")
	require.False(found, "Remove on empty tree")
}

func TestInsertGetRemove(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db := memory.New()
	defer db.Close()

	const numKeys = 1000
	tree := New(db)
	for i := 0; i < numKeys; i++ {
		require.NoError(tree.Insert(ctx, testKey(i), testValue(i)), "Insert(%d)", i)
	}
	for i := 0; i < numKeys; i++ {
		v, ok, err := tree.Get(ctx, testKey(i))
		require.NoError(err, "Get(%d)", i)
		require.True(ok, "Get(%d)", i)
		require.EqualValues(testValue(i), v, "Get(%d)", i)
	}

	root, err := tree.Commit(ctx)
	require.NoError(err, "Commit")

	// Reload from the node database and check again.
	tree, err = Load(ctx, db, root)
	require.NoError(err, "Load")
	var count int
	err = tree.ForEach(ctx, func(key, value []byte) error {
		i := int(binary.BigEndian.Uint64(key))
		require.EqualValues(testValue(i), value, "ForEach(%d)", i)
		count++
		return nil
	})
	require.NoError(err, "ForEach")
	require.Equal(numKeys, count, "ForEach must visit every key")

	for i := 0; i < numKeys; i++ {
		found, rerr := tree.Remove(ctx, testKey(i))
		require.NoError(rerr, "Remove(%d)", i)
		require.True(found, "Remove(%d)", i)
	}
	_, ok, err := tree.Get(ctx, testKey(0))
	require.NoError(err, "Get after Remove")
	require.False(ok, "Get after Remove")

	root, err = tree.Commit(ctx)
	require.NoError(err, "Commit (emptied)")
	require.Equal(EmptyRoot(), root, "removing every key must return to the empty root")
}

func TestReplaceValue(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db := memory.New()
	defer db.Close()

	tree := New(db)
	require.NoError(tree.Insert(ctx, []byte("key"), []byte("one")))
	require.NoError(tree.Insert(ctx, []byte("key"), []byte("two")))

	v, ok, err := tree.Get(ctx, []byte("key"))
	require.NoError(err, "Get")
	require.True(ok)
	require.EqualValues([]byte("two"), v)
}

func TestCanonicalRoot(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db := memory.New()
	defer db.Close()

	const numKeys = 300

	build := func(order []int) *Tree {
		tree := New(db)
		for _, i := range order {
			require.NoError(tree.Insert(ctx, testKey(i), testValue(i)), "Insert(%d)", i)
		}
		return tree
	}

	order := make([]int, numKeys)
	for i := range order {
		order[i] = i
	}
	tree := build(order)
	expected, err := tree.Commit(ctx)
	require.NoError(err, "Commit")

	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	tree = build(order)
	root, err := tree.Commit(ctx)
	require.NoError(err, "Commit (shuffled)")
	require.Equal(expected, root, "insertion order must not change the root")

	// Adding and then removing extra keys must return to the same root.
	tree, err = Load(ctx, db, expected)
	require.NoError(err, "Load")
	for i := numKeys; i < 2*numKeys; i++ {
		require.NoError(tree.Insert(ctx, testKey(i), testValue(i)), "Insert(%d)", i)
	}
	intermediate, err := tree.Commit(ctx)
	require.NoError(err, "Commit (grown)")
	require.NotEqual(expected, intermediate)

	for i := 2*numKeys - 1; i >= numKeys; i-- {
		found, rerr := tree.Remove(ctx, testKey(i))
		require.NoError(rerr, "Remove(%d)", i)
		require.True(found, "Remove(%d)", i)
	}
	root, err = tree.Commit(ctx)
	require.NoError(err, "Commit (shrunk)")
	require.Equal(expected, root, "collapse on removal must restore the original root")
}

func TestRemoveAbsentKeepsRoot(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db := memory.New()
	defer db.Close()

	tree := New(db)
	for i := 0; i < 50; i++ {
		require.NoError(tree.Insert(ctx, testKey(i), testValue(i)))
	}
	before, err := tree.Commit(ctx)
	require.NoError(err, "Commit")

	found, err := tree.Remove(ctx, testKey(1000))
	require.NoError(err, "Remove")
	require.False(found)

	after, err := tree.Commit(ctx)
	require.NoError(err, "Commit (after Remove)")
	require.Equal(before, after)
}

func TestCommitFailure(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	faulty := tests.NewFaultyBackend(memory.New())
	defer faulty.Close()

	tree := New(faulty)
	for i := 0; i < 20; i++ {
		require.NoError(tree.Insert(ctx, testKey(i), testValue(i)))
	}

	faulty.FailCommitBatch(true)
	_, err := tree.Commit(ctx)
	require.ErrorIs(err, tests.ErrInjected, "Commit must fail")

	// The same tree can be committed once storage recovers.
	faulty.FailCommitBatch(false)
	root, err := tree.Commit(ctx)
	require.NoError(err, "Commit (recovered)")

	tree, err = Load(ctx, faulty, root)
	require.NoError(err, "Load")
	v, ok, err := tree.Get(ctx, testKey(7))
	require.NoError(err, "Get")
	require.True(ok)
	require.EqualValues(testValue(7), v)
}

func TestLoadErrors(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db := memory.New()
	defer db.Close()

	_, err := Load(ctx, db, api.NodeHash([]byte("missing")))
	require.ErrorIs(err, api.ErrNodeNotFound, "Load(missing)")

	// Bitfield claims two slots but only one pointer is present.
	bad := &node{
		Bitfield: 0b11,
		Pointers: []*Pointer{{KVs: []*KV{{Key: []byte("a"), Value: []byte("b")}}}},
	}
	batch := db.NewBatch()
	id := batch.PutNode(cbor.Marshal(bad))
	require.NoError(batch.Commit(ctx), "Commit")

	_, err = Load(ctx, db, id)
	require.ErrorIs(err, ErrMalformedNode, "Load(malformed)")
}

func TestIndexAt(t *testing.T) {
	require := require.New(t)

	hk := make([]byte, 32)
	hk[0] = 0b10110_011
	hk[1] = 0b01_00000_0

	require.Equal(0b10110, indexAt(hk, 0))
	require.Equal(0b01101, indexAt(hk, 1))
	require.Equal(0, indexAt(hk, 2))
}
