package lru

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryCapacity(t *testing.T) {
	require := require.New(t)

	var evicted []string
	cache := New(
		Capacity[string, int](2),
		OnEvict(func(key string, _ int) {
			evicted = append(evicted, key)
		}),
	)

	require.NoError(cache.Put("a", 1))
	require.NoError(cache.Put("b", 2))
	v, ok := cache.Get("a")
	require.True(ok)
	require.Equal(1, v)

	// "b" is now the least recently used entry.
	require.NoError(cache.Put("c", 3))
	require.Equal([]string{"b"}, evicted)
	require.Equal(2, cache.Len())

	_, ok = cache.Get("b")
	require.False(ok)

	require.True(cache.Remove("a"))
	require.False(cache.Remove("a"))
	require.EqualValues(1, cache.Size())

	cache.Clear()
	require.Equal(0, cache.Len())
	require.EqualValues(0, cache.Size())
}

func TestSizedCapacity(t *testing.T) {
	require := require.New(t)

	cache := New(
		Capacity[string, []byte](8),
		Sized[string, []byte](func(b []byte) uint64 { return uint64(len(b)) }),
	)

	require.NoError(cache.Put("a", []byte("1234")))
	require.NoError(cache.Put("b", []byte("5678")))
	require.EqualValues(8, cache.Size())

	require.NoError(cache.Put("c", []byte("90")))
	_, ok := cache.Get("a")
	require.False(ok, "oldest entry evicted to make room")
	require.EqualValues(6, cache.Size())

	require.ErrorIs(cache.Put("d", []byte("too large value")), ErrTooLarge)
	require.Equal(2, cache.Len(), "rejected value must not evict")

	// Replacing a value updates the size.
	require.NoError(cache.Put("c", []byte("9")))
	require.EqualValues(5, cache.Size())
}

func TestUnbounded(t *testing.T) {
	require := require.New(t)

	cache := New[int, int]()
	for i := 0; i < 1000; i++ {
		require.NoError(cache.Put(i, i))
	}
	require.Equal(1000, cache.Len())
}
