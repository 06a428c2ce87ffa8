// Package lru implements a size-bounded Least-Recently-Used cache.
package lru

import (
	"container/list"
	"errors"
	"sync"
)

// ErrTooLarge is the error returned when a value is larger than the whole
// cache.
var ErrTooLarge = errors.New("lru: value size exceeds maximum capacity")

// SizeFunc returns the size of a value in capacity units.
type SizeFunc[V any] func(V) uint64

// Cache is an LRU cache. The zero capacity means unbounded.
type Cache[K comparable, V any] struct {
	sync.Mutex

	order   *list.List
	entries map[K]*list.Element

	sizeOf  SizeFunc[V]
	onEvict func(K, V)

	capacity uint64
	size     uint64
}

type entry[K comparable, V any] struct {
	key   K
	value V
	size  uint64
}

// Put inserts or replaces the value for key and marks it most recently
// used. Replacing a value does not invoke the eviction callback.
func (c *Cache[K, V]) Put(key K, value V) error {
	c.Lock()
	defer c.Unlock()

	sz := c.sizeOf(value)
	if c.capacity > 0 && sz > c.capacity {
		return ErrTooLarge
	}

	if elem, ok := c.entries[key]; ok {
		c.unlinkLocked(elem)
	}
	for c.capacity > 0 && c.order.Len() > 0 && c.size+sz > c.capacity {
		ent := c.unlinkLocked(c.order.Back())
		if c.onEvict != nil {
			c.onEvict(ent.key, ent.value)
		}
	}

	c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, size: sz})
	c.size += sz

	return nil
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.Lock()
	defer c.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)

	return elem.Value.(*entry[K, V]).value, true
}

// Remove drops key and reports whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.Lock()
	defer c.Unlock()

	elem, ok := c.entries[key]
	if ok {
		c.unlinkLocked(elem)
	}
	return ok
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.Lock()
	defer c.Unlock()

	return c.order.Len()
}

// Size returns the sum of the entry sizes.
func (c *Cache[K, V]) Size() uint64 {
	c.Lock()
	defer c.Unlock()

	return c.size
}

// Clear drops all entries.
func (c *Cache[K, V]) Clear() {
	c.Lock()
	defer c.Unlock()

	c.order.Init()
	c.entries = make(map[K]*list.Element)
	c.size = 0
}

func (c *Cache[K, V]) unlinkLocked(elem *list.Element) *entry[K, V] {
	ent := c.order.Remove(elem).(*entry[K, V])
	delete(c.entries, ent.key)
	c.size -= ent.size
	return ent
}

// Option configures a new cache.
type Option[K comparable, V any] func(*Cache[K, V])

// Capacity bounds the cache. Without a SizeFunc the capacity counts entries.
func Capacity[K comparable, V any](capacity uint64) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.capacity = capacity
	}
}

// Sized measures values with fn instead of counting entries.
func Sized[K comparable, V any](fn SizeFunc[V]) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.sizeOf = fn
	}
}

// OnEvict sets a callback invoked for every evicted entry. The callback
// must not call back into the cache.
func OnEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.onEvict = fn
	}
}

// New creates a new cache.
func New[K comparable, V any](options ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		order:   list.New(),
		entries: make(map[K]*list.Element),
		sizeOf:  func(V) uint64 { return 1 },
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}
