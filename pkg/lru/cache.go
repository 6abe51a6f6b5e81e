// Streaming operators keep their working state in epoch-stamped LRU caches.
// Every entry remembers the local epoch it was last written or read under, so
// eviction can drop exactly the entries that predate a given barrier instead
// of guessing from wall-clock age or a fixed capacity. The recency list keeps
// a useful property for that: stamps are non-decreasing from the cold end to
// the hot end, because promotions always restamp with the newest epoch. One
// stamped-too-new entry at the cold end therefore proves the whole cache is
// too new to evict.
//
// A Cache is owned by a single operator goroutine and is not safe for
// concurrent use. Cross-goroutine coordination happens through the shared
// eviction watermark, not through the cache itself.

package lru

import (
	"iter"

	"github.com/maurofama99/risingwave/pkg/utils"
)

// Cache is an epoch-stamped LRU store. A zero capacity means unbounded, which
// is the common case: residency is then controlled purely by epoch-driven
// eviction.
type Cache[K comparable, V any] struct {
	capacity int    // Maximum number of entries; 0 means unbounded.
	epoch    uint64 // The local epoch new and promoted entries are stamped with.
	list     *entryList[K, V]
	index    keyIndex[K, V]
	pool     *Pool[K, V] // Optional entry recycler; nil allocates from the heap.
}

// New returns a bounded cache evicting its least-recently-used entry once more
// than capacity entries are pushed. A non-positive capacity means unbounded.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 0 {
		utils.RaiseInvariant("lru", "negative_capacity",
			"Got a negative cache capacity, treating it as unbounded.", "capacity", capacity)
		capacity = 0
	}
	return &Cache[K, V]{capacity: capacity, list: newEntryList[K, V](), index: newMapIndex[K, V]()}
}

// NewUnbounded returns a cache with no capacity limit.
func NewUnbounded[K comparable, V any]() *Cache[K, V] {
	return New[K, V](0)
}

// NewWithHasher is like New but indexes keys through the given hash function
// instead of the builtin map.
func NewWithHasher[K comparable, V any](capacity int, hash Hasher[K]) *Cache[K, V] {
	c := New[K, V](capacity)
	c.index = newHashedIndex[K, V](hash)
	return c
}

// NewWithHasherIn is like NewWithHasher but recycles entry nodes through the
// given pool, which may be shared between caches.
func NewWithHasherIn[K comparable, V any](capacity int, hash Hasher[K], pool *Pool[K, V]) *Cache[K, V] {
	c := NewWithHasher[K, V](capacity, hash)
	c.pool = pool
	return c
}

func (c *Cache[K, V]) allocEntry() *entry[K, V] {
	if c.pool != nil {
		return c.pool.get()
	}
	return new(entry[K, V])
}

func (c *Cache[K, V]) freeEntry(e *entry[K, V]) {
	if c.pool != nil {
		c.pool.put(e)
	}
}

// UpdateEpoch sets the local epoch used to stamp entries from now on. Epochs
// only move forward; a regression is ignored after raising an invariant.
func (c *Cache[K, V]) UpdateEpoch(e uint64) {
	if e < c.epoch {
		utils.RaiseInvariant("lru", "epoch_regression",
			"Refusing to move the local epoch backwards.", "current", c.epoch, "got", e)
		return
	}
	c.epoch = e
}

// CurrentEpoch returns the epoch entries are currently stamped with.
func (c *Cache[K, V]) CurrentEpoch() uint64 {
	return c.epoch
}

// Push inserts or replaces the value for key, stamping the entry with the
// current epoch and making it the most recently used. It returns the displaced
// pair: on replacement that is key itself with its previous value, and on a
// capacity eviction it is the dropped least-recently-used pair.
func (c *Cache[K, V]) Push(key K, value V) (K, V, bool) {
	if e, found := c.index.get(key); found {
		oldValue := e.value
		e.value = value
		e.epoch = c.epoch
		c.list.moveToBack(e)
		return key, oldValue, true
	}

	e := c.allocEntry()
	e.key, e.value, e.epoch = key, value, c.epoch
	c.list.pushBack(e)
	c.index.put(e)
	if c.capacity > 0 && c.list.len() > c.capacity {
		return c.popColdest()
	}
	var zeroK K
	var zeroV V
	return zeroK, zeroV, false
}

// Get returns the value for key, promoting the entry to most recently used
// and restamping it with the current epoch.
func (c *Cache[K, V]) Get(key K) (V, bool /*found*/) {
	e, found := c.index.get(key)
	if !found {
		var zero V
		return zero, false
	}
	e.epoch = c.epoch
	c.list.moveToBack(e)
	return e.value, true
}

// GetMut is like Get but returns a pointer for in-place mutation. The pointer
// stays valid only until the next mutating cache operation.
func (c *Cache[K, V]) GetMut(key K) (*V, bool /*found*/) {
	e, found := c.index.get(key)
	if !found {
		return nil, false
	}
	e.epoch = c.epoch
	c.list.moveToBack(e)
	return &e.value, true
}

// Peek returns the value for key without promoting or restamping the entry.
func (c *Cache[K, V]) Peek(key K) (V, bool /*found*/) {
	e, found := c.index.get(key)
	if !found {
		var zero V
		return zero, false
	}
	return e.value, true
}

// PeekMut is like Peek but returns a pointer for in-place mutation. Recency
// and stamp stay untouched, so a peeked entry remains evictable.
func (c *Cache[K, V]) PeekMut(key K) (*V, bool /*found*/) {
	e, found := c.index.get(key)
	if !found {
		return nil, false
	}
	return &e.value, true
}

// Contains reports whether key is resident, without touching recency.
func (c *Cache[K, V]) Contains(key K) bool {
	_, found := c.index.get(key)
	return found
}

// Remove drops the entry for key and returns its value.
func (c *Cache[K, V]) Remove(key K) (V, bool /*found*/) {
	e, found := c.index.get(key)
	if !found {
		var zero V
		return zero, false
	}
	c.list.remove(e)
	c.index.delete(key)
	value := e.value
	c.freeEntry(e)
	return value, true
}

// PopLRUByEpoch drops and returns the least-recently-used entry if its stamp
// is at or below threshold. It returns false either when the cache is empty or
// when the coldest entry is stamped above the threshold; since stamps grow
// towards the hot end, the latter means no entry at all is droppable.
func (c *Cache[K, V]) PopLRUByEpoch(threshold uint64) (K, V, bool) {
	victim := c.list.front()
	if victim == nil || victim.epoch > threshold {
		var zeroK K
		var zeroV V
		return zeroK, zeroV, false
	}
	return c.popColdest()
}

// popColdest unconditionally drops the least-recently-used entry.
func (c *Cache[K, V]) popColdest() (K, V, bool) {
	victim := c.list.front()
	if victim == nil {
		var zeroK K
		var zeroV V
		return zeroK, zeroV, false
	}
	c.list.remove(victim)
	c.index.delete(victim.key)
	key, value := victim.key, victim.value
	c.freeEntry(victim)
	return key, value, true
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	return c.list.len()
}

// Cap returns the capacity, with 0 meaning unbounded.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// Clear drops every entry, resetting the index in one sweep instead of
// deleting key by key. The local epoch is kept.
func (c *Cache[K, V]) Clear() {
	for e := c.list.front(); e != nil; e = c.list.front() {
		c.list.remove(e)
		c.freeEntry(e)
	}
	c.index.clear()
}

// Entries iterates resident pairs from most to least recently used. The cache
// must not be mutated during iteration.
func (c *Cache[K, V]) Entries() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for e := range c.list.descend() {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}
