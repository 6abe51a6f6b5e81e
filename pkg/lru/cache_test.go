package lru

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PushAndGet(t *testing.T) {
	cache := NewUnbounded[string, int]()

	_, _, displaced := cache.Push("a", 1)
	assert.False(t, displaced, "First insert should not displace anything")

	val, found := cache.Get("a")
	assert.True(t, found, "Should find a pushed key")
	assert.Equal(t, 1, val)

	_, found = cache.Get("missing")
	assert.False(t, found, "Should not find a key that was never pushed")
}

func TestCache_PushReplacesExistingKey(t *testing.T) {
	cache := NewUnbounded[string, int]()
	cache.Push("a", 1)

	oldKey, oldVal, displaced := cache.Push("a", 2)
	assert.True(t, displaced, "Replacing a key should report the displaced pair")
	assert.Equal(t, "a", oldKey, "The displaced key should be the replaced key itself")
	assert.Equal(t, 1, oldVal, "The displaced value should be the previous value")

	val, found := cache.Get("a")
	require.True(t, found)
	assert.Equal(t, 2, val, "The new value should be resident")
	assert.Equal(t, 1, cache.Len(), "Replacement should not grow the cache")
}

func TestCache_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	cache := New[string, int](1)
	cache.Push("x", 5)

	evictedKey, evictedVal, displaced := cache.Push("y", 7)
	assert.True(t, displaced, "A full cache should evict on insert")
	assert.Equal(t, "x", evictedKey)
	assert.Equal(t, 5, evictedVal)
	assert.False(t, cache.Contains("x"), "The evicted key should be gone")
	assert.True(t, cache.Contains("y"), "The inserted key should be resident")
	assert.Equal(t, 1, cache.Len())
}

func TestCache_GetPromotesRecency(t *testing.T) {
	cache := New[int, string](2)
	cache.Push(1, "one")
	cache.Push(2, "two")

	// Touch 1 so 2 becomes the coldest.
	_, found := cache.Get(1)
	require.True(t, found)

	evictedKey, _, displaced := cache.Push(3, "three")
	assert.True(t, displaced)
	assert.Equal(t, 2, evictedKey, "The untouched key should be the eviction victim")
	assert.True(t, cache.Contains(1), "The promoted key should survive")
}

func TestCache_PeekDoesNotPromote(t *testing.T) {
	cache := New[int, string](2)
	cache.Push(1, "one")
	cache.Push(2, "two")

	val, found := cache.Peek(1)
	require.True(t, found)
	assert.Equal(t, "one", val)

	evictedKey, _, displaced := cache.Push(3, "three")
	assert.True(t, displaced)
	assert.Equal(t, 1, evictedKey, "A peeked key should stay the coldest")
}

func TestCache_EpochStamping(t *testing.T) {
	cache := NewUnbounded[string, int]()
	cache.UpdateEpoch(10)
	cache.Push("a", 1)
	cache.UpdateEpoch(20)
	cache.Push("b", 2)

	// Entries stamped at or below the threshold pop coldest-first.
	key, val, popped := cache.PopLRUByEpoch(15)
	require.True(t, popped, "The entry stamped at epoch 10 should be droppable at threshold 15")
	assert.Equal(t, "a", key)
	assert.Equal(t, 1, val)

	_, _, popped = cache.PopLRUByEpoch(15)
	assert.False(t, popped, "The entry stamped at epoch 20 should survive threshold 15")
	assert.True(t, cache.Contains("b"))
}

func TestCache_GetRestampsWithCurrentEpoch(t *testing.T) {
	cache := NewUnbounded[string, int]()
	cache.UpdateEpoch(10)
	cache.Push("a", 1)
	cache.UpdateEpoch(20)

	// Reading under the newer epoch restamps the entry, so it outlives
	// thresholds that would have dropped the original stamp.
	_, found := cache.Get("a")
	require.True(t, found)
	_, _, popped := cache.PopLRUByEpoch(10)
	assert.False(t, popped, "A restamped entry should not be droppable at its old epoch")
}

func TestCache_PeekMutKeepsStamp(t *testing.T) {
	cache := NewUnbounded[string, int]()
	cache.UpdateEpoch(10)
	cache.Push("a", 1)
	cache.UpdateEpoch(20)

	valPtr, found := cache.PeekMut("a")
	require.True(t, found)
	*valPtr = 5

	key, val, popped := cache.PopLRUByEpoch(10)
	require.True(t, popped, "PeekMut should leave the original stamp in place")
	assert.Equal(t, "a", key)
	assert.Equal(t, 5, val, "The mutation should be visible in the popped value")
}

func TestCache_GetMutMutatesInPlace(t *testing.T) {
	cache := NewUnbounded[string, []int]()
	cache.Push("a", []int{1})

	valPtr, found := cache.GetMut("a")
	require.True(t, found)
	*valPtr = append(*valPtr, 2)

	val, found := cache.Get("a")
	require.True(t, found)
	assert.Equal(t, []int{1, 2}, val)
}

func TestCache_PopLRUByEpochOnEmptyCache(t *testing.T) {
	cache := NewUnbounded[string, int]()
	_, _, popped := cache.PopLRUByEpoch(100)
	assert.False(t, popped, "Popping from an empty cache should report nothing to drop")
}

func TestCache_EpochRegressionIsIgnored(t *testing.T) {
	cache := NewUnbounded[string, int]()
	cache.UpdateEpoch(20)
	cache.UpdateEpoch(10)
	assert.Equal(t, uint64(20), cache.CurrentEpoch(), "A lower epoch should not move the clock backwards")
}

func TestCache_Remove(t *testing.T) {
	cache := NewUnbounded[string, int]()
	cache.Push("a", 1)

	val, found := cache.Remove("a")
	assert.True(t, found)
	assert.Equal(t, 1, val)
	assert.Zero(t, cache.Len())

	_, found = cache.Remove("a")
	assert.False(t, found, "Removing an absent key should report not found")
}

func TestCache_Clear(t *testing.T) {
	for _, tc := range []struct {
		name  string
		cache *Cache[int, int]
	}{
		{name: "map index", cache: New[int, int](10)},
		{name: "hashed index", cache: NewWithHasher[int, int](10, DefaultHasher[int]())},
		{name: "hashed index with pool",
			cache: NewWithHasherIn[int, int](10, DefaultHasher[int](), NewPool[int, int]())},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for i := range 5 {
				tc.cache.Push(i, i)
			}
			tc.cache.UpdateEpoch(7)

			tc.cache.Clear()
			assert.Zero(t, tc.cache.Len())
			for i := range 5 {
				assert.False(t, tc.cache.Contains(i), "No key should survive a clear")
			}
			assert.Equal(t, uint64(7), tc.cache.CurrentEpoch(), "Clear should keep the local epoch")

			// The cache stays usable after clearing.
			tc.cache.Push(1, 10)
			val, found := tc.cache.Get(1)
			require.True(t, found)
			assert.Equal(t, 10, val)
			assert.Equal(t, 1, tc.cache.Len())
		})
	}
}

func TestCache_EntriesIterateMostRecentFirst(t *testing.T) {
	cache := NewUnbounded[string, int]()
	cache.Push("a", 1)
	cache.Push("b", 2)
	cache.Push("c", 3)
	cache.Get("a") // Promote a to the hot end.

	var keys []string
	for key := range cache.Entries() {
		keys = append(keys, key)
	}
	assert.Equal(t, []string{"a", "c", "b"}, keys, "Iteration should run from hottest to coldest")
}

func TestCache_EntriesEarlyBreak(t *testing.T) {
	cache := NewUnbounded[int, int]()
	for i := range 10 {
		cache.Push(i, i)
	}

	count := 0
	for range cache.Entries() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestCache_WithHasherBehavesLikeDefault(t *testing.T) {
	cache := NewWithHasher[string, int](2, DefaultHasher[string]())
	cache.Push("a", 1)
	cache.Push("b", 2)
	cache.Get("a")

	evictedKey, _, displaced := cache.Push("c", 3)
	require.True(t, displaced)
	assert.Equal(t, "b", evictedKey)

	val, found := cache.Get("a")
	require.True(t, found)
	assert.Equal(t, 1, val)
	assert.Equal(t, 2, cache.Len())
}

func TestCache_WithHasherCollisions(t *testing.T) {
	// A constant hash forces every key into one bucket, so lookups must fall
	// back to key comparison.
	collide := func(string) uint64 { return 42 }
	cache := NewWithHasher[string, int](0 /*unbounded*/, Hasher[string](collide))
	cache.Push("a", 1)
	cache.Push("b", 2)
	cache.Push("c", 3)

	val, found := cache.Get("b")
	require.True(t, found)
	assert.Equal(t, 2, val)

	removed, found := cache.Remove("a")
	require.True(t, found)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, cache.Len())
	assert.True(t, cache.Contains("c"))
}

func TestCache_WithPoolRecyclesEntries(t *testing.T) {
	pool := NewPool[int, int]()
	cache := NewWithHasherIn[int, int](0 /*unbounded*/, DefaultHasher[int](), pool)
	for i := range 100 {
		cache.Push(i, i)
	}
	cache.UpdateEpoch(1)
	for {
		if _, _, popped := cache.PopLRUByEpoch(0); !popped {
			break
		}
	}
	require.Zero(t, cache.Len())

	// Reinsert through the same pool; values must not leak between rounds.
	for i := range 100 {
		cache.Push(i, i*10)
	}
	for i := range 100 {
		val, found := cache.Get(i)
		require.True(t, found)
		require.Equal(t, i*10, val)
	}
}

func TestDefaultHasher_DistinguishesKeys(t *testing.T) {
	stringHash := DefaultHasher[string]()
	assert.NotEqual(t, stringHash("a"), stringHash("b"))
	assert.Equal(t, stringHash("a"), stringHash("a"))

	intHash := DefaultHasher[int]()
	assert.NotEqual(t, intHash(1), intHash(2))

	type composite struct{ A, B int }
	compositeHash := DefaultHasher[composite]()
	assert.NotEqual(t, compositeHash(composite{1, 2}), compositeHash(composite{2, 1}))
	assert.Equal(t, compositeHash(composite{1, 2}), compositeHash(composite{1, 2}))
}

func TestEntryList_Order(t *testing.T) {
	list := newEntryList[string, int]()
	assert.Zero(t, list.len())
	assert.Nil(t, list.front())
	assert.Nil(t, list.back())

	first := &entry[string, int]{key: "first"}
	second := &entry[string, int]{key: "second"}
	list.pushBack(first)
	list.pushBack(second)
	assert.Equal(t, "first", list.front().key, "The oldest entry should sit at the cold end")
	assert.Equal(t, "second", list.back().key)

	list.moveToBack(first)
	assert.Equal(t, "second", list.front().key, "Promotion should reorder the list")
	assert.Equal(t, "first", list.back().key)

	list.remove(second)
	assert.Equal(t, 1, list.len())
	assert.Equal(t, "first", list.front().key)
	assert.Equal(t, "first", list.back().key)

	var keys []string
	for e := range list.descend() {
		keys = append(keys, e.key)
	}
	assert.Equal(t, []string{"first"}, keys)
}

func TestCache_StampsNonDecreasingTowardsHotEnd(t *testing.T) {
	cache := NewUnbounded[int, int]()
	for i := range 20 {
		cache.UpdateEpoch(uint64(i))
		cache.Push(i, i)
	}
	// Promote a few old keys under the newest epoch.
	cache.Get(3)
	cache.Get(7)

	var stamps []uint64
	for e := range cache.list.descend() {
		stamps = append(stamps, e.epoch)
	}
	slices.Reverse(stamps) // Cold end first.
	assert.True(t, slices.IsSorted(stamps), "Stamps should be non-decreasing from cold to hot: %v", stamps)
}
