// Stateful operators keep their hot state in managed caches: epoch-stamped
// LRU stores wrapped with exact memory accounting. Residency is not bounded
// by entry count but by the shared eviction watermark; once per barrier the
// owning operator calls Evict, which drops everything last touched at or
// below the watermark and leaves fresher entries alone. The running byte
// total of resident keys and values is tracked on every operation and
// reported to monitoring with throttling, since accounting changes happen on
// the access hot path.
//
// Like the underlying store, a Managed cache belongs to a single operator
// goroutine. The watermark is the only shared state, and it is read with a
// single atomic load.

package cache

import (
	"iter"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/maurofama99/risingwave/pkg/epoch"
	"github.com/maurofama99/risingwave/pkg/lru"
	"github.com/maurofama99/risingwave/pkg/metrics"
)

// reportEveryBytesChanged throttles gauge updates: the resident size gauge is
// rewritten only once the total has drifted more than 4096 KiB from the last
// reported value.
const reportEveryBytesChanged = 4096 << 10

// accounting tracks the exact resident byte total and its throttled gauge.
// It is value-type free so mutation guards can borrow it without carrying the
// cache's type parameters.
type accounting struct {
	heapSize     uint64
	lastReported uint64
	usage        prometheus.Gauge
}

func (a *accounting) add(n uint64) {
	a.heapSize = saturatingAdd(a.heapSize, n)
}

func (a *accounting) sub(n uint64) {
	a.heapSize = saturatingSub(a.heapSize, n)
}

// reconcile folds a guarded value's cost change into the total and reports.
func (a *accounting) reconcile(oldCost, newCost uint64) {
	if oldCost == newCost {
		return
	}
	a.heapSize = saturatingAdd(saturatingSub(a.heapSize, oldCost), newCost)
	a.maybeReport()
}

// maybeReport pushes the total to the gauge once drift exceeds the reporting
// threshold. Every public cache operation that changes accounting ends with
// one call, so the gauge never lags the truth by more than the threshold.
func (a *accounting) maybeReport() bool {
	drift := a.heapSize - a.lastReported
	if a.heapSize < a.lastReported {
		drift = a.lastReported - a.heapSize
	}
	if drift <= reportEveryBytesChanged {
		return false
	}
	a.usage.Set(float64(a.heapSize))
	a.lastReported = a.heapSize
	return true
}

// Managed is an epoch-bounded, memory-accounted LRU cache for one operator
// partition.
type Managed[K Key, V Sizable] struct {
	store            *lru.Cache[K, V]
	watermark        *epoch.Watermark
	acct             accounting
	evictedWatermark prometheus.Gauge
	evictedEntries   prometheus.Counter
}

func newManaged[K Key, V Sizable](watermark *epoch.Watermark, info metrics.Info,
	store *lru.Cache[K, V]) *Managed[K, V] {
	c := &Managed[K, V]{
		store:            store,
		watermark:        watermark,
		acct:             accounting{usage: info.MemoryUsageGauge()},
		evictedWatermark: info.EvictedWatermarkGauge(),
		evictedEntries:   info.EvictedEntriesCounter(),
	}
	// Publish the series right away so dashboards see the cache exists.
	c.acct.usage.Set(0)
	return c
}

// NewUnbounded returns a cache without a capacity limit; residency is
// controlled purely by watermark eviction. This is the default shape.
func NewUnbounded[K Key, V Sizable](watermark *epoch.Watermark, info metrics.Info) *Managed[K, V] {
	return newManaged(watermark, info, lru.NewUnbounded[K, V]())
}

// NewBounded additionally enforces a maximum entry count: pushing into a full
// cache drops the least-recently-used entry regardless of its stamp.
func NewBounded[K Key, V Sizable](watermark *epoch.Watermark, info metrics.Info,
	capacity int) *Managed[K, V] {
	return newManaged(watermark, info, lru.New[K, V](capacity))
}

// NewUnboundedWithHasher is like NewUnbounded with a caller-chosen key hash.
func NewUnboundedWithHasher[K Key, V Sizable](watermark *epoch.Watermark, info metrics.Info,
	hash lru.Hasher[K]) *Managed[K, V] {
	return newManaged(watermark, info, lru.NewWithHasher[K, V](0, hash))
}

// NewUnboundedWithHasherIn is like NewUnboundedWithHasher, recycling entry
// nodes through a shared pool.
func NewUnboundedWithHasherIn[K Key, V Sizable](watermark *epoch.Watermark, info metrics.Info,
	hash lru.Hasher[K], pool *lru.Pool[K, V]) *Managed[K, V] {
	return newManaged(watermark, info, lru.NewWithHasherIn[K, V](0, hash, pool))
}

// UpdateEpoch advances the local epoch stamped onto new and promoted entries.
// The owner must call it whenever the surrounding dataflow epoch advances.
func (c *Managed[K, V]) UpdateEpoch(e epoch.Epoch) {
	c.store.UpdateEpoch(uint64(e))
}

// CurrentEpoch returns the local epoch.
func (c *Managed[K, V]) CurrentEpoch() epoch.Epoch {
	return epoch.Epoch(c.store.CurrentEpoch())
}

// Put inserts or replaces the value for key and returns the replaced value,
// if any. On a bounded cache the insert may instead displace the coldest
// entry; that pair is accounted and counted as evicted but not returned.
func (c *Managed[K, V]) Put(key K, value V) (V, bool /*replaced*/) {
	c.acct.add(costOf(key, value))
	oldKey, oldValue, displaced := c.store.Push(key, value)
	if displaced {
		c.acct.sub(costOf(oldKey, oldValue))
	}
	c.acct.maybeReport()
	if displaced && oldKey == key {
		return oldValue, true
	}
	if displaced {
		c.evictedEntries.Inc()
	}
	var zero V
	return zero, false
}

// Push is like Put but surfaces the displaced pair itself: on replacement the
// key with its previous value, on a capacity eviction the dropped coldest
// pair. Note the capacity valve ignores stamps, so unlike watermark eviction
// it can drop an entry written in the in-flight epoch.
func (c *Managed[K, V]) Push(key K, value V) (K, V, bool /*displaced*/) {
	c.acct.add(costOf(key, value))
	oldKey, oldValue, displaced := c.store.Push(key, value)
	if displaced {
		c.acct.sub(costOf(oldKey, oldValue))
		if oldKey != key {
			c.evictedEntries.Inc()
		}
	}
	c.acct.maybeReport()
	return oldKey, oldValue, displaced
}

// Get returns the value for key, promoting it to most recently used and
// restamping it with the local epoch.
func (c *Managed[K, V]) Get(key K) (V, bool /*found*/) {
	return c.store.Get(key)
}

// GetMut promotes the entry like Get and returns a guard for in-place
// mutation. The caller must release the guard; defer it at acquisition.
func (c *Managed[K, V]) GetMut(key K) (*MutGuard[V], bool /*found*/) {
	value, found := c.store.GetMut(key)
	if !found {
		return nil, false
	}
	return newMutGuard(value, &c.acct), true
}

// Peek returns the value for key without touching recency or stamp.
func (c *Managed[K, V]) Peek(key K) (V, bool /*found*/) {
	return c.store.Peek(key)
}

// PeekMut returns a mutation guard without touching recency or stamp, so the
// entry stays exactly as evictable as before.
func (c *Managed[K, V]) PeekMut(key K) (*MutGuard[V], bool /*found*/) {
	value, found := c.store.PeekMut(key)
	if !found {
		return nil, false
	}
	return newMutGuard(value, &c.acct), true
}

// Contains reports whether key is resident, without touching recency.
func (c *Managed[K, V]) Contains(key K) bool {
	return c.store.Contains(key)
}

// Remove drops the entry for key and returns its value.
func (c *Managed[K, V]) Remove(key K) (V, bool /*found*/) {
	value, found := c.store.Remove(key)
	if !found {
		var zero V
		return zero, false
	}
	c.acct.sub(costOf(key, value))
	c.acct.maybeReport()
	return value, true
}

// Len returns the number of resident entries.
func (c *Managed[K, V]) Len() int {
	return c.store.Len()
}

// IsEmpty reports whether no entries are resident.
func (c *Managed[K, V]) IsEmpty() bool {
	return c.store.Len() == 0
}

// HeapSize returns the tracked resident byte total.
func (c *Managed[K, V]) HeapSize() uint64 {
	return c.acct.heapSize
}

// Clear drops every entry and zeroes the running size exactly.
func (c *Managed[K, V]) Clear() {
	c.store.Clear()
	c.acct.heapSize = 0
	c.acct.maybeReport()
}

// Values iterates resident values from most to least recently used. The
// cache must not be mutated during iteration.
func (c *Managed[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, value := range c.store.Entries() {
			if !yield(value) {
				return
			}
		}
	}
}

// Entries iterates resident pairs from most to least recently used.
func (c *Managed[K, V]) Entries() iter.Seq2[K, V] {
	return c.store.Entries()
}

// Evict drops every entry stamped at or below the shared watermark, coldest
// first, stopping at the first fresher entry. Promotion restamps with the
// newest epoch, so stamps grow towards the hot end and the scan's cost is
// bounded by the number of entries actually dropped.
func (c *Managed[K, V]) Evict() {
	threshold := c.watermark.Load()
	c.evictStale(uint64(threshold))
	c.reportEvictedWatermark(threshold)
}

// EvictExceptCurrentEpoch is like Evict but never drops entries stamped with
// the in-flight local epoch, even when the watermark has already passed it.
// Operators use it mid-barrier to free memory without cannibalizing state
// they are still producing.
func (c *Managed[K, V]) EvictExceptCurrentEpoch() {
	threshold := min(c.watermark.Load(), c.CurrentEpoch())
	if threshold > 0 {
		c.evictStale(uint64(threshold) - 1)
	}
	c.reportEvictedWatermark(threshold)
}

func (c *Managed[K, V]) evictStale(threshold uint64) {
	for {
		key, value, popped := c.store.PopLRUByEpoch(threshold)
		if !popped {
			break
		}
		c.acct.sub(costOf(key, value))
		c.evictedEntries.Inc()
	}
	c.acct.maybeReport()
}

// reportEvictedWatermark records the eviction threshold as physical time,
// unconditionally, so operators can see how stale their surviving state is
// allowed to be.
func (c *Managed[K, V]) reportEvictedWatermark(threshold epoch.Epoch) {
	c.evictedWatermark.Set(float64(threshold.PhysicalMillis()))
}

// Close tears the cache down: entries are dropped and the size gauge is
// reset to zero so a destroyed partition never leaves a stale series behind.
func (c *Managed[K, V]) Close() {
	c.store.Clear()
	c.acct.heapSize = 0
	c.acct.lastReported = 0
	c.acct.usage.Set(0)
}
