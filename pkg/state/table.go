package state

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/maurofama99/risingwave/pkg/cache"
	"github.com/maurofama99/risingwave/pkg/epoch"
	"github.com/maurofama99/risingwave/pkg/metrics"
)

var (
	rowCacheDisabled = flag.Bool("row_cache_disabled", false,
		"Serve every table read from the store directly, keeping no rows resident.")
	tableBloomKeys = flag.Uint("table_bloom_keys", 100_000,
		"Expected number of distinct keys per table, used to size the negative-lookup filter.")
	tableBloomFpRate = flag.Float64("table_bloom_fp_rate", 0.01,
		"Target false positive rate of the negative-lookup filter.")
)

// Table is one partition's keyed state: a managed row cache in front of a
// durable Store. Reads are served from the cache when possible; writes go to
// the store first and only then update the cache, so the cache never holds a
// row the store does not.
//
// A bloom filter over all keys ever written lets reads of unknown keys return
// without touching the store. The filter has no false negatives, so it only
// ever suppresses reads that would have missed anyway.
//
// Like the cache under it, a Table belongs to a single goroutine. The Store
// behind it may be shared.
type Table struct {
	info   metrics.Info
	store  Store
	cache  rowCache
	filter *bloom.BloomFilter
	prefix []byte
}

// NewTable builds the state table identified by (tableID, actorID) on top of
// store. Rows are namespaced in the store under the table id, so tables can
// share one Store without seeing each other's keys.
func NewTable(tableID uint32, actorID uint32, desc string, watermark *epoch.Watermark, store Store) *Table {
	info := metrics.NewInfo(tableID, actorID, desc)
	var rows rowCache = &noopRowCache{}
	if !*rowCacheDisabled {
		rows = cache.NewUnbounded[cache.String, *Row](watermark, info)
	}
	return &Table{
		info:   info,
		store:  store,
		cache:  rows,
		filter: bloom.NewWithEstimates(*tableBloomKeys, *tableBloomFpRate),
		prefix: binary.BigEndian.AppendUint32(nil, tableID),
	}
}

// storeKey namespaces key under this table: 4-byte big-endian table id
// followed by the key bytes.
func (t *Table) storeKey(key string) []byte {
	buf := make([]byte, 0, len(t.prefix)+len(key))
	buf = append(buf, t.prefix...)
	return append(buf, key...)
}

// BeginEpoch starts processing epoch e. Rows written from now on are stamped
// with e, and Evict keeps them resident until the epoch is sealed.
func (t *Table) BeginEpoch(e epoch.Epoch) {
	t.cache.UpdateEpoch(e)
}

// Get returns the payload stored under key, or ErrKeyNotFound if the key was
// never written or its latest row is a tombstone. Store rows loaded on a miss
// are cached, tombstones included.
func (t *Table) Get(ctx context.Context, key string) ([]byte, error) {
	if row, found := t.cache.Get(cache.String(key)); found {
		if row.Deleted {
			return nil, ErrKeyNotFound
		}
		return row.Payload, nil
	}
	if !t.filter.Test([]byte(key)) {
		// No false negatives: the key was never written to this table.
		return nil, ErrKeyNotFound
	}
	packed, err := t.store.Get(ctx, t.storeKey(key))
	if err != nil {
		return nil, err
	}
	row, err := unpackRow(packed)
	if err != nil {
		return nil, fmt.Errorf("table %v: failed to unpack row %q: %w", t.info, key, err)
	}
	t.cache.Put(cache.String(key), row)
	if row.Deleted {
		return nil, ErrKeyNotFound
	}
	return row.Payload, nil
}

// Put writes payload under key, through to the store and into the cache.
func (t *Table) Put(ctx context.Context, key string, payload []byte) error {
	row := &Row{Payload: payload, Epoch: t.cache.CurrentEpoch()}
	if err := t.store.Put(ctx, t.storeKey(key), packRow(row)); err != nil {
		return err
	}
	t.cache.Put(cache.String(key), row)
	t.filter.Add([]byte(key))
	return nil
}

// Delete writes a tombstone for key. The filter is left as is; it may keep
// answering "written" for deleted keys, which costs one store read and
// nothing else.
func (t *Table) Delete(ctx context.Context, key string) error {
	row := &Row{Deleted: true, Epoch: t.cache.CurrentEpoch()}
	if err := t.store.Put(ctx, t.storeKey(key), packRow(row)); err != nil {
		return err
	}
	t.cache.Put(cache.String(key), row)
	return nil
}

// Truncate drops every row of this table from the store and the cache,
// tombstones included.
func (t *Table) Truncate(ctx context.Context) error {
	rows, err := t.store.ScanPrefix(ctx, t.prefix)
	if err != nil {
		return err
	}
	for storeKey := range rows {
		if err := t.store.Delete(ctx, storeKey); err != nil {
			return err
		}
		t.cache.Remove(cache.String(storeKey[len(t.prefix):]))
	}
	return nil
}

// Evict releases rows of sealed epochs up to the shared watermark. Rows of
// the epoch currently being processed stay resident regardless.
func (t *Table) Evict() {
	t.cache.EvictExceptCurrentEpoch()
}

// CachedRows returns the number of resident rows, tombstones included.
func (t *Table) CachedRows() int {
	return t.cache.Len()
}

// CachedBytes returns the accounted heap size of the resident rows.
func (t *Table) CachedBytes() uint64 {
	return t.cache.HeapSize()
}

// Close releases the cache and resets its memory gauge. The store is left
// untouched; it usually outlives the table.
func (t *Table) Close() {
	t.cache.Close()
}
