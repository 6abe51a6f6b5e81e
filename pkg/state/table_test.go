package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maurofama99/risingwave/pkg/epoch"
	"github.com/maurofama99/risingwave/pkg/utils"
)

// countingStore wraps a Store and counts the point reads that reach it, so
// tests can tell cache hits from read-throughs.
type countingStore struct {
	Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	c.gets++
	return c.Store.Get(ctx, key)
}

func newTestTable(t *testing.T) (*Table, *countingStore, *epoch.Watermark) {
	t.Helper()
	store := &countingStore{Store: NewMemStore()}
	watermark := epoch.NewWatermark(0)
	table := NewTable(1 /*tableID*/, 1 /*actorID*/, t.Name(), watermark, store)
	t.Cleanup(table.Close)
	return table, store, watermark
}

func TestTable_PutThenGetServedFromCache(t *testing.T) {
	table, store, _ := newTestTable(t)
	ctx := context.Background()
	table.BeginEpoch(epoch.FromPhysicalMillis(10))

	require.NoError(t, table.Put(ctx, "k", []byte("v")))
	for i := 0; i < 3; i++ {
		got, err := table.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	}
	assert.Zero(t, store.gets, "Writes fill the cache, so reads must not hit the store.")
}

func TestTable_ReadThroughRefillsEvictedRows(t *testing.T) {
	table, store, watermark := newTestTable(t)
	ctx := context.Background()

	table.BeginEpoch(epoch.FromPhysicalMillis(10))
	require.NoError(t, table.Put(ctx, "k", []byte("v")))

	// Seal the epoch and let the watermark pass it: the row gets dropped.
	table.BeginEpoch(epoch.FromPhysicalMillis(20))
	watermark.Advance(epoch.FromPhysicalMillis(15))
	table.Evict()
	require.Equal(t, 0, table.CachedRows())

	got, err := table.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got, "Evicted state must refill from the store.")
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, 1, table.CachedRows())

	// The refilled row is resident again.
	_, err = table.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)
}

func TestTable_BloomShortCircuitsNeverWrittenKeys(t *testing.T) {
	table, store, _ := newTestTable(t)
	ctx := context.Background()

	_, err := table.Get(ctx, "never-written")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Zero(t, store.gets, "Unknown keys must be answered by the filter alone.")
}

func TestTable_DeleteServesTombstoneFromCache(t *testing.T) {
	table, store, _ := newTestTable(t)
	ctx := context.Background()
	table.BeginEpoch(epoch.FromPhysicalMillis(10))

	require.NoError(t, table.Put(ctx, "k", []byte("v")))
	require.NoError(t, table.Delete(ctx, "k"))

	_, err := table.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Zero(t, store.gets, "The cached tombstone must answer reads of the deleted key.")
	assert.Equal(t, 1, table.CachedRows())
}

func TestTable_TombstoneSurvivesEviction(t *testing.T) {
	table, store, watermark := newTestTable(t)
	ctx := context.Background()

	table.BeginEpoch(epoch.FromPhysicalMillis(10))
	require.NoError(t, table.Put(ctx, "k", []byte("v")))
	require.NoError(t, table.Delete(ctx, "k"))

	table.BeginEpoch(epoch.FromPhysicalMillis(20))
	watermark.Advance(epoch.FromPhysicalMillis(15))
	table.Evict()
	require.Equal(t, 0, table.CachedRows())

	// The tombstone comes back from the store and is cached again.
	_, err := table.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, 1, store.gets)

	_, err = table.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, 1, store.gets)
}

func TestTable_EvictSparesCurrentEpochRows(t *testing.T) {
	table, store, watermark := newTestTable(t)
	ctx := context.Background()

	table.BeginEpoch(epoch.FromPhysicalMillis(10))
	require.NoError(t, table.Put(ctx, "old", []byte("sealed")))
	table.BeginEpoch(epoch.FromPhysicalMillis(20))
	require.NoError(t, table.Put(ctx, "fresh", []byte("in-flight")))

	// Even with the watermark past everything, the current epoch's rows stay.
	watermark.Advance(epoch.FromPhysicalMillis(25))
	table.Evict()
	assert.Equal(t, 1, table.CachedRows())

	got, err := table.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, []byte("in-flight"), got)
	assert.Zero(t, store.gets)
}

func TestTable_CorruptRowSurfacesError(t *testing.T) {
	table, store, watermark := newTestTable(t)
	ctx := context.Background()
	table.BeginEpoch(epoch.FromPhysicalMillis(10))

	require.NoError(t, table.Put(ctx, "bad", []byte("fine")))
	// Corrupt the stored row behind the table's back, then force a read-through.
	require.NoError(t, store.Put(ctx, table.storeKey("bad"), []byte{0}))
	table.BeginEpoch(epoch.FromPhysicalMillis(20))
	watermark.Advance(epoch.FromPhysicalMillis(25))
	table.Evict()
	require.Equal(t, 0, table.CachedRows())

	_, err := table.Get(ctx, "bad")
	assert.ErrorContains(t, err, "failed to unpack")
}

func TestTable_TruncateDropsOnlyThisTable(t *testing.T) {
	shared := NewMemStore()
	watermark := epoch.NewWatermark(0)
	first := NewTable(1, 1, t.Name()+"/first", watermark, shared)
	second := NewTable(2, 1, t.Name()+"/second", watermark, shared)
	t.Cleanup(first.Close)
	t.Cleanup(second.Close)

	ctx := context.Background()
	first.BeginEpoch(epoch.FromPhysicalMillis(10))
	second.BeginEpoch(epoch.FromPhysicalMillis(10))
	require.NoError(t, first.Put(ctx, "k", []byte("from-first")))
	require.NoError(t, second.Put(ctx, "k", []byte("from-second")))
	require.Equal(t, 2, shared.Len(), "Tables must not clash on the same user key.")

	require.NoError(t, first.Truncate(ctx))
	assert.Equal(t, 0, first.CachedRows())
	_, err := first.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	got, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-second"), got)
	assert.Equal(t, 1, shared.Len())
}

func TestTable_DisabledCacheReadsThroughEveryTime(t *testing.T) {
	utils.SetTestFlag(t, "row_cache_disabled", "true")
	table, store, _ := newTestTable(t)
	ctx := context.Background()
	table.BeginEpoch(epoch.FromPhysicalMillis(10))

	require.NoError(t, table.Put(ctx, "k", []byte("v")))
	assert.Equal(t, 0, table.CachedRows())
	assert.Zero(t, table.CachedBytes())

	for wantGets := 1; wantGets <= 3; wantGets++ {
		got, err := table.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
		assert.Equal(t, wantGets, store.gets)
	}

	require.NoError(t, table.Delete(ctx, "k"))
	_, err := table.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Both are no-ops without a cache; they must not blow up.
	table.Evict()
	table.Close()
}

func TestTable_CachedBytesTracksResidentRows(t *testing.T) {
	table, _, _ := newTestTable(t)
	ctx := context.Background()
	table.BeginEpoch(epoch.FromPhysicalMillis(10))

	require.NoError(t, table.Put(ctx, "k", []byte("hello")))
	assert.EqualValues(t, 1+5+rowOverhead, table.CachedBytes())

	// The tombstone replaces the payload, shrinking the accounted size.
	require.NoError(t, table.Delete(ctx, "k"))
	assert.EqualValues(t, 1+rowOverhead, table.CachedBytes())
}

func TestTable_WriteEpochRoundTripsThroughStore(t *testing.T) {
	table, store, watermark := newTestTable(t)
	ctx := context.Background()
	writeEpoch := epoch.FromPhysicalMillis(10)
	table.BeginEpoch(writeEpoch)

	require.NoError(t, table.Put(ctx, "k", []byte("v")))
	table.BeginEpoch(epoch.FromPhysicalMillis(20))
	watermark.Advance(epoch.FromPhysicalMillis(15))
	table.Evict()

	_, err := table.Get(ctx, "k")
	require.NoError(t, err)
	row, found := table.cache.Get("k")
	require.True(t, found)
	assert.Equal(t, writeEpoch, row.Epoch, "The write epoch must survive the store round trip.")
	assert.Equal(t, 1, store.gets)
}
