// Package state keeps per-operator streaming state behind a memory-accounted
// row cache. A Table answers point reads from its cache whenever it can and
// falls back to the backing Store on a miss; writes go through to the Store
// first and land in the cache only once they are durable. The cache is bounded
// by the epoch watermark rather than by entry count, so under memory pressure
// rows are dropped, never lost: a later read simply refills them from the
// Store.
package state

import (
	"context"
	"errors"
	"iter"
)

// ErrKeyNotFound is returned by reads for keys that have no row, including
// keys whose latest row is a tombstone.
var ErrKeyNotFound = errors.New("key was not found")

// Store is the durable row store behind the tables. Implementations must be
// safe for concurrent use; tables from different actors may share one Store.
type Store interface {
	// Get returns the packed row stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Put stores value under key, replacing any previous row.
	Put(ctx context.Context, key []byte, value []byte) error
	// Delete physically removes key. Tables normally write tombstones
	// instead; Delete exists for bulk cleanup such as Table.Truncate.
	Delete(ctx context.Context, key []byte) error
	// ScanPrefix iterates all rows whose key starts with prefix, in key
	// order.
	ScanPrefix(ctx context.Context, prefix []byte) (iter.Seq2[[]byte, []byte], error)
}
