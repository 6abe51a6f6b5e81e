package state

import (
	"bytes"
	"context"
	"iter"
	"sync"
)

// MemStore is an in-memory Store backed by a skip list. It keeps rows in key
// order, which makes prefix scans a bounded walk instead of a full sweep. All
// operations take the store-wide lock, so a MemStore may back many tables at
// once.
type MemStore struct {
	mux     sync.RWMutex
	list    *skipList[[]byte, []byte]
	entries int
}

func NewMemStore() *MemStore {
	return &MemStore{
		list: newSkipList[[]byte /*key*/, []byte /*value*/](bytes.Compare),
	}
}

func (m *MemStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.list.get(key)
}

func (m *MemStore) Put(ctx context.Context, key []byte, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if alreadyExists := m.list.set(key, value); !alreadyExists {
		m.entries++
	}
	return nil
}

func (m *MemStore) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if err := m.list.delete(key); err != nil {
		return err
	}
	m.entries--
	return nil
}

// ScanPrefix snapshots the matching rows under the read lock, so the returned
// sequence stays valid while other goroutines keep writing.
func (m *MemStore) ScanPrefix(ctx context.Context, prefix []byte) (iter.Seq2[[]byte, []byte], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mux.RLock()
	var keys, values [][]byte
	for key, value := range m.list.ascend(prefix) {
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		keys = append(keys, key)
		values = append(values, value)
	}
	m.mux.RUnlock()

	return func(yield func([]byte, []byte) bool) {
		for i := range keys {
			if !yield(keys[i], values[i]) {
				return
			}
		}
	}, nil
}

// Len returns the number of live rows, tombstones included.
func (m *MemStore) Len() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.entries
}
