package lru

import "sync"

// Pool recycles entry nodes between caches. Operators that churn through many
// short-lived entries per barrier can share one pool so eviction on one cache
// feeds allocation on another instead of the garbage collector.
type Pool[K comparable, V any] struct {
	entries sync.Pool
}

func NewPool[K comparable, V any]() *Pool[K, V] {
	return &Pool[K, V]{entries: sync.Pool{New: func() any {
		return new(entry[K, V])
	}}}
}

func (p *Pool[K, V]) get() *entry[K, V] {
	return p.entries.Get().(*entry[K, V])
}

func (p *Pool[K, V]) put(e *entry[K, V]) {
	// Drop references so pooled nodes don't pin evicted keys and values.
	*e = entry[K, V]{}
	p.entries.Put(e)
}
