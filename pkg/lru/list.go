package lru

import "iter"

// entry is a single cache slot. It carries the key so evictions can report
// which pair was dropped, and the epoch the entry was last inserted or
// promoted under.
type entry[K comparable, V any] struct {
	key   K
	value V
	epoch uint64
	prev  *entry[K, V]
	next  *entry[K, V]
}

// entryList is the recency order of the cache, kept as a doubly linked list
// between two sentinel nodes:
//
//	head <-> coldest <-> ... <-> hottest <-> tail
//
// Real entries live between the sentinels, so attach and detach never have to
// special-case the ends. The coldest entry sits right after head and is the
// next eviction candidate; promotions move entries next to tail.
type entryList[K comparable, V any] struct {
	head *entry[K, V]
	tail *entry[K, V]
	size int
}

func newEntryList[K comparable, V any]() *entryList[K, V] {
	l := &entryList[K, V]{head: &entry[K, V]{}, tail: &entry[K, V]{}}
	link(l.head, l.tail)
	return l
}

func link[K comparable, V any](a, b *entry[K, V]) {
	a.next, b.prev = b, a
}

// len returns the number of real entries in the list.
func (l *entryList[K, V]) len() int {
	return l.size
}

// front returns the coldest entry, or nil if the list is empty.
func (l *entryList[K, V]) front() *entry[K, V] {
	if l.size == 0 {
		return nil
	}
	return l.head.next
}

// back returns the hottest entry, or nil if the list is empty.
func (l *entryList[K, V]) back() *entry[K, V] {
	if l.size == 0 {
		return nil
	}
	return l.tail.prev
}

// pushBack attaches e at the hot end.
func (l *entryList[K, V]) pushBack(e *entry[K, V]) {
	link(l.tail.prev, e)
	link(e, l.tail)
	l.size++
}

// remove detaches e from the list. e must be owned by this list.
func (l *entryList[K, V]) remove(e *entry[K, V]) {
	link(e.prev, e.next)
	e.prev, e.next = nil, nil
	l.size--
}

// moveToBack promotes e to the hot end.
func (l *entryList[K, V]) moveToBack(e *entry[K, V]) {
	link(e.prev, e.next)
	link(l.tail.prev, e)
	link(e, l.tail)
}

// descend walks entries from the hot end to the cold end.
func (l *entryList[K, V]) descend() iter.Seq[*entry[K, V]] {
	return func(yield func(*entry[K, V]) bool) {
		for e := l.tail.prev; e != l.head; e = e.prev {
			if !yield(e) {
				return
			}
		}
	}
}
