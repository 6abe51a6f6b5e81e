package lru

// keyIndex provides key-to-entry lookup next to the recency list. The default
// implementation is a plain Go map; caches built with an explicit Hasher use
// the bucketed variant instead, which lets callers pick the hash function
// (e.g. to reuse hashes already computed upstream of the cache).
type keyIndex[K comparable, V any] interface {
	get(key K) (*entry[K, V], bool)
	put(e *entry[K, V])
	delete(key K)
	clear()
}

// mapIndex is the builtin-map index used when no custom hasher is given.
type mapIndex[K comparable, V any] map[K]*entry[K, V]

func newMapIndex[K comparable, V any]() mapIndex[K, V] {
	return make(mapIndex[K, V])
}

func (m mapIndex[K, V]) get(key K) (*entry[K, V], bool) {
	e, found := m[key]
	return e, found
}

func (m mapIndex[K, V]) put(e *entry[K, V]) {
	m[e.key] = e
}

func (m mapIndex[K, V]) delete(key K) {
	delete(m, key)
}

func (m mapIndex[K, V]) clear() {
	clear(m)
}

// hashedIndex buckets entries by a caller-provided hash. Collisions within a
// bucket are resolved by comparing keys, so the hash only has to distribute
// well, not be collision-free.
type hashedIndex[K comparable, V any] struct {
	hash    Hasher[K]
	buckets map[uint64][]*entry[K, V]
}

func newHashedIndex[K comparable, V any](hash Hasher[K]) *hashedIndex[K, V] {
	return &hashedIndex[K, V]{hash: hash, buckets: make(map[uint64][]*entry[K, V])}
}

func (h *hashedIndex[K, V]) get(key K) (*entry[K, V], bool) {
	for _, e := range h.buckets[h.hash(key)] {
		if e.key == key {
			return e, true
		}
	}
	return nil, false
}

func (h *hashedIndex[K, V]) put(e *entry[K, V]) {
	sum := h.hash(e.key)
	h.buckets[sum] = append(h.buckets[sum], e)
}

func (h *hashedIndex[K, V]) delete(key K) {
	sum := h.hash(key)
	bucket := h.buckets[sum]
	for i, e := range bucket {
		if e.key != key {
			continue
		}
		// Swap the last element into place to avoid shifting the bucket.
		bucket[i] = bucket[len(bucket)-1]
		bucket = bucket[:len(bucket)-1]
		if len(bucket) == 0 {
			delete(h.buckets, sum)
		} else {
			h.buckets[sum] = bucket
		}
		return
	}
}

func (h *hashedIndex[K, V]) clear() {
	clear(h.buckets)
}
