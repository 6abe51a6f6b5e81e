package cache

import "math"

// Sizable reports a value's estimated heap footprint in bytes. The estimate
// feeds the cache's running size total, so it must be cheap, side-effect free
// and consistent: the same logical value always reports the same size.
type Sizable interface {
	EstimatedSize() uint64
}

// Key is the constraint for cache keys: hashable by the entry store and
// accountable by the size total.
type Key interface {
	comparable
	Sizable
}

// String is a string key or value accounted by its byte length.
type String string

func (s String) EstimatedSize() uint64 {
	return uint64(len(s))
}

// Bytes is a byte-slice value accounted by its length. It is not comparable,
// so it can only be used as a value, not a key.
type Bytes []byte

func (b Bytes) EstimatedSize() uint64 {
	return uint64(len(b))
}

// Int64 is a fixed-width numeric key or value.
type Int64 int64

func (Int64) EstimatedSize() uint64 {
	return 8
}

// costOf is the accounted footprint of one resident entry.
func costOf[K Key, V Sizable](key K, value V) uint64 {
	return saturatingAdd(key.EstimatedSize(), value.EstimatedSize())
}

// The running size total uses saturating arithmetic: an inconsistent estimate
// may skew the total, but it must never wrap it around zero.

func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return math.MaxUint64
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
