package epoch

import "sync/atomic"

// Watermark is the eviction threshold shared between one writer and many
// cache holders. The writer publishes a new threshold with Advance; caches
// read it with Load on every eviction pass. Entries stamped at or below the
// watermark are safe to drop.
type Watermark struct {
	val atomic.Uint64
}

// NewWatermark returns a watermark starting at the given epoch.
func NewWatermark(initial Epoch) *Watermark {
	w := &Watermark{}
	w.val.Store(uint64(initial))
	return w
}

// Load returns the current threshold.
func (w *Watermark) Load() Epoch {
	return Epoch(w.val.Load())
}

// Advance moves the watermark forward to e and reports whether it moved.
// Calls that would move it backwards (or keep it in place) are ignored, so
// the threshold is monotonic even with racing writers.
func (w *Watermark) Advance(e Epoch) bool {
	for {
		cur := w.val.Load()
		if uint64(e) <= cur {
			return false
		}
		if w.val.CompareAndSwap(cur, uint64(e)) {
			return true
		}
	}
}
