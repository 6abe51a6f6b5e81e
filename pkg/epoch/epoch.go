// Package epoch implements the 64-bit epoch layout used to stamp cache
// entries and barriers. An epoch packs the physical time in milliseconds into
// the upper 48 bits and leaves the lower 16 bits for a sequence number, so
// epochs order first by wall clock and then by issue order within the same
// millisecond.
package epoch

import (
	"fmt"
	"time"
)

// Epoch is a 64-bit barrier timestamp: 48 bits of Unix milliseconds followed
// by a 16-bit sequence number.
type Epoch uint64

const physicalShift = 16

// FromPhysicalMillis builds an epoch from a physical Unix timestamp in
// milliseconds with a zero sequence number.
func FromPhysicalMillis(ms uint64) Epoch {
	return Epoch(ms << physicalShift)
}

// FromTime builds an epoch from a wall-clock time with a zero sequence number.
func FromTime(t time.Time) Epoch {
	return FromPhysicalMillis(uint64(t.UnixMilli()))
}

// Now returns the epoch corresponding to the current wall clock.
func Now() Epoch {
	return FromTime(time.Now())
}

// PhysicalMillis extracts the physical Unix timestamp in milliseconds.
func (e Epoch) PhysicalMillis() uint64 {
	return uint64(e) >> physicalShift
}

// PhysicalTime converts the physical part of the epoch back to a wall-clock time.
func (e Epoch) PhysicalTime() time.Time {
	return time.UnixMilli(int64(e.PhysicalMillis()))
}

// Sequence extracts the 16-bit sequence number.
func (e Epoch) Sequence() uint16 {
	return uint16(e)
}

// WithSequence replaces the sequence number, keeping the physical part.
func (e Epoch) WithSequence(seq uint16) Epoch {
	return e&^Epoch(1<<physicalShift-1) | Epoch(seq)
}

// Next returns the epoch one sequence step ahead. It carries into the
// physical part when the sequence wraps, so Next is strictly increasing.
func (e Epoch) Next() Epoch {
	return e + 1
}

func (e Epoch) String() string {
	return fmt.Sprintf("%d@%s", e.Sequence(), e.PhysicalTime().UTC().Format(time.RFC3339Nano))
}
