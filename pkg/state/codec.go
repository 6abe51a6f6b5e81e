// Rows are persisted in the following format:
// option byte | payload | write epoch (8 bytes, big-endian)
// Tombstones carry only the option byte; their payload and epoch are omitted.

package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/maurofama99/risingwave/pkg/epoch"
)

// Row is one state row as the table sees it: the user payload plus the epoch
// of the write that produced it. Deleted marks a tombstone, kept in cache so
// repeated reads of a removed key do not fall through to the store.
type Row struct {
	Payload []byte
	Epoch   epoch.Epoch
	Deleted bool
}

// rowOverhead is the fixed per-row cost charged to the cache on top of the
// payload: the option byte and the epoch trailer.
const rowOverhead = 9

func (r *Row) EstimatedSize() uint64 {
	return uint64(len(r.Payload)) + rowOverhead
}

type rowOpts uint8

func (o rowOpts) is(opts rowOpts) bool {
	return o&opts != 0
}

const (
	tombstone rowOpts = 1 << iota
)

func packRow(row *Row) []byte {
	if row.Deleted {
		return []byte{byte(tombstone)}
	}
	packed := make([]byte, 0, 1+len(row.Payload)+8)
	packed = append(packed, 0 /*opts*/)
	packed = append(packed, row.Payload...)
	packed = binary.BigEndian.AppendUint64(packed, uint64(row.Epoch))
	return packed
}

func unpackRow(packed []byte) (*Row, error) {
	if len(packed) == 0 {
		return nil, errors.New("packed row is empty")
	}
	if rowOpts(packed[0]).is(tombstone) {
		return &Row{Deleted: true}, nil
	}
	if len(packed) < 1+8 {
		return nil, fmt.Errorf("packed row of %d bytes is too short to carry its epoch", len(packed))
	}
	return &Row{
		Payload: packed[1 : len(packed)-8],
		Epoch:   epoch.Epoch(binary.BigEndian.Uint64(packed[len(packed)-8:])),
	}, nil
}
