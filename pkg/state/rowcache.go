package state

import (
	"github.com/maurofama99/risingwave/pkg/cache"
	"github.com/maurofama99/risingwave/pkg/epoch"
)

// rowCache is the residency layer a table keeps in front of its store. It is
// the subset of the managed cache the table actually drives, carved out so
// the cache can be swapped for a bypass.
type rowCache interface {
	UpdateEpoch(e epoch.Epoch)
	CurrentEpoch() epoch.Epoch
	Get(key cache.String) (*Row, bool /*found*/)
	Put(key cache.String, row *Row) (*Row, bool /*replaced*/)
	Remove(key cache.String) (*Row, bool /*found*/)
	Len() int
	HeapSize() uint64
	EvictExceptCurrentEpoch()
	Close()
}

// noopRowCache keeps nothing resident, turning every table read into a store
// read. Selected with -row_cache_disabled to rule the cache out when
// debugging. It still tracks the epoch so writes keep getting stamped.
type noopRowCache struct {
	epoch epoch.Epoch
}

func (n *noopRowCache) UpdateEpoch(e epoch.Epoch) {
	if e > n.epoch {
		n.epoch = e
	}
}

func (n *noopRowCache) CurrentEpoch() epoch.Epoch { return n.epoch }

func (n *noopRowCache) Get(cache.String) (*Row, bool) { return nil, false }

func (n *noopRowCache) Put(cache.String, *Row) (*Row, bool) { return nil, false }

func (n *noopRowCache) Remove(cache.String) (*Row, bool) { return nil, false }

func (n *noopRowCache) Len() int { return 0 }

func (n *noopRowCache) HeapSize() uint64 { return 0 }

func (n *noopRowCache) EvictExceptCurrentEpoch() {}

func (n *noopRowCache) Close() {}
