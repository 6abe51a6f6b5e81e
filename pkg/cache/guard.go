package cache

// MutGuard scopes in-place mutation of a cached value. The value's cost is
// measured at acquisition; Release measures it again and folds the difference
// into the cache's running size, so callers can grow or shrink values freely
// without touching accounting themselves.
//
// Release must run on every exit path, so defer it right at acquisition:
//
//	guard, found := c.GetMut(key)
//	if !found {
//		return
//	}
//	defer guard.Release()
//
// Releasing twice is harmless; only the first call reconciles. The pointer
// returned by Value stays valid until the next mutating cache operation.
type MutGuard[V Sizable] struct {
	value    *V
	oldCost  uint64
	acct     *accounting
	released bool
}

func newMutGuard[V Sizable](value *V, acct *accounting) *MutGuard[V] {
	return &MutGuard[V]{value: value, oldCost: (*value).EstimatedSize(), acct: acct}
}

// Value returns the guarded value for reading and writing.
func (g *MutGuard[V]) Value() *V {
	return g.value
}

// Set replaces the guarded value wholesale.
func (g *MutGuard[V]) Set(value V) {
	*g.value = value
}

// Release reconciles the value's cost change into the cache accounting.
func (g *MutGuard[V]) Release() {
	if g.released {
		return
	}
	g.released = true
	g.acct.reconcile(g.oldCost, (*g.value).EstimatedSize())
}
