package synccore

import "sync"

// DualResult is the central UX affordance the spec calls for (§9): every
// public operation returns an immediate cache value plus a deferred network
// value the caller may or may not await. The network phase is computed
// lazily and memoized — the first caller to read it pays for the network
// round trip, later callers (or the same caller reading twice) get the
// cached outcome, so the two phases stay independently observable without
// forcing every caller to spawn a goroutine up front.
type DualResult[T any] struct {
	Cache T

	once       sync.Once
	networkFn  func() (T, error)
	netValue   T
	netErr     error
}

// NewDualResult pairs an already-known cache value with a lazy network
// computation.
func NewDualResult[T any](cache T, networkFn func() (T, error)) *DualResult[T] {
	return &DualResult[T]{Cache: cache, networkFn: networkFn}
}

// Network runs (once) and returns the deferred network-phase outcome. A
// failing network phase never invalidates Cache (§7) — callers can read
// Cache regardless of whether Network is ever called or what it returns.
func (r *DualResult[T]) Network() (T, error) {
	r.once.Do(func() {
		r.netValue, r.netErr = r.networkFn()
	})
	return r.netValue, r.netErr
}
