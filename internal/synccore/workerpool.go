package synccore

import "sync"

// DefaultFanOut bounds concurrent per-id network requests during push,
// per the spec's backpressure note (§5: "a small concurrency limit, e.g.,
// 8"), grounded on the teacher's replication.Manager worker count default
// (5 workers) — channel/WaitGroup fan-out, sized up slightly since each
// unit of work here is one lightweight HTTP round trip rather than an
// object copy.
const DefaultFanOut = 8

// fanOut runs fn(item) for every item in items with at most limit goroutines
// in flight at once, and collects results in input order.
func fanOut[T any, R any](items []T, limit int, fn func(T) R) []R {
	if limit <= 0 {
		limit = DefaultFanOut
	}
	results := make([]R, len(items))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = fn(item)
		}(i, item)
	}
	wg.Wait()
	return results
}
