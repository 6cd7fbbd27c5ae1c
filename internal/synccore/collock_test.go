package synccore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestCollectionLocks_SerializesSameCollection: two holders of the same
// collection's lock cannot be inside the critical section simultaneously.
func TestCollectionLocks_SerializesSameCollection(t *testing.T) {
	locks := NewCollectionLocks()
	var active int32
	var overlap int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.WithLock("notes", func() {
				if atomic.AddInt32(&active, 1) > 1 {
					atomic.StoreInt32(&overlap, 1)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
			})
		}()
	}
	wg.Wait()
	assert.Zero(t, overlap, "two goroutines held the same collection's lock concurrently")
}

// TestCollectionLocks_IndependentAcrossCollections: different collections
// don't block each other.
func TestCollectionLocks_IndependentAcrossCollections(t *testing.T) {
	locks := NewCollectionLocks()
	done := make(chan struct{})

	locks.Lock("a")
	go func() {
		locks.WithLock("b", func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on collection b blocked by an unrelated lock on collection a")
	}
	locks.Unlock("a")
}
