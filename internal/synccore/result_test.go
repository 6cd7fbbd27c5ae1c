package synccore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDualResult_MemoizesNetworkCall: Network must only invoke its closure
// once even across repeated calls.
func TestDualResult_MemoizesNetworkCall(t *testing.T) {
	calls := 0
	dr := NewDualResult(42, func() (int, error) {
		calls++
		return 99, nil
	})

	assert.Equal(t, 42, dr.Cache)

	v1, err1 := dr.Network()
	v2, err2 := dr.Network()
	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.Equal(t, 99, v1)
	assert.Equal(t, 99, v2)
	assert.Equal(t, 1, calls)
}

// TestDualResult_CacheIndependentOfNetworkFailure: a failing network phase
// never invalidates the already-known cache value (§7).
func TestDualResult_CacheIndependentOfNetworkFailure(t *testing.T) {
	dr := NewDualResult([]string{"a", "b"}, func() ([]string, error) {
		return nil, assert.AnError
	})

	assert.Equal(t, []string{"a", "b"}, dr.Cache)
	_, err := dr.Network()
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, dr.Cache, "cache must still be readable after a failed network phase")
}
