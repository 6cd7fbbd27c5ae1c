package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByIDs(t *testing.T) {
	q := ByIDs("a", "b", "c")
	assert.Equal(t, []string{"a", "b", "c"}, q.Ids)
	assert.True(t, q.HasIDs())
	assert.False(t, q.IsEmpty())
}

func TestByIDs_CopiesInput(t *testing.T) {
	ids := []string{"a", "b"}
	q := ByIDs(ids...)
	ids[0] = "mutated"
	assert.Equal(t, "a", q.Ids[0], "ByIDs must not alias the caller's slice")
}

func TestEmpty(t *testing.T) {
	q := Empty()
	assert.True(t, q.IsEmpty())
	assert.False(t, q.HasIDs())
}

func TestQuery_IsEmpty_FalseWithPredicate(t *testing.T) {
	q := Query{Predicate: "anything"}
	assert.False(t, q.IsEmpty())
	assert.False(t, q.HasIDs())
}
