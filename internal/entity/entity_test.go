package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_MarshalUnmarshalRoundTrip(t *testing.T) {
	lmt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := Entity{
		ID:       "srv7",
		Fields:   map[string]any{"name": "A", "count": float64(3)},
		Metadata: &Metadata{LastModifiedTime: &lmt, Local: true},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var out Entity
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "srv7", out.ID)
	assert.Equal(t, "A", out.Fields["name"])
	assert.Equal(t, float64(3), out.Fields["count"])
	require.NotNil(t, out.Metadata)
	assert.True(t, out.Metadata.Local)
	require.NotNil(t, out.Metadata.LastModifiedTime)
	assert.True(t, out.Metadata.LastModifiedTime.Equal(lmt))
}

func TestEntity_UnmarshalWithoutMetadata(t *testing.T) {
	var out Entity
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","name":"x"}`), &out))
	assert.Equal(t, "a", out.ID)
	assert.Equal(t, "x", out.Fields["name"])
	assert.Nil(t, out.Metadata)
	assert.False(t, out.IsLocal())
	assert.True(t, out.LastModified().IsZero())
}

func TestEntity_Clone_DoesNotAliasFields(t *testing.T) {
	e := &Entity{ID: "a", Fields: map[string]any{"x": 1}, Metadata: &Metadata{Local: true}}
	clone := e.Clone()

	clone.Fields["x"] = 2
	clone.Metadata.Local = false

	assert.Equal(t, 1, e.Fields["x"])
	assert.True(t, e.Metadata.Local)
}

func TestEntity_Clone_Nil(t *testing.T) {
	var e *Entity
	assert.Nil(t, e.Clone())
}

func TestEntity_IsLocal(t *testing.T) {
	local := &Entity{Metadata: &Metadata{Local: true}}
	notLocal := &Entity{Metadata: &Metadata{Local: false}}
	noMeta := &Entity{}

	assert.True(t, local.IsLocal())
	assert.False(t, notLocal.IsLocal())
	assert.False(t, noMeta.IsLocal())
}

func TestEntity_LastModified(t *testing.T) {
	lmt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &Entity{Metadata: &Metadata{LastModifiedTime: &lmt}}
	assert.True(t, e.LastModified().Equal(lmt))

	none := &Entity{}
	assert.True(t, none.LastModified().IsZero())
}
