package ledger

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachesync/cachesync/internal/entitystore"
)

func newTestStore(t *testing.T) entitystore.Store {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	store, err := entitystore.NewBadgerStore(entitystore.BadgerOptions{DataDir: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecord_PutRemoveKeepSizeInvariant(t *testing.T) {
	rec := NewRecord("notes")
	assert.True(t, rec.IsEmpty())

	rec.Put("a", Entry{})
	rec.Put("b", Entry{})
	assert.Equal(t, 2, rec.Size)
	assert.Equal(t, 2, len(rec.Entries))

	rec.Remove("a")
	assert.Equal(t, 1, rec.Size)
	assert.Equal(t, 1, len(rec.Entries))

	rec.Remove("nonexistent")
	assert.Equal(t, 1, rec.Size)
}

func TestRecord_IsEmpty_NilReceiver(t *testing.T) {
	var rec *Record
	assert.True(t, rec.IsEmpty())
}

func TestStoreLedger_ReadMissingReturnsNotFound(t *testing.T) {
	l := New(newTestStore(t), "appdata", "sync")
	_, err := l.Read(context.Background(), "app1", "notes")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreLedger_CountMissingReturnsZero(t *testing.T) {
	l := New(newTestStore(t), "appdata", "sync")
	count, err := l.Count(context.Background(), "app1", "notes")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStoreLedger_WriteThenReadRoundTrip(t *testing.T) {
	l := New(newTestStore(t), "appdata", "sync")
	rec := NewRecord("notes")
	rec.Put("a", Entry{})
	rec.Put("b", Entry{})

	require.NoError(t, l.Write(context.Background(), "app1", "notes", rec))

	got, err := l.Read(context.Background(), "app1", "notes")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Size)
	assert.Len(t, got.Entries, 2)

	count, err := l.Count(context.Background(), "app1", "notes")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStoreLedger_WriteRejectsInvariantViolation(t *testing.T) {
	l := New(newTestStore(t), "appdata", "sync")
	bad := &Record{Size: 5, Entries: map[string]Entry{"a": {}}}
	err := l.Write(context.Background(), "app1", "notes", bad)
	assert.Error(t, err)
}

func TestStoreLedger_IsolatesByCollection(t *testing.T) {
	l := New(newTestStore(t), "appdata", "sync")
	require.NoError(t, l.Write(context.Background(), "app1", "notes", NewRecord("notes")))
	require.NoError(t, l.Write(context.Background(), "app1", "todos", ledgerWith("x")))

	notesCount, err := l.Count(context.Background(), "app1", "notes")
	require.NoError(t, err)
	assert.Zero(t, notesCount)

	todosCount, err := l.Count(context.Background(), "app1", "todos")
	require.NoError(t, err)
	assert.Equal(t, 1, todosCount)
}

func ledgerWith(ids ...string) *Record {
	rec := NewRecord("todos")
	for _, id := range ids {
		rec.Put(id, Entry{})
	}
	return rec
}

func TestNew_DefaultsNamespaceAndSyncCollection(t *testing.T) {
	l := New(newTestStore(t), "", "")
	require.NoError(t, l.Write(context.Background(), "app1", "notes", NewRecord("notes")))
	count, err := l.Count(context.Background(), "app1", "notes")
	require.NoError(t, err)
	assert.Zero(t, count)
}
