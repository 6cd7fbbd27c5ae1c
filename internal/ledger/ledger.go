// Package ledger implements the Sync Ledger: the per-collection record of
// pending mutations awaiting push. Records are persisted through the
// Entity Store under a reserved "sync" namespace/collection, so ledger
// durability inherits whatever the Entity Store provides (§4.6, §6).
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/entitystore"
)

// ErrNotFound mirrors entitystore.ErrNotFound so callers don't need to
// import that package just to classify a missing ledger record.
var ErrNotFound = entitystore.ErrNotFound

// Entry is one pending mutation: an entity id mapped to the lmt observed
// when it was enqueued (nil if unknown, e.g. for a removal).
type Entry struct {
	LastModifiedTime *string `json:"lmt"`
}

// Record is the ledger for a single collection. Size must always equal
// len(Entries); every mutator in this package maintains that invariant.
type Record struct {
	Collection string           `json:"-"`
	Size       int              `json:"size"`
	Entries    map[string]Entry `json:"entries"`
}

// NewRecord returns an empty, invariant-satisfying record for collection.
func NewRecord(collection string) *Record {
	return &Record{Collection: collection, Size: 0, Entries: map[string]Entry{}}
}

// Put adds or overwrites an entry and keeps Size in sync.
func (r *Record) Put(id string, e Entry) {
	if r.Entries == nil {
		r.Entries = map[string]Entry{}
	}
	r.Entries[id] = e
	r.Size = len(r.Entries)
}

// Remove drops an entry, if present, and keeps Size in sync.
func (r *Record) Remove(id string) {
	delete(r.Entries, id)
	r.Size = len(r.Entries)
}

// IsEmpty reports whether the ledger has no pending entries.
func (r *Record) IsEmpty() bool {
	return r == nil || r.Size == 0
}

// Ledger is the contract the Cache Store's push/pull engines consume.
type Ledger interface {
	// Read returns the ledger record for collection, or ErrNotFound if
	// none has ever been written.
	Read(ctx context.Context, appKey, collection string) (*Record, error)

	// Write persists rec, replacing any prior record for the same
	// collection.
	Write(ctx context.Context, appKey, collection string, rec *Record) error

	// Count returns rec.Size, or 0 if no record exists (NotFound is
	// recovered, not propagated — §7).
	Count(ctx context.Context, appKey, collection string) (int, error)
}

const (
	// DefaultNamespace and DefaultSyncCollection name the reserved path
	// segment the ledger lives under; both are configuration per §6, not
	// hard-coded — callers of New may override them.
	DefaultNamespace      = "appdata"
	DefaultSyncCollection = "sync"
)

// StoreLedger implements Ledger on top of an entitystore.Store.
type StoreLedger struct {
	store          entitystore.Store
	namespace      string
	syncCollection string
}

// New builds a StoreLedger. Empty namespace/syncCollection fall back to
// the package defaults.
func New(store entitystore.Store, namespace, syncCollection string) *StoreLedger {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if syncCollection == "" {
		syncCollection = DefaultSyncCollection
	}
	return &StoreLedger{store: store, namespace: namespace, syncCollection: syncCollection}
}

func (l *StoreLedger) Read(ctx context.Context, appKey, collection string) (*Record, error) {
	if collection == "" {
		return nil, fmt.Errorf("ledger: collection name is required")
	}

	e, err := l.store.Get(ctx, l.namespace, appKey, l.syncCollection, collection)
	if errors.Is(err, entitystore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger for %s: %w", collection, err)
	}

	rec, err := decodeRecord(collection, e)
	if err != nil {
		return nil, fmt.Errorf("decode ledger for %s: %w", collection, err)
	}
	return rec, nil
}

func (l *StoreLedger) Write(ctx context.Context, appKey, collection string, rec *Record) error {
	if collection == "" {
		return fmt.Errorf("ledger: collection name is required")
	}
	if rec.Size != len(rec.Entries) {
		return fmt.Errorf("ledger: size invariant violated for %s: size=%d entries=%d", collection, rec.Size, len(rec.Entries))
	}

	e, err := encodeRecord(collection, rec)
	if err != nil {
		return fmt.Errorf("encode ledger for %s: %w", collection, err)
	}
	if err := l.store.Put(ctx, l.namespace, appKey, l.syncCollection, e); err != nil {
		return fmt.Errorf("write ledger for %s: %w", collection, err)
	}
	return nil
}

func (l *StoreLedger) Count(ctx context.Context, appKey, collection string) (int, error) {
	rec, err := l.Read(ctx, appKey, collection)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Size, nil
}

func decodeRecord(collection string, e *entity.Entity) (*Record, error) {
	raw, err := json.Marshal(e.Fields)
	if err != nil {
		return nil, err
	}
	rec := &Record{Collection: collection}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, err
	}
	if rec.Entries == nil {
		rec.Entries = map[string]Entry{}
	}
	return rec, nil
}

func encodeRecord(collection string, rec *Record) (*entity.Entity, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return &entity.Entity{ID: collection, Fields: fields}, nil
}
