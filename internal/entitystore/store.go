// Package entitystore is the external Entity Store collaborator: it
// persists entities by id within a named collection and executes queries
// against the local replica. The sync engine treats it as an out-of-scope
// collaborator (per the contract below) with one concrete implementation
// backed by BadgerDB.
package entitystore

import (
	"context"
	"errors"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/query"
)

// Sentinel errors surfaced by every Store implementation.
var (
	ErrNotFound      = errors.New("entitystore: not found")
	ErrInvalidArgument = errors.New("entitystore: invalid argument")
)

// Store is the contract the cache store and sync engine consume. Paths are
// rooted at /{namespace}/{appKey}/{collection}; ledger records live at
// /{namespace}/{appKey}/{syncCollection}/{collection} (see ledger.Ledger).
type Store interface {
	// Get retrieves a single entity by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, namespace, appKey, collection, id string) (*entity.Entity, error)

	// Find executes q against the collection and returns the matching
	// entities.
	Find(ctx context.Context, namespace, appKey, collection string, q query.Query) ([]*entity.Entity, error)

	// Put creates or overwrites an entity.
	Put(ctx context.Context, namespace, appKey, collection string, e *entity.Entity) error

	// Delete removes a single entity by id. Returns the number of rows
	// deleted (0 or 1) so callers can detect count mismatches.
	Delete(ctx context.Context, namespace, appKey, collection, id string) (int, error)

	// DeleteMatching removes every entity matching q and returns the
	// number of rows deleted.
	DeleteMatching(ctx context.Context, namespace, appKey, collection string, q query.Query) (int, error)

	// Count returns the number of entities matching q.
	Count(ctx context.Context, namespace, appKey, collection string, q query.Query) (int, error)

	// Close releases underlying resources.
	Close() error
}
