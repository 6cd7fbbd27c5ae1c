// Package gateway is the external Network Gateway collaborator: it executes
// remote CRUD with authentication and supports delta-fetch semantics. The
// sync engine depends only on this interface; concrete transports live in
// the httpgateway and s3gateway subpackages.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/query"
)

// Typed errors every Gateway implementation must surface so the sync
// engine's failure classifier (§4.2 step 5, §4.7) can tell retryable
// errors from give-up-locally ones.
var (
	ErrNotFound               = errors.New("gateway: not found")
	ErrInsufficientCredentials = errors.New("gateway: insufficient credentials")
	ErrTimeout                = errors.New("gateway: timeout")
)

// TransportError wraps any other remote failure that isn't one of the
// classified sentinels above — retained by the push engine and surfaced to
// the caller, per §4.2 step 5 "any other error".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "gateway: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Options carries the per-operation options recognized by the core (§6).
type Options struct {
	Timeout       time.Duration
	UseDeltaFetch bool
	Properties    map[string]string
	TTL           time.Duration
}

// Gateway is the remote counterpart of entitystore.Store, plus delta-fetch,
// group and count.
type Gateway interface {
	Get(ctx context.Context, collection, id string, opts Options) (*entity.Entity, error)
	Find(ctx context.Context, collection string, q query.Query, opts Options) ([]*entity.Entity, error)
	Put(ctx context.Context, collection string, e *entity.Entity, opts Options) (*entity.Entity, error)
	Delete(ctx context.Context, collection, id string, opts Options) (int, error)

	// DeltaGet returns only entities in collection whose lmt exceeds
	// since. A zero since behaves like a full Find.
	DeltaGet(ctx context.Context, collection string, since time.Time, opts Options) ([]*entity.Entity, error)

	// Group runs a remote aggregation; agg is opaque to the gateway.
	Group(ctx context.Context, collection string, agg any, opts Options) (any, error)

	// Count returns the remote row count matching q.
	Count(ctx context.Context, collection string, q query.Query, opts Options) (int, error)
}
