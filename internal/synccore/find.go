package synccore

import (
	"context"
	"errors"
	"fmt"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/entitystore"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/query"
)

// Finder implements the dual-phase find/findById/group/count operations of
// the Cache Store facade (§4.1). It is the shared reconciliation core both
// the facade and the Pull Engine delegate to.
type Finder struct {
	Store     entitystore.Store
	Pusher    *Pusher
	Namespace string
	AppKey    string
}

// ensureLedgerClear implements the "push then re-check" gate common to
// find/group/count's network phase and the Pull Engine: if the ledger is
// non-empty, trigger a push and re-read; if it is still non-empty, the
// network phase must not proceed.
func (f *Finder) ensureLedgerClear(ctx context.Context, collection string, opts gateway.Options) error {
	count, err := f.Pusher.Ledger.Count(ctx, f.AppKey, collection)
	if err != nil {
		return fmt.Errorf("check pending sync: %w", err)
	}
	if count == 0 {
		return nil
	}
	if _, err := f.Pusher.Push(ctx, collection, nil, opts); err != nil {
		return fmt.Errorf("push before sync: %w", err)
	}
	count, err = f.Pusher.Ledger.Count(ctx, f.AppKey, collection)
	if err != nil {
		return fmt.Errorf("recheck pending sync: %w", err)
	}
	if count > 0 {
		return ErrPendingSync
	}
	return nil
}

// Find implements §4.1 find(query?).
func (f *Finder) Find(ctx context.Context, collection string, q query.Query, opts gateway.Options) (*DualResult[[]*entity.Entity], error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", ErrInvalidArgument)
	}

	cacheSnapshot, err := f.Store.Find(ctx, f.Namespace, f.AppKey, collection, q)
	if err != nil {
		return nil, err
	}

	networkFn := func() ([]*entity.Entity, error) {
		if err := f.ensureLedgerClear(ctx, collection, opts); err != nil {
			return nil, err
		}

		fetched, err := fetchRemote(ctx, f.Pusher.Gateway, collection, q, cacheSnapshot, opts)
		if err != nil {
			return nil, err
		}

		// A delta fetch only reports entities changed since the watermark, so
		// an id's absence from it means "unchanged", not "deleted" — the
		// set-difference-on-id reconciliation is only sound against a full
		// fetch. Deletion propagation lags until the next non-delta find.
		if !opts.UseDeltaFetch {
			if err := f.reconcileDeletions(ctx, collection, cacheSnapshot, fetched); err != nil {
				return nil, err
			}
		}
		for _, e := range fetched {
			if err := f.Store.Put(ctx, f.Namespace, f.AppKey, collection, e); err != nil {
				return nil, fmt.Errorf("upsert %s/%s: %w", collection, e.ID, err)
			}
		}
		return fetched, nil
	}

	return NewDualResult(cacheSnapshot, networkFn), nil
}

// reconcileDeletions deletes every id present in snapshot but absent from
// fetched — the set-difference-on-id step (§8 "Deletion propagation"). Find
// runs it only after a full fetch; when opts.UseDeltaFetch is set it is not
// run, so an entity deleted upstream stays in the local store until a
// non-delta find.
func (f *Finder) reconcileDeletions(ctx context.Context, collection string, snapshot, fetched []*entity.Entity) error {
	present := make(map[string]struct{}, len(fetched))
	for _, e := range fetched {
		present[e.ID] = struct{}{}
	}
	for _, e := range snapshot {
		if _, ok := present[e.ID]; ok {
			continue
		}
		if _, err := f.Store.Delete(ctx, f.Namespace, f.AppKey, collection, e.ID); err != nil {
			return fmt.Errorf("reconcile delete %s/%s: %w", collection, e.ID, err)
		}
	}
	return nil
}

// FindByID implements §4.1 findById(id).
func (f *Finder) FindByID(ctx context.Context, collection, id string, opts gateway.Options) (*DualResult[*entity.Entity], error) {
	if collection == "" || id == "" {
		return nil, fmt.Errorf("%w: collection and id are required", ErrInvalidArgument)
	}

	cached, err := f.Store.Get(ctx, f.Namespace, f.AppKey, collection, id)
	if err != nil {
		return nil, err
	}

	networkFn := func() (*entity.Entity, error) {
		if err := f.ensureLedgerClear(ctx, collection, opts); err != nil {
			return nil, err
		}

		remote, err := f.Pusher.Gateway.Get(ctx, collection, id, opts)
		if errors.Is(err, gateway.ErrNotFound) {
			if _, delErr := f.Store.Delete(ctx, f.Namespace, f.AppKey, collection, id); delErr != nil {
				return nil, fmt.Errorf("reconcile delete %s/%s: %w", collection, id, delErr)
			}
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if err := f.Store.Put(ctx, f.Namespace, f.AppKey, collection, remote); err != nil {
			return nil, fmt.Errorf("upsert %s/%s: %w", collection, id, err)
		}
		return remote, nil
	}

	return NewDualResult(cached, networkFn), nil
}

// Group implements §4.1 group(agg): localAgg computes the cache value over
// the full local snapshot; agg is passed through opaque to the remote
// Gateway's _group endpoint.
func (f *Finder) Group(ctx context.Context, collection string, agg any, localAgg func([]*entity.Entity) (any, error), opts gateway.Options) (*DualResult[any], error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", ErrInvalidArgument)
	}

	snapshot, err := f.Store.Find(ctx, f.Namespace, f.AppKey, collection, query.Empty())
	if err != nil {
		return nil, err
	}
	cacheVal, err := localAgg(snapshot)
	if err != nil {
		return nil, err
	}

	networkFn := func() (any, error) {
		if err := f.ensureLedgerClear(ctx, collection, opts); err != nil {
			return nil, err
		}
		return f.Pusher.Gateway.Group(ctx, collection, agg, opts)
	}

	return NewDualResult(cacheVal, networkFn), nil
}

// Count implements §4.1 count(query?).
func (f *Finder) Count(ctx context.Context, collection string, q query.Query, opts gateway.Options) (*DualResult[int], error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", ErrInvalidArgument)
	}

	cacheVal, err := f.Store.Count(ctx, f.Namespace, f.AppKey, collection, q)
	if err != nil {
		return nil, err
	}

	networkFn := func() (int, error) {
		if err := f.ensureLedgerClear(ctx, collection, opts); err != nil {
			return 0, err
		}
		return f.Pusher.Gateway.Count(ctx, collection, q, opts)
	}

	return NewDualResult(cacheVal, networkFn), nil
}
