package synccore

import (
	"context"
	"fmt"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/query"
)

// Puller is the Pull Engine (§4.3): fetches remote state into the Entity
// Store and, on a full (non-delta) fetch, reconciles deletions, refusing to
// run ahead of a non-empty ledger.
type Puller struct {
	Finder *Finder
	Pusher *Pusher
}

// Pull implements §4.3: reject with ErrPendingSync (no network call made)
// if the ledger is non-empty; otherwise delegate to Find and return only
// its network-phase result.
func (p *Puller) Pull(ctx context.Context, collection string, q query.Query, opts gateway.Options) ([]*entity.Entity, error) {
	count, err := p.Pusher.Ledger.Count(ctx, p.Pusher.AppKey, collection)
	if err != nil {
		return nil, fmt.Errorf("pull %s: check pending sync: %w", collection, err)
	}
	if count > 0 {
		return nil, ErrPendingSync
	}

	dr, err := p.Finder.Find(ctx, collection, q, opts)
	if err != nil {
		return nil, err
	}
	return dr.Network()
}
