package synccore

import (
	"context"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/query"
)

// SyncResult is the Sync Orchestrator's composite output (§4.4).
type SyncResult struct {
	Push *PushResult
	Pull []*entity.Entity
}

// Orchestrator composes push-then-pull and guards the invariant that a hard
// push failure skips the pull phase entirely.
type Orchestrator struct {
	Pusher *Pusher
	Puller *Puller
}

// Sync implements §4.4: sync(query?) = push(); then pull(query).
func (o *Orchestrator) Sync(ctx context.Context, collection string, q query.Query, opts gateway.Options) (*SyncResult, error) {
	push, err := o.Pusher.Push(ctx, collection, nil, opts)
	if err != nil {
		return &SyncResult{Push: push}, err
	}

	pull, err := o.Puller.Pull(ctx, collection, q, opts)
	return &SyncResult{Push: push, Pull: pull}, err
}
