package synccore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/query"
)

// TestSync_PushThenPull: a clean push drains the ledger, letting pull
// proceed and return the remote set.
func TestSync_PushThenPull(t *testing.T) {
	store := newFakeStore()
	led := newFakeLedger()
	require.NoError(t, store.Put(context.Background(), "", "app1", "notes", &entity.Entity{ID: "a"}))
	require.NoError(t, led.Write(context.Background(), "app1", "notes", ledgerRecordWith("a")))

	gw := &fakeGateway{
		PutFn: func(_ context.Context, _ string, e *entity.Entity) (*entity.Entity, error) { return e, nil },
		FindFn: func(context.Context, string, query.Query) ([]*entity.Entity, error) {
			return []*entity.Entity{{ID: "a"}}, nil
		},
	}
	finder := newFinder(store, led, gw)
	puller := &Puller{Finder: finder, Pusher: finder.Pusher}
	orch := &Orchestrator{Pusher: finder.Pusher, Puller: puller}

	result, err := orch.Sync(context.Background(), "notes", query.Empty(), gateway.Options{})
	require.NoError(t, err)
	require.NotNil(t, result.Push)
	assert.Len(t, result.Push.Success, 1)
	assert.Len(t, result.Pull, 1)
}

// TestSync_SkipsPullOnHardPushFailure: when push itself returns an error
// (not merely per-id failures), pull must not run.
func TestSync_SkipsPullOnHardPushFailure(t *testing.T) {
	store := newFakeStore()
	led := newFakeLedger()

	gw := &fakeGateway{
		FindFn: func(context.Context, string, query.Query) ([]*entity.Entity, error) {
			t.Fatal("pull must be skipped after a hard push failure")
			return nil, nil
		},
	}
	finder := newFinder(store, led, gw)
	puller := &Puller{Finder: finder, Pusher: finder.Pusher}
	orch := &Orchestrator{Pusher: finder.Pusher, Puller: puller}

	// An empty collection name makes Push itself fail hard (ErrInvalidArgument),
	// as opposed to a per-id push failure which is reported in PushResult.Error.
	_, err := orch.Sync(context.Background(), "", query.Empty(), gateway.Options{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
