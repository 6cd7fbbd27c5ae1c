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

// TestPull_BlockedByPendingSync is scenario 4: a non-empty ledger rejects
// with ErrPendingSync and makes no network call.
func TestPull_BlockedByPendingSync(t *testing.T) {
	store := newFakeStore()
	led := newFakeLedger()
	rec := ledgerRecordWith("a", "b", "c")
	require.NoError(t, led.Write(context.Background(), "app1", "notes", rec))

	gw := &fakeGateway{
		FindFn: func(context.Context, string, query.Query) ([]*entity.Entity, error) {
			t.Fatal("pull must not call the network when the ledger is non-empty")
			return nil, nil
		},
	}
	finder := newFinder(store, led, gw)
	puller := &Puller{Finder: finder, Pusher: finder.Pusher}

	_, err := puller.Pull(context.Background(), "notes", query.Empty(), gateway.Options{})
	assert.ErrorIs(t, err, ErrPendingSync)
}

// TestPull_DelegatesToFindNetworkPhase: with an empty ledger, Pull returns
// exactly Find's network-phase result.
func TestPull_DelegatesToFindNetworkPhase(t *testing.T) {
	store := newFakeStore()
	led := newFakeLedger()
	require.NoError(t, store.Put(context.Background(), "", "app1", "notes", &entity.Entity{ID: "a"}))

	gw := &fakeGateway{
		FindFn: func(context.Context, string, query.Query) ([]*entity.Entity, error) {
			return []*entity.Entity{{ID: "a"}, {ID: "b"}}, nil
		},
	}
	finder := newFinder(store, led, gw)
	puller := &Puller{Finder: finder, Pusher: finder.Pusher}

	result, err := puller.Pull(context.Background(), "notes", query.Empty(), gateway.Options{})
	require.NoError(t, err)
	assert.Len(t, result, 2)
}
