package httpgateway

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/entitystore"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/query"
	"github.com/cachesync/cachesync/internal/remoteserver"
)

var timeZero time.Time

func newTestBackend(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	store, err := entitystore.NewBadgerStore(entitystore.BadgerOptions{DataDir: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := remoteserver.New(store, "appdata", "", logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return New(ts.URL, "app1", logger), ts
}

func TestHTTPGateway_PutThenGet(t *testing.T) {
	client, _ := newTestBackend(t)
	ctx := context.Background()

	stored, err := client.Put(ctx, "notes", &entity.Entity{ID: "a", Fields: map[string]any{"name": "A"}}, gateway.Options{})
	require.NoError(t, err)
	assert.Equal(t, "a", stored.ID)

	got, err := client.Get(ctx, "notes", "a", gateway.Options{})
	require.NoError(t, err)
	assert.Equal(t, "A", got.Fields["name"])
}

func TestHTTPGateway_PostWithoutIDCreatesServerID(t *testing.T) {
	client, _ := newTestBackend(t)
	stored, err := client.Put(context.Background(), "notes", &entity.Entity{Fields: map[string]any{"name": "A"}}, gateway.Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
}

func TestHTTPGateway_GetMissingReturnsNotFound(t *testing.T) {
	client, _ := newTestBackend(t)
	_, err := client.Get(context.Background(), "notes", "missing", gateway.Options{})
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestHTTPGateway_DeleteReportsCount(t *testing.T) {
	client, _ := newTestBackend(t)
	ctx := context.Background()
	_, err := client.Put(ctx, "notes", &entity.Entity{ID: "a"}, gateway.Options{})
	require.NoError(t, err)

	count, err := client.Delete(ctx, "notes", "a", gateway.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHTTPGateway_FindByIDs(t *testing.T) {
	client, _ := newTestBackend(t)
	ctx := context.Background()
	_, err := client.Put(ctx, "notes", &entity.Entity{ID: "a"}, gateway.Options{})
	require.NoError(t, err)
	_, err = client.Put(ctx, "notes", &entity.Entity{ID: "b"}, gateway.Options{})
	require.NoError(t, err)

	rows, err := client.Find(ctx, "notes", query.ByIDs("a"), gateway.Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].ID)
}

func TestHTTPGateway_CountAndGroup(t *testing.T) {
	client, _ := newTestBackend(t)
	ctx := context.Background()
	_, err := client.Put(ctx, "notes", &entity.Entity{ID: "a"}, gateway.Options{})
	require.NoError(t, err)

	count, err := client.Count(ctx, "notes", query.Empty(), gateway.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = client.Group(ctx, "notes", map[string]string{"by": "name"}, gateway.Options{})
	require.NoError(t, err)
}

func TestHTTPGateway_DeltaGetWithoutWatermarkBehavesLikeFullFetch(t *testing.T) {
	client, _ := newTestBackend(t)
	ctx := context.Background()
	_, err := client.Put(ctx, "notes", &entity.Entity{ID: "a"}, gateway.Options{})
	require.NoError(t, err)

	rows, err := client.DeltaGet(ctx, "notes", timeZero, gateway.Options{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestHTTPGateway_ParseIDsAndCount(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseIDs("a,b"))
	assert.Nil(t, ParseIDs(""))

	n, err := ParseCount("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
