package synccore

import (
	"context"
	"time"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/query"
)

// fetchRemote implements §4.5 Delta Fetch: when useDeltaFetch is enabled it
// issues a conditional query bounded by the newest lmt observed in the
// local cache snapshot; the watermark is always derived from the snapshot,
// never supplied by the caller. A snapshot with no lmt yields the zero
// time, which Gateway.DeltaGet treats as a full fetch. The delta query is
// not restricted by q. A plain Find with q is used when useDeltaFetch is
// disabled. Finder.Find reconciles deletions only against the plain Find
// result; a delta result is upserted without deleting the ids it omits.
func fetchRemote(ctx context.Context, gw gateway.Gateway, collection string, q query.Query, cacheSnapshot []*entity.Entity, opts gateway.Options) ([]*entity.Entity, error) {
	if !opts.UseDeltaFetch {
		return gw.Find(ctx, collection, q, opts)
	}
	since := maxLastModified(cacheSnapshot)
	return gw.DeltaGet(ctx, collection, since, opts)
}

func maxLastModified(entities []*entity.Entity) time.Time {
	var max time.Time
	for _, e := range entities {
		if lmt := e.LastModified(); lmt.After(max) {
			max = lmt
		}
	}
	return max
}
