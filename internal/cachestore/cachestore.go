// Package cachestore is the Cache Store facade (§4.1): the public
// operation contracts (find, findById, group, count, save, remove,
// removeById) that compose the Entity Store, Sync Ledger and sync engine
// into the dual-phase read/write surface callers see.
package cachestore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/entitystore"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/ledger"
	"github.com/cachesync/cachesync/internal/query"
	"github.com/cachesync/cachesync/internal/synccore"
)

// Store is one collection's Cache Store instance.
type Store struct {
	collection string
	namespace  string
	appKey     string

	entityStore entitystore.Store
	ledger      ledger.Ledger
	locks       *synccore.CollectionLocks

	finder *synccore.Finder
	pusher *synccore.Pusher
	puller *synccore.Puller
	orch   *synccore.Orchestrator

	logger *logrus.Logger
}

// Config wires a Store's collaborators. Locks must be shared across every
// Store for the same collection in the process (§5's registry requirement)
// — construct one synccore.CollectionLocks per process/app and pass it to
// every collection's Store.
type Config struct {
	Collection string
	Namespace  string
	AppKey     string

	EntityStore entitystore.Store
	Ledger      ledger.Ledger
	Gateway     gateway.Gateway
	Locks       *synccore.CollectionLocks

	FanOut int
	Logger *logrus.Logger
}

// New builds a Store for one collection.
func New(cfg Config) (*Store, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", synccore.ErrInvalidArgument)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Locks == nil {
		cfg.Locks = synccore.NewCollectionLocks()
	}

	pusher := &synccore.Pusher{
		Store:     cfg.EntityStore,
		Ledger:    cfg.Ledger,
		Gateway:   cfg.Gateway,
		Locks:     cfg.Locks,
		Namespace: cfg.Namespace,
		AppKey:    cfg.AppKey,
		FanOut:    cfg.FanOut,
		Logger:    cfg.Logger,
	}
	finder := &synccore.Finder{
		Store:     cfg.EntityStore,
		Pusher:    pusher,
		Namespace: cfg.Namespace,
		AppKey:    cfg.AppKey,
	}
	puller := &synccore.Puller{Finder: finder, Pusher: pusher}

	return &Store{
		collection:  cfg.Collection,
		namespace:   cfg.Namespace,
		appKey:      cfg.AppKey,
		entityStore: cfg.EntityStore,
		ledger:      cfg.Ledger,
		locks:       cfg.Locks,
		finder:      finder,
		pusher:      pusher,
		puller:      puller,
		orch:        &synccore.Orchestrator{Pusher: pusher, Puller: puller},
		logger:      cfg.Logger,
	}, nil
}

// Find executes query against the Entity Store and returns its dual-phase
// result (§4.1 find).
func (s *Store) Find(ctx context.Context, q query.Query, opts gateway.Options) (*synccore.DualResult[[]*entity.Entity], error) {
	return s.finder.Find(ctx, s.collection, q, opts)
}

// FindByID implements §4.1 findById(id).
func (s *Store) FindByID(ctx context.Context, id string, opts gateway.Options) (*synccore.DualResult[*entity.Entity], error) {
	return s.finder.FindByID(ctx, s.collection, id, opts)
}

// Group implements §4.1 group(agg).
func (s *Store) Group(ctx context.Context, agg any, localAgg func([]*entity.Entity) (any, error), opts gateway.Options) (*synccore.DualResult[any], error) {
	return s.finder.Group(ctx, s.collection, agg, localAgg, opts)
}

// Count implements §4.1 count(query?).
func (s *Store) Count(ctx context.Context, q query.Query, opts gateway.Options) (*synccore.DualResult[int], error) {
	return s.finder.Count(ctx, s.collection, q, opts)
}

// Save implements §4.1 save(entity): method is determined by id presence,
// the mutation lands in the Entity Store before the ledger append, and a
// restricted push is kicked off immediately after (§4.1's ordering
// invariant: Entity-Store-mutation happens-before ledger-append
// happens-before push-kickoff).
func (s *Store) Save(ctx context.Context, e *entity.Entity, opts gateway.Options) (*entity.Entity, *synccore.PushResult, error) {
	stored := e.Clone()
	if stored.ID == "" {
		stored.ID = "tmp-" + uuid.NewString()
		stored.Metadata = &entity.Metadata{Local: true}
	}
	now := time.Now().UTC()
	if stored.Metadata == nil {
		stored.Metadata = &entity.Metadata{}
	}
	if stored.Metadata.LastModifiedTime == nil {
		stored.Metadata.LastModifiedTime = &now
	}

	if err := s.entityStore.Put(ctx, s.namespace, s.appKey, s.collection, stored); err != nil {
		return nil, nil, fmt.Errorf("save %s/%s: %w", s.collection, stored.ID, err)
	}

	if err := s.appendLedger(ctx, stored.ID, stored.LastModified()); err != nil {
		s.logger.WithError(err).WithField("id", stored.ID).Error("save: ledger append failed, local state not rolled back")
		return stored, nil, nil
	}

	push, err := s.pusher.Push(ctx, s.collection, []string{stored.ID}, opts)
	return stored, push, err
}

// Remove implements §4.1 remove(query?): only the ids actually deleted are
// appended to the ledger and pushed, per the reimplementers' note in §9
// ("push only the actually-affected ids").
func (s *Store) Remove(ctx context.Context, q query.Query, opts gateway.Options) (int, *synccore.PushResult, error) {
	matched, err := s.entityStore.Find(ctx, s.namespace, s.appKey, s.collection, q)
	if err != nil {
		return 0, nil, fmt.Errorf("remove %s: %w", s.collection, err)
	}
	if len(matched) == 0 {
		return 0, &synccore.PushResult{Collection: s.collection}, nil
	}

	ids := make([]string, 0, len(matched))
	for _, e := range matched {
		ids = append(ids, e.ID)
	}

	count, err := s.entityStore.DeleteMatching(ctx, s.namespace, s.appKey, s.collection, query.ByIDs(ids...))
	if err != nil {
		return 0, nil, fmt.Errorf("remove %s: %w", s.collection, err)
	}

	for _, id := range ids {
		if err := s.appendLedger(ctx, id, time.Time{}); err != nil {
			s.logger.WithError(err).WithField("id", id).Error("remove: ledger append failed")
		}
	}

	push, err := s.pusher.Push(ctx, s.collection, ids, opts)
	return count, push, err
}

// RemoveByID implements §4.1 removeById(id).
func (s *Store) RemoveByID(ctx context.Context, id string, opts gateway.Options) (int, *synccore.PushResult, error) {
	count, err := s.entityStore.Delete(ctx, s.namespace, s.appKey, s.collection, id)
	if err != nil {
		return 0, nil, fmt.Errorf("removeById %s/%s: %w", s.collection, id, err)
	}
	if count == 0 {
		return 0, &synccore.PushResult{Collection: s.collection}, nil
	}

	if err := s.appendLedger(ctx, id, time.Time{}); err != nil {
		s.logger.WithError(err).WithField("id", id).Error("removeById: ledger append failed")
	}

	push, err := s.pusher.Push(ctx, s.collection, []string{id}, opts)
	return count, push, err
}

// Sync implements §4.4: push() then pull(query).
func (s *Store) Sync(ctx context.Context, q query.Query, opts gateway.Options) (*synccore.SyncResult, error) {
	return s.orch.Sync(ctx, s.collection, q, opts)
}

// Push triggers an unrestricted push of every pending ledger entry.
func (s *Store) Push(ctx context.Context, opts gateway.Options) (*synccore.PushResult, error) {
	return s.pusher.Push(ctx, s.collection, nil, opts)
}

// Pull implements §4.3 directly (rejecting with ErrPendingSync if the
// ledger is non-empty).
func (s *Store) Pull(ctx context.Context, q query.Query, opts gateway.Options) ([]*entity.Entity, error) {
	return s.puller.Pull(ctx, s.collection, q, opts)
}

// appendLedger is the serialized read-modify-write of the ledger record
// (§5: "the implementation must serialize writes to the Sync Ledger"),
// using the same per-collection lock Pusher.Push takes so a save/remove's
// append can never interleave with a concurrent push's ledger write.
func (s *Store) appendLedger(ctx context.Context, id string, lmt time.Time) error {
	var outerErr error
	s.locks.WithLock(s.collection, func() {
		rec, err := s.ledger.Read(ctx, s.appKey, s.collection)
		if err != nil {
			if err != ledger.ErrNotFound {
				outerErr = err
				return
			}
			rec = ledger.NewRecord(s.collection)
		}
		rec.Put(id, ledger.Entry{LastModifiedTime: lmtPointer(lmt)})
		outerErr = s.ledger.Write(ctx, s.appKey, s.collection, rec)
	})
	return outerErr
}

func lmtPointer(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
