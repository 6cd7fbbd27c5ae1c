package synccore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/entitystore"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/ledger"
	"github.com/cachesync/cachesync/internal/query"
)

// fakeStore is an in-memory entitystore.Store, keyed by collection then id,
// used so push/pull/find tests exercise the sync engine without a real
// BadgerDB instance.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]map[string]*entity.Entity
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]map[string]*entity.Entity{}}
}

func (s *fakeStore) bucket(collection string) map[string]*entity.Entity {
	b, ok := s.rows[collection]
	if !ok {
		b = map[string]*entity.Entity{}
		s.rows[collection] = b
	}
	return b
}

func (s *fakeStore) Get(_ context.Context, _, _, collection, id string) (*entity.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.bucket(collection)[id]
	if !ok {
		return nil, entitystore.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *fakeStore) Find(_ context.Context, _, _, collection string, q query.Query) ([]*entity.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Entity
	if q.HasIDs() {
		for _, id := range q.Ids {
			if e, ok := s.bucket(collection)[id]; ok {
				out = append(out, e.Clone())
			}
		}
		return out, nil
	}
	for _, e := range s.bucket(collection) {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (s *fakeStore) Put(_ context.Context, _, _, collection string, e *entity.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket(collection)[e.ID] = e.Clone()
	return nil
}

func (s *fakeStore) Delete(_ context.Context, _, _, collection, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(collection)
	if _, ok := b[id]; !ok {
		return 0, nil
	}
	delete(b, id)
	return 1, nil
}

func (s *fakeStore) DeleteMatching(ctx context.Context, namespace, appKey, collection string, q query.Query) (int, error) {
	ids := q.Ids
	if !q.HasIDs() {
		all, _ := s.Find(ctx, namespace, appKey, collection, query.Empty())
		for _, e := range all {
			ids = append(ids, e.ID)
		}
	}
	n := 0
	for _, id := range ids {
		c, _ := s.Delete(ctx, namespace, appKey, collection, id)
		n += c
	}
	return n, nil
}

func (s *fakeStore) Count(ctx context.Context, namespace, appKey, collection string, q query.Query) (int, error) {
	rows, err := s.Find(ctx, namespace, appKey, collection, q)
	return len(rows), err
}

func (s *fakeStore) Close() error { return nil }

// fakeLedger is an in-memory ledger.Ledger.
type fakeLedger struct {
	mu   sync.Mutex
	recs map[string]*ledger.Record
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{recs: map[string]*ledger.Record{}}
}

func (l *fakeLedger) Read(_ context.Context, _, collection string) (*ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.recs[collection]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *rec
	cp.Entries = map[string]ledger.Entry{}
	for k, v := range rec.Entries {
		cp.Entries[k] = v
	}
	return &cp, nil
}

func (l *fakeLedger) Write(_ context.Context, _, collection string, rec *ledger.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec.Size != len(rec.Entries) {
		return errors.New("ledger invariant violated")
	}
	l.recs[collection] = rec
	return nil
}

func (l *fakeLedger) Count(ctx context.Context, appKey, collection string) (int, error) {
	rec, err := l.Read(ctx, appKey, collection)
	if errors.Is(err, ledger.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Size, nil
}

// fakeGateway is a scriptable gateway.Gateway: every method delegates to an
// optional function field, defaulting to a not-implemented panic so a test
// that exercises an unexpected call fails loudly instead of silently.
type fakeGateway struct {
	mu sync.Mutex

	GetFn      func(ctx context.Context, collection, id string) (*entity.Entity, error)
	FindFn     func(ctx context.Context, collection string, q query.Query) ([]*entity.Entity, error)
	PutFn      func(ctx context.Context, collection string, e *entity.Entity) (*entity.Entity, error)
	DeleteFn   func(ctx context.Context, collection, id string) (int, error)
	DeltaGetFn func(ctx context.Context, collection string) ([]*entity.Entity, error)

	putCalls    []string
	deleteCalls []string
}

func (g *fakeGateway) Get(ctx context.Context, collection, id string, _ gateway.Options) (*entity.Entity, error) {
	return g.GetFn(ctx, collection, id)
}

func (g *fakeGateway) Find(ctx context.Context, collection string, q query.Query, _ gateway.Options) ([]*entity.Entity, error) {
	return g.FindFn(ctx, collection, q)
}

func (g *fakeGateway) Put(ctx context.Context, collection string, e *entity.Entity, _ gateway.Options) (*entity.Entity, error) {
	g.mu.Lock()
	g.putCalls = append(g.putCalls, e.ID)
	g.mu.Unlock()
	return g.PutFn(ctx, collection, e)
}

func (g *fakeGateway) Delete(ctx context.Context, collection, id string, _ gateway.Options) (int, error) {
	g.mu.Lock()
	g.deleteCalls = append(g.deleteCalls, id)
	g.mu.Unlock()
	return g.DeleteFn(ctx, collection, id)
}

func (g *fakeGateway) DeltaGet(ctx context.Context, collection string, _ time.Time, _ gateway.Options) ([]*entity.Entity, error) {
	return g.DeltaGetFn(ctx, collection)
}

func (g *fakeGateway) Group(_ context.Context, _ string, _ any, _ gateway.Options) (any, error) {
	return nil, errors.New("not implemented in fake")
}

func (g *fakeGateway) Count(ctx context.Context, collection string, q query.Query, _ gateway.Options) (int, error) {
	rows, err := g.FindFn(ctx, collection, q)
	return len(rows), err
}

// ledgerRecordWith builds a ledger.Record with one pending entry per id,
// used across push/find/pull tests to seed a fakeLedger.
func ledgerRecordWith(ids ...string) *ledger.Record {
	rec := ledger.NewRecord("notes")
	for _, id := range ids {
		rec.Put(id, ledger.Entry{})
	}
	return rec
}
