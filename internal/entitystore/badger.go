package entitystore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/query"
)

// BadgerStore implements Store on top of an embedded BadgerDB instance, the
// way internal/metadata.BadgerStore backs bucket/object metadata: one
// key-prefix scheme per logical namespace, opened once per data directory.
type BadgerStore struct {
	db     *badger.DB
	ready  atomic.Bool
	logger *logrus.Logger
}

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	DataDir    string
	SyncWrites bool
	Logger     *logrus.Logger
}

// NewBadgerStore opens (or creates) the BadgerDB instance at opts.DataDir.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	dbPath := filepath.Join(opts.DataDir, "entities")
	badgerOpts := badger.DefaultOptions(dbPath).
		WithLogger(nil).
		WithSyncWrites(opts.SyncWrites)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &BadgerStore{db: db, logger: opts.Logger}
	s.ready.Store(true)

	opts.Logger.WithField("path", dbPath).Info("entity store initialized")
	return s, nil
}

// ==================== Key Naming Scheme ====================

func entityKey(namespace, appKey, collection, id string) []byte {
	return []byte(fmt.Sprintf("entity:%s:%s:%s:%s", namespace, appKey, collection, id))
}

func entityListPrefix(namespace, appKey, collection string) []byte {
	return []byte(fmt.Sprintf("entity:%s:%s:%s:", namespace, appKey, collection))
}

func (s *BadgerStore) Get(ctx context.Context, namespace, appKey, collection, id string) (*entity.Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidArgument)
	}

	var e entity.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(namespace, appKey, collection, id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entity %s/%s: %w", collection, id, err)
	}
	return &e, nil
}

func (s *BadgerStore) Find(ctx context.Context, namespace, appKey, collection string, q query.Query) ([]*entity.Entity, error) {
	if q.Predicate != nil {
		return nil, fmt.Errorf("%w: opaque predicate queries are not supported by the local entity store", ErrInvalidArgument)
	}

	if q.HasIDs() {
		out := make([]*entity.Entity, 0, len(q.Ids))
		for _, id := range q.Ids {
			e, err := s.Get(ctx, namespace, appKey, collection, id)
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}

	var out []*entity.Entity
	prefix := entityListPrefix(namespace, appKey, collection)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var e entity.Entity
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, &e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	return out, nil
}

func (s *BadgerStore) Put(ctx context.Context, namespace, appKey, collection string, e *entity.Entity) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("%w: entity must have an id before Put", ErrInvalidArgument)
	}

	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entity %s: %w", e.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entityKey(namespace, appKey, collection, e.ID), val)
	})
	if err != nil {
		return fmt.Errorf("put entity %s/%s: %w", collection, e.ID, err)
	}
	s.logger.WithFields(logrus.Fields{"collection": collection, "id": e.ID}).Debug("entity stored")
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, namespace, appKey, collection, id string) (int, error) {
	key := entityKey(namespace, appKey, collection, id)
	count := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		count = 1
		return txn.Delete(key)
	})
	if err != nil {
		return 0, fmt.Errorf("delete entity %s/%s: %w", collection, id, err)
	}
	return count, nil
}

func (s *BadgerStore) DeleteMatching(ctx context.Context, namespace, appKey, collection string, q query.Query) (int, error) {
	ids := q.Ids
	if !q.HasIDs() {
		entities, err := s.Find(ctx, namespace, appKey, collection, q)
		if err != nil {
			return 0, err
		}
		for _, e := range entities {
			ids = append(ids, e.ID)
		}
	}

	deleted := 0
	for _, id := range ids {
		n, err := s.Delete(ctx, namespace, appKey, collection, id)
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}

func (s *BadgerStore) Count(ctx context.Context, namespace, appKey, collection string, q query.Query) (int, error) {
	entities, err := s.Find(ctx, namespace, appKey, collection, q)
	if err != nil {
		return 0, err
	}
	return len(entities), nil
}

func (s *BadgerStore) Close() error {
	s.ready.Store(false)
	return s.db.Close()
}

// IsReady reports whether the store is open and usable.
func (s *BadgerStore) IsReady() bool {
	return s.ready.Load()
}
