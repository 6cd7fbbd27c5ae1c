package synccore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/entitystore"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/ledger"
)

// SuccessEntry is one reconciled ledger entry.
type SuccessEntry struct {
	ID     string
	Entity *entity.Entity
}

// ErrorEntry is one ledger entry that failed to reconcile.
type ErrorEntry struct {
	ID  string
	Err error
}

// PushResult is the Push Engine's output: which ids reconciled and which
// failed, per collection.
type PushResult struct {
	Collection string
	Success    []SuccessEntry
	Error      []ErrorEntry
}

// Pusher is the Push Engine: drains the ledger to the remote, reclassifying
// failures into retry-later or give-up-locally per §4.2 step 5.
type Pusher struct {
	Store     entitystore.Store
	Ledger    ledger.Ledger
	Gateway   gateway.Gateway
	Locks     *CollectionLocks
	Namespace string
	AppKey    string
	FanOut    int
	Logger    *logrus.Logger
}

func (p *Pusher) logger() *logrus.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logrus.StandardLogger()
}

// Push drains the ledger for collection. If ids is non-empty, only those
// ledger entries are processed (the restricted push save/remove trigger);
// all other entries are left untouched in the ledger. The push itself is
// serialized per collection via Locks (§5).
func (p *Pusher) Push(ctx context.Context, collection string, ids []string, opts gateway.Options) (*PushResult, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", ErrInvalidArgument)
	}

	p.Locks.Lock(collection)
	defer p.Locks.Unlock(collection)

	result := &PushResult{Collection: collection}

	rec, err := p.Ledger.Read(ctx, p.AppKey, collection)
	if errors.Is(err, ledger.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("push %s: read ledger: %w", collection, err)
	}

	target := targetIDs(rec, ids)
	if len(target) == 0 {
		return result, nil
	}

	saveList, deleteList, err := p.classify(ctx, collection, target)
	if err != nil {
		return nil, fmt.Errorf("push %s: classify: %w", collection, err)
	}

	saveOutcomes := fanOut(saveList, p.fanOut(), func(e *entity.Entity) pushOutcome {
		return p.executeSave(ctx, collection, e, opts)
	})
	deleteOutcomes := fanOut(deleteList, p.fanOut(), func(id string) pushOutcome {
		return p.executeDelete(ctx, collection, id, opts)
	})

	for _, o := range append(saveOutcomes, deleteOutcomes...) {
		if o.removeFromLedger {
			rec.Remove(o.id)
		}
		if o.success != nil {
			result.Success = append(result.Success, *o.success)
		}
		if o.errEntry != nil {
			result.Error = append(result.Error, *o.errEntry)
		}
	}

	if err := p.Ledger.Write(ctx, p.AppKey, collection, rec); err != nil {
		return nil, fmt.Errorf("push %s: write ledger: %w", collection, err)
	}
	return result, nil
}

func (p *Pusher) fanOut() int {
	if p.FanOut > 0 {
		return p.FanOut
	}
	return DefaultFanOut
}

// targetIDs returns the ledger ids this push should act on: the explicit
// restriction if given, else every pending entry.
func targetIDs(rec *ledger.Record, ids []string) []string {
	if len(ids) == 0 {
		out := make([]string, 0, len(rec.Entries))
		for id := range rec.Entries {
			out = append(out, id)
		}
		return out
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := rec.Entries[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// classify reads each target id from the Entity Store: present rows go to
// the save list, NotFound rows go to the delete list, any other error
// aborts the whole push (§4.2 step 2).
func (p *Pusher) classify(ctx context.Context, collection string, ids []string) ([]*entity.Entity, []string, error) {
	var saveList []*entity.Entity
	var deleteList []string
	for _, id := range ids {
		e, err := p.Store.Get(ctx, p.Namespace, p.AppKey, collection, id)
		if errors.Is(err, entitystore.ErrNotFound) {
			deleteList = append(deleteList, id)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		saveList = append(saveList, e)
	}
	return saveList, deleteList, nil
}

type pushOutcome struct {
	id               string
	removeFromLedger bool
	success          *SuccessEntry
	errEntry         *ErrorEntry
}

// executeSave implements §4.2 step 3: POST-then-retire for local entities,
// PUT-in-place otherwise.
func (p *Pusher) executeSave(ctx context.Context, collection string, e *entity.Entity, opts gateway.Options) pushOutcome {
	if e.IsLocal() {
		return p.executeCreate(ctx, collection, e, opts)
	}
	return p.executeUpdate(ctx, collection, e, opts)
}

func (p *Pusher) executeCreate(ctx context.Context, collection string, e *entity.Entity, opts gateway.Options) pushOutcome {
	tempID := e.ID
	stripped := &entity.Entity{Fields: e.Fields}

	stored, err := p.Gateway.Put(ctx, collection, stripped, opts)
	if err != nil {
		return p.classifyFailure(tempID, err)
	}

	if err := p.Store.Put(ctx, p.Namespace, p.AppKey, collection, stored); err != nil {
		p.logger().WithError(err).WithField("id", stored.ID).Error("push: failed to store canonical entity")
		return pushOutcome{id: tempID, errEntry: &ErrorEntry{ID: tempID, Err: err}}
	}

	count, err := p.Store.Delete(ctx, p.Namespace, p.AppKey, collection, tempID)
	if err != nil {
		p.logger().WithError(err).WithField("id", tempID).Error("push: failed to delete temp-id row")
	}

	out := pushOutcome{id: tempID, removeFromLedger: true, success: &SuccessEntry{ID: tempID, Entity: stored}}
	if err != nil || count != 1 {
		out.errEntry = &ErrorEntry{ID: tempID, Err: fmt.Errorf("%w: temp-id cleanup deleted %d rows", ErrCountMismatch, count)}
	}
	return out
}

func (p *Pusher) executeUpdate(ctx context.Context, collection string, e *entity.Entity, opts gateway.Options) pushOutcome {
	stored, err := p.Gateway.Put(ctx, collection, e, opts)
	if err != nil {
		return p.classifyFailure(e.ID, err)
	}
	return pushOutcome{id: e.ID, removeFromLedger: true, success: &SuccessEntry{ID: e.ID, Entity: stored}}
}

// executeDelete implements §4.2 step 4.
func (p *Pusher) executeDelete(ctx context.Context, collection, id string, opts gateway.Options) pushOutcome {
	count, err := p.Gateway.Delete(ctx, collection, id, opts)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return pushOutcome{id: id, removeFromLedger: true, success: &SuccessEntry{ID: id}}
		}
		return p.classifyFailure(id, err)
	}
	if count != 1 {
		return pushOutcome{id: id, errEntry: &ErrorEntry{ID: id, Err: fmt.Errorf("%w: delete reported %d rows", ErrCountMismatch, count)}}
	}
	return pushOutcome{id: id, removeFromLedger: true, success: &SuccessEntry{ID: id}}
}

// classifyFailure implements §4.2 step 5 / §4.7's any-pending-state →
// absent transition on InsufficientCredentials, and the self-loop on any
// other error.
func (p *Pusher) classifyFailure(id string, err error) pushOutcome {
	if errors.Is(err, gateway.ErrInsufficientCredentials) {
		return pushOutcome{id: id, removeFromLedger: true, errEntry: &ErrorEntry{ID: id, Err: err}}
	}
	return pushOutcome{id: id, errEntry: &ErrorEntry{ID: id, Err: err}}
}
