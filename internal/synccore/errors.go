// Package synccore is the sync engine: the push/pull state machine, the
// reconciliation algorithm, and the composite sync orchestration that sit
// between the Cache Store facade and the Entity Store / Network Gateway /
// Sync Ledger collaborators.
package synccore

import "errors"

// Public-surface errors a Cache Store caller may observe, per the taxonomy
// the core surfaces independently of the push/pull failure classifier.
var (
	// ErrInvalidArgument marks a malformed query/aggregation instance or a
	// missing collection name on a ledger-touching operation.
	ErrInvalidArgument = errors.New("synccore: invalid argument")

	// ErrNotFound is re-raised to findById callers after a remote 404 has
	// already reconciled the entity out of the local store.
	ErrNotFound = errors.New("synccore: not found")

	// ErrPendingSync is pull's "push first" rejection when the ledger is
	// non-empty.
	ErrPendingSync = errors.New("synccore: pending sync, push required first")

	// ErrCountMismatch marks an unexpected delete count reported by a
	// collaborator (any count other than 1 where exactly one row was
	// expected).
	ErrCountMismatch = errors.New("synccore: count mismatch")
)
