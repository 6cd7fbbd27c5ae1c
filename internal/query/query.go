// Package query models the opaque query object the core passes through to
// the Entity Store and Network Gateway. The core only ever constructs two
// shapes of it itself ("ids in {...}" and "empty"); any other instance is
// caller-supplied and opaque to the core beyond executing it.
package query

// Query is intentionally a thin value object. Callers may build richer
// predicates (filters, sorts, limits) external to this package; the core
// only inspects the Ids field it itself sets.
type Query struct {
	// Ids restricts the query to this set of entity ids. Nil means "not
	// restricted by id".
	Ids []string

	// Predicate is opaque caller-supplied filter state, passed through to
	// the Entity Store / Network Gateway without interpretation.
	Predicate any
}

// ByIDs builds the "ids ∈ {...}" query the core uses to restrict push,
// pull-reconciliation and dual-phase operations to a specific id set.
func ByIDs(ids ...string) Query {
	cp := make([]string, len(ids))
	copy(cp, ids)
	return Query{Ids: cp}
}

// Empty builds the query matching every entity in a collection.
func Empty() Query {
	return Query{}
}

// IsEmpty reports whether this query carries no id restriction and no
// caller predicate, i.e. it matches everything.
func (q Query) IsEmpty() bool {
	return len(q.Ids) == 0 && q.Predicate == nil
}

// HasIDs reports whether this query is an id-restriction query.
func (q Query) HasIDs() bool {
	return len(q.Ids) > 0
}
