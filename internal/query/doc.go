// Package query defines the predicate tree, the query builder and sort orders.
//
// A query is a tree of Nodes. Leaves are Predicates (comparison, range, type,
// distance, notion projection, array, emptiness, fulltext, identity and
// relationship visibility); inner nodes are Groups combining children under
// AND, OR or NOT.
//
// Node and Predicate are sealed interfaces: only types in this package
// implement them. Backends (the SQL compiler, the memory index) type-switch
// over the closed set of leaves and can rely on seeing every kind.
//
// NOT groups negate each child individually and conjoin the results:
//
//	Not(a, b).Matches(e) == !a.Matches(e) && !b.Matches(e)
//
// This is not the negation of And(a, b). Callers wanting !(a && b) write
// Or(Not(a), Not(b)).
//
// A tree is built once through the builder methods on *Query and *Group and
// then handed to an executor. Execution never mutates the tree; lazily derived
// state (compiled regular expressions, flattened search values) is built once
// per predicate under sync.Once.
package query
