// Package engine plans and executes graph queries.
//
// The Executor turns a query.Query into a page of entities. One execution
// runs in the calling goroutine and proceeds in fixed steps:
//
//  1. Classify the predicate tree and geocode address-based distance
//     predicates, exactly once, before any matching.
//  2. Prepare predicates: compile regular expressions, validate ranges and
//     bind the related-entity resolver.
//  3. Route. A tree containing a source predicate (a related-entity lookup
//     or a resolved distance) never reaches the index; the union of the
//     sources' candidates is filtered in memory. Any other tree is pushed
//     down to the index together with the sort order and, when the index
//     can honor it exactly, the page window.
//  4. Post-filter candidates against the full tree whenever the index result
//     may be a superset.
//  5. Sort and page in memory when the index could not.
//
// ERROR MODEL:
//
// Predicate-level problems degrade toward exclusion: incomparable operands
// and failed geocoding make the predicate reject the entity. Structural
// problems (an invalid regex, a failing index, cancellation, exceeding the
// materialization budget) abort the execution with a *QueryError and no
// partial result.
//
// Non-superuser queries only see visible entities. Relationships are
// additionally hidden when either endpoint is hidden or missing.
package engine
