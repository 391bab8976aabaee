// Package memindex provides an in-process query.Index.
//
// Entities are held in a graph.Memory. Alongside it, per-key B-trees of
// numeric and text property values and per-type ID sets let a search start
// from the entities that can satisfy the top-level equality, range, type and
// identity predicates instead of the whole store. Every candidate is then
// evaluated with query.MatchRelaxed, the same relaxed semantics the SQL
// compiler produces, so both indexes return the same superset.
package memindex
