// Package store provides SQLite-backed storage for graph entities.
//
// Each entity is one row in entities, with its traits in traits and its
// property values decomposed into props rows (see querysql.EncodeProps), so
// that predicate trees compile to EXISTS subqueries over indexed columns.
// The props JSON column keeps the original values for reconstruction.
//
// # Deterministic Results
//
// Every read orders by id COLLATE BINARY, after any requested sort keys.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Derived rows cascade with their entity
package store
