// Package graph defines the entities that queries run against.
//
// An Entity is a node or a relationship with a primary type, an optional set
// of traits, a visibility flag and a bag of ir.IRValue properties. Relationship
// entities also carry the IDs of their source and target nodes.
//
// The package also holds the property metadata a query needs to interpret a
// key (PropertyKey, Schema), the storage interfaces the executor consumes
// (Resolver, Store) and Memory, an in-process Store used by tests, the memory
// index and the harness.
package graph
