package store

import (
	"testing"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
)

// createTestStore creates a new in-memory store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testNode creates a node record with the given properties.
func testNode(id, typ string, props ir.IRObject) graph.Record {
	return graph.Record{ID: id, Kind: graph.KindNode, Type: typ, Props: props}
}

// testRel creates a relationship record between two entities.
func testRel(id, typ, source, target string) graph.Record {
	return graph.Record{ID: id, Kind: graph.KindRelationship, Type: typ, Source: source, Target: target}
}
