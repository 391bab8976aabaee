package query

import (
	"context"

	"github.com/roach88/graphq/internal/graph"
)

// Node is an element of a predicate tree: a leaf Predicate or a *Group.
//
// This is a sealed interface - only types in this package implement it.
type Node interface {
	// Matches evaluates the node against one entity. It is deterministic and
	// has no side effects.
	Matches(e graph.Entity) bool

	// Exact reports whether the node requires precise equality or membership
	// rather than fuzzy matching. A group is exact when all children are.
	Exact() bool

	queryNode() // Marker method - seals interface to this package
}

// Pushdown describes how faithfully an index can evaluate a predicate.
type Pushdown int

const (
	// PushNone: the index cannot evaluate the predicate at all.
	PushNone Pushdown = iota
	// PushApprox: the index can return a superset of the matches.
	PushApprox
	// PushExact: the index evaluates the predicate exactly.
	PushExact
)

func (p Pushdown) String() string {
	switch p {
	case PushExact:
		return "exact"
	case PushApprox:
		return "approx"
	default:
		return "none"
	}
}

// Predicate is a leaf of the tree.
type Predicate interface {
	Node

	// Indexable reports whether the predicate contributes to an index query.
	Indexable() bool

	// Pushdown reports how an index evaluates the predicate.
	Pushdown() Pushdown

	// Kind is a short tag for diagnostics ("comparison", "range", ...).
	Kind() string
}

// Source is a predicate able to enumerate its own complete candidate set.
// The candidates are a superset of the entities the predicate matches.
type Source interface {
	Predicate

	// IsSource reports whether the predicate currently acts as a source.
	// A distance predicate only does so once its coordinates are known.
	IsSource() bool

	// Candidates streams the candidates to yield. An error from yield ends
	// the enumeration and is returned unchanged.
	Candidates(ctx context.Context, store graph.Store, kind graph.Kind, typeName string, yield func(graph.Entity) error) error
}

// Env carries what predicates need at preparation time.
type Env struct {
	// Resolve looks up a related entity. A miss or failure reports false.
	Resolve func(id string) (graph.Entity, bool)
}

func (env Env) resolve(id string) (graph.Entity, bool) {
	if env.Resolve == nil {
		return nil, false
	}
	return env.Resolve(id)
}

// preparer is implemented by leaves that validate or bind state before matching.
type preparer interface {
	prepare(env Env) error
}

// Prepare walks the tree, validating predicates (regular expressions, range
// bounds) and binding the resolver used for related-entity projection.
// The first error is returned.
func Prepare(root Node, env Env) error {
	var err error
	Walk(root, func(n Node, _ Operator) bool {
		if p, ok := n.(preparer); ok {
			if perr := p.prepare(env); perr != nil {
				err = perr
				return false
			}
		}
		return true
	})
	return err
}

// Walk visits every node depth first. fn receives the operator of the
// enclosing group (OperatorAnd for the root) and returns false to stop.
func Walk(root Node, fn func(n Node, parent Operator) bool) {
	walk(root, OperatorAnd, fn)
}

func walk(n Node, parent Operator, fn func(Node, Operator) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n, parent) {
		return false
	}
	if g, ok := n.(*Group); ok {
		for _, child := range g.children {
			if !walk(child, g.op, fn) {
				return false
			}
		}
	}
	return true
}
