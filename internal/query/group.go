package query

import (
	"fmt"

	"github.com/roach88/graphq/internal/graph"
)

// Operator combines the children of a Group.
type Operator string

const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
	OperatorNot Operator = "not"
)

// Group is a composite node. The zero operator is AND.
//
// Semantics:
//   - AND: every child matches; an empty AND matches everything
//   - OR: some child matches (short-circuit); an empty OR matches nothing
//   - NOT: no child matches, i.e. AND(!child...) evaluated per child
type Group struct {
	op       Operator
	children []Node
	query    *Query
}

func (*Group) queryNode() {}

// NewGroup builds a detached group. Builder methods on a detached group
// resolve keys without a schema.
func NewGroup(op Operator, children ...Node) *Group {
	if op == "" {
		op = OperatorAnd
	}
	return &Group{op: op, children: children}
}

// Op returns the group operator.
func (g *Group) Op() Operator { return g.op }

// Children returns the child nodes in insertion order.
// The slice is a copy; the tree itself is not modified through it.
func (g *Group) Children() []Node {
	out := make([]Node, len(g.children))
	copy(out, g.children)
	return out
}

// Query returns the owning query, or nil for a detached group.
func (g *Group) Query() *Query { return g.query }

// Matches implements Node.
func (g *Group) Matches(e graph.Entity) bool {
	switch g.op {
	case OperatorOr:
		for _, c := range g.children {
			if c.Matches(e) {
				return true
			}
		}
		return false
	case OperatorNot:
		for _, c := range g.children {
			if c.Matches(e) {
				return false
			}
		}
		return true
	default:
		for _, c := range g.children {
			if !c.Matches(e) {
				return false
			}
		}
		return true
	}
}

// Exact implements Node.
func (g *Group) Exact() bool {
	for _, c := range g.children {
		if !c.Exact() {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the group has no children or only empty groups.
// A single leaf anywhere makes the group non-empty.
func (g *Group) IsEmpty() bool {
	for _, c := range g.children {
		sub, ok := c.(*Group)
		if !ok || !sub.IsEmpty() {
			return false
		}
	}
	return true
}

func (g *Group) String() string {
	return fmt.Sprintf("%s%v", g.op, g.children)
}

// MatchWith evaluates a tree using leafFn for leaves and group semantics for
// groups. Backends use it to evaluate the parts of a tree they handle
// themselves.
func MatchWith(n Node, e graph.Entity, leafFn func(Predicate, graph.Entity) bool) bool {
	g, ok := n.(*Group)
	if !ok {
		p, ok := n.(Predicate)
		if !ok {
			return n.Matches(e)
		}
		return leafFn(p, e)
	}
	switch g.op {
	case OperatorOr:
		for _, c := range g.children {
			if MatchWith(c, e, leafFn) {
				return true
			}
		}
		return false
	case OperatorNot:
		for _, c := range g.children {
			if MatchWith(c, e, leafFn) {
				return false
			}
		}
		return true
	default:
		for _, c := range g.children {
			if !MatchWith(c, e, leafFn) {
				return false
			}
		}
		return true
	}
}

// MatchRelaxed evaluates the superset an index produces when it can only
// evaluate exact-pushdown leaves. Leaves without exact pushdown count as true;
// under NOT, children that are not entirely exact are dropped. exactFn
// evaluates the exact leaves.
//
// The result is true for every entity n.Matches accepts.
func MatchRelaxed(n Node, e graph.Entity, exactFn func(Predicate, graph.Entity) bool) bool {
	switch v := n.(type) {
	case *Group:
		switch v.op {
		case OperatorOr:
			for _, c := range v.children {
				if MatchRelaxed(c, e, exactFn) {
					return true
				}
			}
			return false
		case OperatorNot:
			for _, c := range v.children {
				if !FullyExact(c) {
					continue
				}
				if MatchWith(c, e, exactFn) {
					return false
				}
			}
			return true
		default:
			for _, c := range v.children {
				if !MatchRelaxed(c, e, exactFn) {
					return false
				}
			}
			return true
		}
	case Predicate:
		if v.Pushdown() != PushExact {
			return true
		}
		return exactFn(v, e)
	default:
		return true
	}
}

// FullyExact reports whether every leaf under n has exact pushdown.
func FullyExact(n Node) bool {
	exact := true
	Walk(n, func(c Node, _ Operator) bool {
		if p, ok := c.(Predicate); ok && p.Pushdown() != PushExact {
			exact = false
		}
		return exact
	})
	return exact
}
