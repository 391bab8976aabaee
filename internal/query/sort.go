package query

import (
	"cmp"
	"slices"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
)

// SortOrder is a total order over entities.
type SortOrder interface {
	Compare(a, b graph.Entity) int
}

// SortSpec orders by one property key.
type SortSpec struct {
	Key        graph.PropertyKey
	Descending bool
}

// DefaultSortOrder compares by each spec in turn; the first non-zero result
// wins. Nulls sort first ascending and last descending.
type DefaultSortOrder struct {
	Specs []SortSpec
}

// Compare implements SortOrder. Nil entities are a programming error.
func (o DefaultSortOrder) Compare(a, b graph.Entity) int {
	if a == nil || b == nil {
		panic("query: DefaultSortOrder.Compare on nil entity")
	}
	for _, s := range o.Specs {
		c := compareSortValues(SortValue(a, s.Key), SortValue(b, s.Key))
		if s.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// SortValue extracts the value an entity is ordered by: the first element of
// the flattened property, normalized to the key's sort type. Numeric sort
// types yield IRFloat (bools as 0 and 1); other sort types yield the string
// form. Values that do not fit the sort type are null.
func SortValue(e graph.Entity, key graph.PropertyKey) ir.IRValue {
	flat := ir.Flatten(e.Get(key.Name))
	if len(flat) == 0 {
		return ir.IRNull{}
	}
	v := flat[0]
	if key.SortType().Numeric() {
		switch n := v.(type) {
		case ir.IRInt:
			return ir.IRFloat(float64(n))
		case ir.IRFloat:
			return n
		case ir.IRBool:
			if n {
				return ir.IRFloat(1)
			}
			return ir.IRFloat(0)
		default:
			return ir.IRNull{}
		}
	}
	return ir.IRString(ir.Stringify(v))
}

// compareSortValues orders nulls before everything else.
func compareSortValues(a, b ir.IRValue) int {
	an, bn := ir.IsNull(a), ir.IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	c, ok := ir.Compare(a, b)
	if !ok {
		return cmp.Compare(ir.Stringify(a), ir.Stringify(b))
	}
	return c
}

// DerivedOrder orders entities by an externally resolved scalar, such as an
// evaluated expression. Null handling matches DefaultSortOrder.
type DerivedOrder struct {
	Value      func(graph.Entity) ir.IRValue
	Descending bool
}

// Compare implements SortOrder.
func (o DerivedOrder) Compare(a, b graph.Entity) int {
	if a == nil || b == nil {
		panic("query: DerivedOrder.Compare on nil entity")
	}
	c := compareSortValues(o.Value(a), o.Value(b))
	if o.Descending {
		return -c
	}
	return c
}

// ComparatorOrder adapts a caller-supplied comparison function.
type ComparatorOrder func(a, b graph.Entity) int

// Compare implements SortOrder.
func (f ComparatorOrder) Compare(a, b graph.Entity) int { return f(a, b) }

// ByID orders entities by ID.
func ByID(a, b graph.Entity) int {
	return cmp.Compare(a.ID(), b.ID())
}

// SortEntities sorts in place: first by ID, then stably by order, so ties
// keep ID order. A nil order leaves the ID order.
func SortEntities(entities []graph.Entity, order SortOrder) {
	slices.SortFunc(entities, ByID)
	if order == nil {
		return
	}
	slices.SortStableFunc(entities, order.Compare)
}

// Pushable reports whether an index can apply the order itself.
func Pushable(order SortOrder) bool {
	switch order.(type) {
	case nil, DefaultSortOrder, *DefaultSortOrder:
		return true
	}
	return false
}
