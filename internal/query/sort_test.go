package query

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
)

func years(n int) []graph.Entity {
	out := make([]graph.Entity, n)
	for i := range n {
		// IDs run against the year so ID order never masks the sort.
		out[i] = node(strconv.Itoa(100+n-i), "User", map[string]any{"year": 2000 + i})
	}
	return out
}

func yearsOf(entities []graph.Entity) []int64 {
	out := make([]int64, len(entities))
	for i, e := range entities {
		out[i] = int64(e.Get("year").(ir.IRInt))
	}
	return out
}

func TestSortByYear(t *testing.T) {
	s := testSchema()
	key := s.Resolve("User", "year")

	asc := years(20)
	SortEntities(asc, DefaultSortOrder{Specs: []SortSpec{{Key: key}}})
	desc := years(20)
	SortEntities(desc, DefaultSortOrder{Specs: []SortSpec{{Key: key, Descending: true}}})

	ay, dy := yearsOf(asc), yearsOf(desc)
	require.Len(t, ay, 20)
	assert.Equal(t, int64(2000), ay[0])
	assert.Equal(t, int64(2019), ay[19])
	for i := range ay {
		assert.Equal(t, ay[i], dy[len(dy)-1-i])
	}
}

func TestSortNullPlacement(t *testing.T) {
	key := testSchema().Resolve("User", "age")
	entities := []graph.Entity{
		node("a", "User", map[string]any{"age": 3}),
		node("b", "User", nil),
		node("c", "User", map[string]any{"age": 1}),
	}

	SortEntities(entities, DefaultSortOrder{Specs: []SortSpec{{Key: key}}})
	assert.Equal(t, []string{"b", "c", "a"}, graph.IDs(entities))

	SortEntities(entities, DefaultSortOrder{Specs: []SortSpec{{Key: key, Descending: true}}})
	assert.Equal(t, []string{"a", "c", "b"}, graph.IDs(entities))
}

func TestSortTiesFallThrough(t *testing.T) {
	s := testSchema()
	order := DefaultSortOrder{Specs: []SortSpec{
		{Key: s.Resolve("User", "age")},
		{Key: s.Resolve("User", "name"), Descending: true},
	}}
	entities := []graph.Entity{
		node("1", "User", map[string]any{"age": 30, "name": "ada"}),
		node("2", "User", map[string]any{"age": 20, "name": "bob"}),
		node("3", "User", map[string]any{"age": 30, "name": "cy"}),
		node("4", "User", map[string]any{"age": 30, "name": "cy"}),
	}
	SortEntities(entities, order)
	// 3 and 4 tie on both keys and keep ID order.
	assert.Equal(t, []string{"2", "3", "4", "1"}, graph.IDs(entities))
}

func TestSortValueNormalization(t *testing.T) {
	s := testSchema()
	e := node("x", "User", map[string]any{
		"age":  "42",
		"nums": []any{7, 3},
		"tags": []any{"b", "a"},
	})

	assert.Equal(t, ir.IRNull{}, SortValue(e, s.Resolve("User", "age")), "strings do not fit a numeric sort")
	assert.Equal(t, ir.IRFloat(7), SortValue(e, s.Resolve("User", "nums")))
	assert.Equal(t, ir.IRString("b"), SortValue(e, s.Resolve("User", "tags")))
	assert.Equal(t, ir.IRNull{}, SortValue(e, s.Resolve("User", "score")))
	assert.Equal(t, ir.IRString("x"), SortValue(e, graph.Identity()))
}

func TestSortNilEntityPanics(t *testing.T) {
	order := DefaultSortOrder{Specs: []SortSpec{{Key: graph.Key("name")}}}
	assert.Panics(t, func() { order.Compare(nil, node("a", "User", nil)) })
	assert.Panics(t, func() { order.Compare(node("a", "User", nil), nil) })
}

func TestSortEntitiesWithoutOrderUsesID(t *testing.T) {
	entities := []graph.Entity{node("c", "T", nil), node("a", "T", nil), node("b", "T", nil)}
	SortEntities(entities, nil)
	assert.Equal(t, []string{"a", "b", "c"}, graph.IDs(entities))
}

func TestDerivedOrder(t *testing.T) {
	lengths := map[string]int{"a": 3, "b": 1, "c": 2}
	order := DerivedOrder{
		Value: func(e graph.Entity) ir.IRValue {
			n, ok := lengths[e.ID()]
			if !ok {
				return ir.IRNull{}
			}
			return ir.IRInt(n)
		},
		Descending: true,
	}
	entities := []graph.Entity{node("a", "T", nil), node("b", "T", nil), node("c", "T", nil), node("z", "T", nil)}
	SortEntities(entities, order)
	assert.Equal(t, []string{"a", "c", "b", "z"}, graph.IDs(entities))
}

func TestPushable(t *testing.T) {
	assert.True(t, Pushable(nil))
	assert.True(t, Pushable(DefaultSortOrder{}))
	assert.False(t, Pushable(ComparatorOrder(ByID)))
	assert.False(t, Pushable(DerivedOrder{}))
}
