package query

import (
	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
)

// node builds a node entity from plain Go property values.
func node(id, typ string, props map[string]any) graph.Entity {
	obj := ir.IRObject{}
	for k, v := range props {
		val, err := ir.FromAny(v)
		if err != nil {
			panic(err)
		}
		obj[k] = val
	}
	return graph.NewEntity(graph.Record{ID: id, Type: typ, Props: obj})
}

// constNode is a leaf with a fixed result, used to test group algebra.
type constNode bool

func (c constNode) Matches(graph.Entity) bool { return bool(c) }
func (c constNode) Exact() bool               { return true }
func (constNode) queryNode()                  {}

func testSchema() *graph.Schema {
	s, err := graph.NewSchema(
		graph.TypeDef{Name: "User", Keys: map[string]graph.PropertyKey{
			"name":   {Kind: ir.KindString},
			"age":    {Kind: ir.KindInt},
			"year":   {Kind: ir.KindInt},
			"score":  {Kind: ir.KindFloat},
			"tags":   {Kind: ir.KindString, Collection: true},
			"nums":   {Kind: ir.KindInt, Collection: true},
			"groups": {Kind: ir.KindRef, Collection: true, Related: "Group", Notion: "name"},
			"team":   {Kind: ir.KindRef, Related: "Group"},
			"owner":  {Kind: ir.KindRef, Related: "User"},
		}},
		graph.TypeDef{Name: "Group", Keys: map[string]graph.PropertyKey{
			"name": {Kind: ir.KindString},
		}},
	)
	if err != nil {
		panic(err)
	}
	return s
}
