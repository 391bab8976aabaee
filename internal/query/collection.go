package query

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
)

// contains reports whether vals holds a value Equal to v.
func contains(vals ir.IRArray, v ir.IRValue) bool {
	return slices.ContainsFunc(vals, func(x ir.IRValue) bool { return ir.Equal(x, v) })
}

// Array searches a collection property.
//
// Exact: the flattened property equals Values element-wise, in order. An
// exact search for no values matches only a present, empty collection.
// Inexact: the property contains every value, in any order.
type Array struct {
	Key    graph.PropertyKey
	Values ir.IRArray
	exact  bool
}

func (*Array) queryNode() {}

// NewArray flattens and converts the search values. Values that fail to
// convert are kept as given and reported as warnings.
func NewArray(key graph.PropertyKey, values ir.IRValue, exact bool) (*Array, []Warning) {
	a := &Array{Key: key, exact: exact, Values: ir.IRArray{}}
	var warns []Warning
	for _, v := range ir.Flatten(values) {
		c, err := key.Convert(v)
		if err != nil {
			warns = append(warns, Warning{Key: key.Name, Value: v, Err: err})
			c = v
		}
		if !contains(a.Values, c) {
			a.Values = append(a.Values, c)
		}
	}
	return a, warns
}

func (a *Array) Kind() string    { return "array" }
func (a *Array) Exact() bool     { return a.exact }
func (a *Array) Indexable() bool { return true }

// Pushdown: an index checks containment of each value, which is exact for
// inexact searches and a superset for ordered ones.
func (a *Array) Pushdown() Pushdown {
	if a.exact && len(a.Values) > 0 {
		return PushApprox
	}
	return PushExact
}

func (a *Array) Matches(e graph.Entity) bool {
	raw := e.Get(a.Key.Name)
	if a.exact && len(a.Values) == 0 {
		arr, ok := raw.(ir.IRArray)
		return ok && len(arr) == 0
	}
	flat := ir.Flatten(raw)
	if a.exact {
		if len(flat) != len(a.Values) {
			return false
		}
		for i := range flat {
			if !ir.Equal(flat[i], a.Values[i]) {
				return false
			}
		}
		return true
	}
	for _, v := range a.Values {
		if !contains(flat, v) {
			return false
		}
	}
	return true
}

func (a *Array) String() string {
	op := "contains"
	if a.exact {
		op = "="
	}
	return fmt.Sprintf("%s %s [%s]", a.Key.Name, op, ir.Stringify(a.Values))
}

// Notion compares a relationship-typed property by a scalar projected from
// the related entities: their identity, or the key's notion property.
//
// Exact: a collection property must project to exactly the search values; a
// scalar property must project to members of the search values.
// Inexact by identity: the projection contains every search value.
// Inexact by notion: every search value is a case-insensitive substring of
// some projected value.
type Notion struct {
	Key    graph.PropertyKey
	Values ir.IRArray
	exact  bool

	resolve func(id string) (graph.Entity, bool)

	foldOnce sync.Once
	folded   []string
}

func (*Notion) queryNode() {}

// NewNotion flattens the search values. References and, for identity
// projection, every value are reduced to ID strings.
func NewNotion(key graph.PropertyKey, values ir.IRValue, exact bool) *Notion {
	n := &Notion{Key: key, exact: exact, Values: ir.IRArray{}}
	for _, v := range ir.Flatten(values) {
		switch val := v.(type) {
		case ir.IRRef:
			v = ir.IRString(val.ID)
		default:
			if key.NotionKey() == graph.IdentityKey {
				v = ir.IRString(ir.Stringify(v))
			}
		}
		if !contains(n.Values, v) {
			n.Values = append(n.Values, v)
		}
	}
	return n
}

func (n *Notion) Kind() string       { return "notion" }
func (n *Notion) Exact() bool        { return n.exact }
func (n *Notion) Indexable() bool    { return false }
func (n *Notion) Pushdown() Pushdown { return PushNone }

// IsSource implements Source.
func (n *Notion) IsSource() bool {
	return n.Key.IsRelationship() && len(n.Values) > 0
}

func (n *Notion) byIdentity() bool {
	return n.Key.NotionKey() == graph.IdentityKey
}

func (n *Notion) prepare(env Env) error {
	n.resolve = env.resolve
	return nil
}

// Project returns the flattened, duplicate-free projection of an entity's
// property.
func (n *Notion) Project(e graph.Entity) ir.IRArray {
	return ir.FlattenWith(e.Get(n.Key.Name), n.project)
}

func (n *Notion) project(ref ir.IRRef) ir.IRValue {
	if n.byIdentity() {
		return ir.IRString(ref.ID)
	}
	if n.resolve == nil {
		return ir.IRNull{}
	}
	related, ok := n.resolve(ref.ID)
	if !ok {
		return ir.IRNull{}
	}
	return refsToIDs(related.Get(n.Key.NotionKey()))
}

// refsToIDs replaces references with their ID strings so projection stops at
// one hop.
func refsToIDs(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRRef:
		return ir.IRString(val.ID)
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = refsToIDs(elem)
		}
		return out
	}
	return v
}

func (n *Notion) foldedValues() []string {
	n.foldOnce.Do(func() {
		n.folded = make([]string, len(n.Values))
		for i, v := range n.Values {
			n.folded[i] = fold(ir.Stringify(v))
		}
	})
	return n.folded
}

func (n *Notion) Matches(e graph.Entity) bool {
	return n.MatchesProjection(n.Project(e))
}

// MatchesProjection applies the comparison to an already projected value set.
func (n *Notion) MatchesProjection(projected ir.IRArray) bool {
	if len(projected) == 0 {
		return false
	}
	if n.exact {
		if n.Key.Collection {
			if len(projected) != len(n.Values) {
				return false
			}
			for _, v := range n.Values {
				if !contains(projected, v) {
					return false
				}
			}
			return true
		}
		for _, p := range projected {
			if !contains(n.Values, p) {
				return false
			}
		}
		return true
	}
	if n.byIdentity() {
		for _, v := range n.Values {
			if !contains(projected, v) {
				return false
			}
		}
		return true
	}
	texts := make([]string, len(projected))
	for i, p := range projected {
		texts[i] = fold(ir.Stringify(p))
	}
	for _, want := range n.foldedValues() {
		if !slices.ContainsFunc(texts, func(s string) bool { return strings.Contains(s, want) }) {
			return false
		}
	}
	return true
}

// targetMatches reports whether a related entity could contribute a matching
// projected value. It is a superset test used to enumerate candidates.
func (n *Notion) targetMatches(related graph.Entity) bool {
	notion := ir.Flatten(refsToIDs(related.Get(n.Key.NotionKey())))
	for _, v := range notion {
		if n.exact {
			if contains(n.Values, v) {
				return true
			}
			continue
		}
		text := fold(ir.Stringify(v))
		for _, want := range n.foldedValues() {
			if strings.Contains(text, want) {
				return true
			}
		}
	}
	return false
}

// Candidates implements Source: the entities referring, through Key, to a
// related entity selected by the search values.
func (n *Notion) Candidates(ctx context.Context, store graph.Store, kind graph.Kind, typeName string, yield func(graph.Entity) error) error {
	var targets []string
	if n.byIdentity() {
		for _, v := range n.Values {
			targets = append(targets, ir.Stringify(v))
		}
	} else {
		err := store.Scan(ctx, "", n.Key.Related, func(related graph.Entity) error {
			if n.targetMatches(related) {
				targets = append(targets, related.ID())
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("notion %q: scan related: %w", n.Key.Name, err)
		}
	}

	seen := make(map[string]struct{})
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		refs, err := store.Referrers(ctx, target, n.Key.Name)
		if err != nil {
			return fmt.Errorf("notion %q: referrers of %q: %w", n.Key.Name, target, err)
		}
		for _, e := range refs {
			if _, dup := seen[e.ID()]; dup {
				continue
			}
			if kind != "" && e.Kind() != kind {
				continue
			}
			if typeName != "" && !e.HasType(typeName) {
				continue
			}
			seen[e.ID()] = struct{}{}
			if err := yield(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *Notion) String() string {
	op := "~"
	if n.exact {
		op = "="
	}
	return fmt.Sprintf("%s.%s %s [%s]", n.Key.Name, n.Key.NotionKey(), op, ir.Stringify(n.Values))
}
