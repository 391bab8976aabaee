package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
)

// Type matches entities whose type or traits include Name. For relationship
// queries Name is the relationship type. Negate inverts the test.
type Type struct {
	Name   string
	Negate bool
}

func (*Type) queryNode() {}

func (t *Type) Kind() string       { return "type" }
func (t *Type) Exact() bool        { return true }
func (t *Type) Indexable() bool    { return true }
func (t *Type) Pushdown() Pushdown { return PushExact }

func (t *Type) Matches(e graph.Entity) bool {
	return e.HasType(t.Name) != t.Negate
}

func (t *Type) String() string {
	if t.Negate {
		return "type != " + t.Name
	}
	return "type = " + t.Name
}

// Empty matches null, blank or empty-collection properties. With Negate it is
// the NotBlank predicate.
//
// NullOnly restricts the test to absent or null values, so that a present
// but empty collection is not blank. RemoveFromQuery keeps the predicate out
// of index queries; it then only acts as a post-filter.
type Empty struct {
	Key             graph.PropertyKey
	Negate          bool
	NullOnly        bool
	RemoveFromQuery bool
}

func (*Empty) queryNode() {}

func (p *Empty) Kind() string {
	if p.Negate {
		return "not_blank"
	}
	return "blank"
}

func (p *Empty) Exact() bool     { return true }
func (p *Empty) Indexable() bool { return !p.RemoveFromQuery }

func (p *Empty) Pushdown() Pushdown {
	if p.RemoveFromQuery {
		return PushNone
	}
	return PushExact
}

func (p *Empty) Matches(e graph.Entity) bool {
	v := e.Get(p.Key.Name)
	var blank bool
	if p.NullOnly {
		blank = ir.IsNull(v)
	} else {
		blank = ir.IsBlank(v)
	}
	return blank != p.Negate
}

func (p *Empty) String() string {
	return fmt.Sprintf("%s(%s)", p.Kind(), p.Key.Name)
}

// Fulltext is filtered by the index: an entity matches when every token of
// Text occurs, case-insensitively, in the property (or in any property when
// Key has no name). Matches always reports true.
type Fulltext struct {
	Key  graph.PropertyKey
	Text string
}

func (*Fulltext) queryNode() {}

func (f *Fulltext) Kind() string       { return "fulltext" }
func (f *Fulltext) Exact() bool        { return false }
func (f *Fulltext) Indexable() bool    { return true }
func (f *Fulltext) Pushdown() Pushdown { return PushExact }

func (f *Fulltext) Matches(graph.Entity) bool { return true }

// Tokens returns the case-folded search tokens.
func (f *Fulltext) Tokens() []string {
	return strings.Fields(fold(f.Text))
}

// TokensMatch reports whether every token occurs in one of the texts.
// Indexes without a native text search evaluate fulltext with it.
func (f *Fulltext) TokensMatch(texts []string) bool {
	folded := make([]string, len(texts))
	for i, t := range texts {
		folded[i] = fold(t)
	}
	for _, tok := range f.Tokens() {
		if !slices.ContainsFunc(folded, func(s string) bool { return strings.Contains(s, tok) }) {
			return false
		}
	}
	return true
}

// Texts returns the text a fulltext search sees in an entity: the string
// forms of the flattened property, or of every property when Key has no
// name.
func (f *Fulltext) Texts(e graph.Entity) []string {
	var vals ir.IRArray
	if f.Key.Name == "" {
		props := e.Record().Props
		for _, k := range props.SortedKeys() {
			vals = append(vals, ir.Flatten(props[k])...)
		}
	} else {
		vals = ir.Flatten(e.Get(f.Key.Name))
	}
	texts := make([]string, len(vals))
	for i, v := range vals {
		texts[i] = ir.Stringify(v)
	}
	return texts
}

func (f *Fulltext) String() string {
	return fmt.Sprintf("fulltext(%s, %q)", f.Key.Name, f.Text)
}

// UUID is an identity lookup. A parseable UUID also matches its canonical
// lowercase form.
type UUID struct {
	ID string
}

func (*UUID) queryNode() {}

func (u *UUID) Kind() string       { return "uuid" }
func (u *UUID) Exact() bool        { return true }
func (u *UUID) Indexable() bool    { return true }
func (u *UUID) Pushdown() Pushdown { return PushExact }

// IDs returns the accepted spellings of the ID.
func (u *UUID) IDs() []string {
	ids := []string{u.ID}
	if parsed, err := uuid.Parse(u.ID); err == nil {
		if canon := parsed.String(); canon != u.ID {
			ids = append(ids, canon)
		}
	}
	return ids
}

func (u *UUID) Matches(e graph.Entity) bool {
	return slices.Contains(u.IDs(), e.ID())
}

func (u *UUID) String() string { return "id = " + u.ID }

// Visibility hides hidden entities, and relationships whose source or target
// is hidden or missing.
type Visibility struct {
	resolve func(id string) (graph.Entity, bool)
}

func (*Visibility) queryNode() {}

func (v *Visibility) Kind() string       { return "visibility" }
func (v *Visibility) Exact() bool        { return true }
func (v *Visibility) Indexable() bool    { return true }
func (v *Visibility) Pushdown() Pushdown { return PushExact }

func (v *Visibility) prepare(env Env) error {
	v.resolve = env.resolve
	return nil
}

func (v *Visibility) Matches(e graph.Entity) bool {
	if e.Hidden() {
		return false
	}
	src, dst, ok := e.Endpoints()
	if !ok {
		return true
	}
	if v.resolve == nil {
		return false
	}
	for _, id := range []string{src, dst} {
		end, found := v.resolve(id)
		if !found || end.Hidden() {
			return false
		}
	}
	return true
}

func (v *Visibility) String() string { return "visible" }
