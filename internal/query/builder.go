package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
)

// Query is a predicate tree plus ordering, paging and execution flags.
// A Query is built once and executed once; execution resolves state on its
// leaves, so it must not be executed concurrently or reused.
//
// Example:
//
//	q := query.New(schema)
//	q.Where().Type("User").Key("age", 30)
//	q.Sort("name", false).PageSize(20).Page(2)
type Query struct {
	schema   *graph.Schema
	typeName string
	kind     graph.Kind
	root     *Group

	specs      []SortSpec
	order      SortOrder
	comparator SortOrder
	doNotSort  bool

	pageSize int
	page     int

	superuser bool
	ping      bool

	warnings []Warning
	errs     []error
}

// New creates an empty node query. A nil schema resolves every key as an
// untyped string key.
func New(schema *graph.Schema) *Query {
	q := &Query{schema: schema, kind: graph.KindNode, page: 1}
	q.root = &Group{op: OperatorAnd, query: q}
	return q
}

// Where returns the root AND group.
func (q *Query) Where() *Group { return q.root }

// Root is an alias of Where for readers of the tree.
func (q *Query) Root() *Group { return q.root }

// Schema returns the schema keys are resolved against.
func (q *Query) Schema() *graph.Schema { return q.schema }

// Relationships switches the query to relationship entities.
func (q *Query) Relationships() *Query {
	q.kind = graph.KindRelationship
	return q
}

// Kind returns the kind of entity the query returns.
func (q *Query) Kind() graph.Kind { return q.kind }

// OfType sets the type used to resolve property keys. Type predicates set it
// implicitly.
func (q *Query) OfType(name string) *Query {
	q.typeName = name
	return q
}

// TypeName returns the type keys are resolved against.
func (q *Query) TypeName() string { return q.typeName }

// Sort appends a sort key.
func (q *Query) Sort(key string, descending bool) *Query {
	q.specs = append(q.specs, SortSpec{Key: q.resolve(key), Descending: descending})
	return q
}

// OrderBy replaces the sort keys with an explicit order.
func (q *Query) OrderBy(order SortOrder) *Query {
	q.order = order
	return q
}

// Comparator installs a caller-supplied total order. It bypasses every
// other sort setting and disables index paging.
func (q *Query) Comparator(fn func(a, b graph.Entity) int) *Query {
	if fn == nil {
		q.comparator = nil
		return q
	}
	q.comparator = ComparatorOrder(fn)
	return q
}

// DisableSorting skips ordering; results come in candidate order.
func (q *Query) DisableSorting() *Query {
	q.doNotSort = true
	return q
}

// PageSize sets the page size. n <= 0 disables paging.
func (q *Query) PageSize(n int) *Query {
	q.pageSize = n
	return q
}

// Page selects the 1-based page.
func (q *Query) Page(n int) *Query {
	if n < 1 {
		n = 1
	}
	q.page = n
	return q
}

// AsSuperuser lifts visibility filtering.
func (q *Query) AsSuperuser() *Query {
	q.superuser = true
	return q
}

// Ping turns the query into an existence check: execution stops after the
// first match.
func (q *Query) Ping() *Query {
	q.ping = true
	return q
}

// Window returns the page size and 1-based page number.
func (q *Query) Window() (size, page int) { return q.pageSize, q.page }

func (q *Query) Superuser() bool { return q.superuser }
func (q *Query) IsPing() bool    { return q.ping }

// SortingDisabled reports whether ordering is skipped, either explicitly or
// because the query is an exact identity lookup.
func (q *Query) SortingDisabled() bool { return q.doNotSort }

// HasComparator reports whether a custom comparator is installed.
func (q *Query) HasComparator() bool { return q.comparator != nil }

// Order returns the effective sort order: the comparator, else the explicit
// order, else the sort keys. Nil means ID order.
func (q *Query) Order() SortOrder {
	switch {
	case q.comparator != nil:
		return q.comparator
	case q.order != nil:
		return q.order
	case len(q.specs) > 0:
		return DefaultSortOrder{Specs: append([]SortSpec(nil), q.specs...)}
	}
	return nil
}

// Warnings returns the value conversion warnings recorded while building.
func (q *Query) Warnings() []Warning { return append([]Warning(nil), q.warnings...) }

// Err returns the builder errors, joined, or nil.
func (q *Query) Err() error {
	if len(q.errs) == 0 {
		return nil
	}
	return errors.Join(q.errs...)
}

// Describe returns a canonical description of the query shape, excluding the
// page number.
func (q *Query) Describe() ir.IRObject {
	var sorts ir.IRArray
	if spec, ok := q.Order().(DefaultSortOrder); ok {
		for _, s := range spec.Specs {
			dir := "asc"
			if s.Descending {
				dir = "desc"
			}
			sorts = append(sorts, ir.IRString(s.Key.Name+" "+dir))
		}
	} else if q.Order() != nil {
		sorts = ir.IRArray{ir.IRString("custom")}
	}
	return ir.IRObject{
		"kind":      ir.IRString(q.kind),
		"type":      ir.IRString(q.typeName),
		"where":     ir.IRString(fmt.Sprint(q.root)),
		"sort":      sorts,
		"page_size": ir.IRInt(q.pageSize),
		"superuser": ir.IRBool(q.superuser),
		"ping":      ir.IRBool(q.ping),
	}
}

// Fingerprint hashes Describe.
func (q *Query) Fingerprint() string {
	fp, err := ir.Fingerprint(q.Describe())
	if err != nil {
		return ""
	}
	return fp
}

func (q *Query) resolve(name string) graph.PropertyKey {
	if q.schema == nil {
		if name == graph.IdentityKey {
			return graph.Identity()
		}
		return graph.Key(name)
	}
	return q.schema.Resolve(q.typeName, name)
}

func (q *Query) fail(format string, args ...any) {
	q.errs = append(q.errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidQuery}, args...)...))
}

// owner returns the query a group builds into. Detached groups get a private
// schema-less query.
func (g *Group) owner() *Query {
	if g.query == nil {
		g.query = New(nil)
	}
	return g.query
}

func (g *Group) add(n Node) *Group {
	g.children = append(g.children, n)
	return g
}

func (g *Group) sub(op Operator) *Group {
	child := &Group{op: op, query: g.owner()}
	g.add(child)
	return child
}

// And appends a nested AND group and returns it.
func (g *Group) And() *Group { return g.sub(OperatorAnd) }

// Or appends a nested OR group and returns it.
func (g *Group) Or() *Group { return g.sub(OperatorOr) }

// Not appends a nested NOT group and returns it.
func (g *Group) Not() *Group { return g.sub(OperatorNot) }

// Add appends prebuilt nodes.
func (g *Group) Add(nodes ...Node) *Group {
	for _, n := range nodes {
		if n != nil {
			g.add(n)
		}
	}
	return g
}

func (g *Group) value(name string, v any) (ir.IRValue, bool) {
	val, err := ir.FromAny(v)
	if err != nil {
		g.owner().fail("key %q: %v", name, err)
		return nil, false
	}
	return val, true
}

func (g *Group) warn(ws ...Warning) {
	q := g.owner()
	q.warnings = append(q.warnings, ws...)
}

// isBlankValue reports whether a search value asks for a blank property.
// An explicit empty array does not.
func isBlankValue(v ir.IRValue) bool {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return true
	case ir.IRString:
		return strings.TrimSpace(string(val)) == ""
	}
	return false
}

// Key appends an exact search on a property. The predicate depends on the
// key and value:
//   - identity key: an identity lookup, which also disables default ordering
//   - relationship key: a notion projection (or emptiness for a blank value)
//   - collection key: an ordered array match; a blank value matches only
//     absent or null collections, an explicit empty array only present empty
//     ones
//   - scalar key: equality, or emptiness for a blank value; several values
//     match any of them
func (g *Group) Key(name string, value any) *Group {
	return g.key(name, value, true)
}

// Like appends an inexact search: containment for collections and
// relationships, case-insensitive substring for scalars.
func (g *Group) Like(name string, value any) *Group {
	return g.key(name, value, false)
}

func (g *Group) key(name string, value any, exact bool) *Group {
	v, ok := g.value(name, value)
	if !ok {
		return g
	}
	q := g.owner()
	k := q.resolve(name)
	_, explicitEmpty := v.(ir.IRArray)
	explicitEmpty = explicitEmpty && len(v.(ir.IRArray)) == 0

	switch {
	case k.IsIdentity():
		ids := ir.Flatten(v)
		if len(ids) == 0 {
			q.fail("key %q: identity search needs a value", name)
			return g
		}
		if !exact {
			return g.compare(k, OpContainsFold, ids[0])
		}
		if len(ids) == 1 {
			q.doNotSort = true
			return g.add(&UUID{ID: ir.Stringify(ids[0])})
		}
		or := &Group{op: OperatorOr, query: q}
		for _, id := range ids {
			or.add(&UUID{ID: ir.Stringify(id)})
		}
		return g.add(or)

	case k.Collection && explicitEmpty:
		a, _ := NewArray(k, ir.IRArray{}, true)
		return g.add(a)

	case isBlankValue(v) || explicitEmpty:
		return g.add(&Empty{Key: k, NullOnly: k.Collection, RemoveFromQuery: k.IsRelationship()})

	case k.IsRelationship():
		return g.add(NewNotion(k, v, exact))

	case k.Collection:
		a, warns := NewArray(k, v, exact)
		g.warn(warns...)
		return g.add(a)
	}

	op := OpEqual
	if !exact {
		op = OpContainsFold
	}
	values := ir.Flatten(v)
	if len(values) == 1 {
		return g.compare(k, op, values[0])
	}
	or := &Group{op: OperatorOr, query: q}
	for _, val := range values {
		or.compare(k, op, val)
	}
	return g.add(or)
}

func (g *Group) compare(k graph.PropertyKey, op Op, v ir.IRValue) *Group {
	c, w := NewComparison(k, op, v)
	if w != nil {
		g.warn(*w)
	}
	return g.add(c)
}

// Compare appends a comparison with an explicit operator.
func (g *Group) Compare(name string, op Op, value any) *Group {
	if !knownOps[op] {
		g.owner().fail("key %q: unknown operator %q", name, op)
		return g
	}
	v, ok := g.value(name, value)
	if !ok {
		return g
	}
	return g.compare(g.owner().resolve(name), op, v)
}

// StartsWith appends a prefix comparison.
func (g *Group) StartsWith(name, prefix string) *Group {
	return g.compare(g.owner().resolve(name), OpStartsWith, ir.IRString(prefix))
}

// EndsWith appends a suffix comparison.
func (g *Group) EndsWith(name, suffix string) *Group {
	return g.compare(g.owner().resolve(name), OpEndsWith, ir.IRString(suffix))
}

// Contains appends a substring comparison.
func (g *Group) Contains(name, substr string) *Group {
	return g.compare(g.owner().resolve(name), OpContains, ir.IRString(substr))
}

// MatchesRegex appends a regular expression comparison. The pattern is
// compiled when the query is prepared for execution.
func (g *Group) MatchesRegex(name, pattern string) *Group {
	return g.compare(g.owner().resolve(name), OpMatches, ir.IRString(pattern))
}

// Range appends an inclusive range. A nil bound is unbounded.
func (g *Group) Range(name string, lo, hi any) *Group {
	return g.RangeBounds(name, lo, hi, true, true)
}

// RangeBounds appends a range with explicit bound inclusivity.
func (g *Group) RangeBounds(name string, lo, hi any, incLo, incHi bool) *Group {
	lv, ok := g.value(name, lo)
	if !ok {
		return g
	}
	hv, ok := g.value(name, hi)
	if !ok {
		return g
	}
	r, warns := NewRange(g.owner().resolve(name), lv, hv, incLo, incHi)
	g.warn(warns...)
	return g.add(r)
}

// Fulltext appends a fulltext search. An empty name searches all properties.
func (g *Group) Fulltext(name, text string) *Group {
	var k graph.PropertyKey
	if name != "" {
		k = g.owner().resolve(name)
	}
	return g.add(&Fulltext{Key: k, Text: text})
}

// Location appends a distance search around an address that is geocoded at
// execution time.
func (g *Group) Location(address string, radiusKm float64) *Group {
	return g.add(NewAddressDistance(address, radiusKm))
}

// LocationAt appends a distance search around known coordinates.
func (g *Group) LocationAt(lat, lon, radiusKm float64) *Group {
	return g.add(NewDistance(lat, lon, radiusKm))
}

// Blank appends a test for a null, blank or empty property.
func (g *Group) Blank(name string) *Group {
	k := g.owner().resolve(name)
	return g.add(&Empty{Key: k, RemoveFromQuery: k.IsRelationship()})
}

// NotBlank appends the negation of Blank.
func (g *Group) NotBlank(name string) *Group {
	k := g.owner().resolve(name)
	return g.add(&Empty{Key: k, Negate: true, RemoveFromQuery: k.IsRelationship()})
}

// Type appends a type test. The first type added directly to the root also
// becomes the query's key resolution type; nested types never do.
func (g *Group) Type(name string) *Group {
	q := g.owner()
	if q.typeName == "" && g == q.root {
		q.typeName = name
	}
	return g.add(&Type{Name: name})
}

// NotType appends a negated type test.
func (g *Group) NotType(name string) *Group {
	return g.add(&Type{Name: name, Negate: true})
}

// Related appends an exact notion search over several values.
func (g *Group) Related(name string, values ...any) *Group {
	return g.related(name, values, true)
}

// RelatedLike appends an inexact notion search.
func (g *Group) RelatedLike(name string, values ...any) *Group {
	return g.related(name, values, false)
}

func (g *Group) related(name string, values []any, exact bool) *Group {
	v, ok := g.value(name, values)
	if !ok {
		return g
	}
	q := g.owner()
	k := q.resolve(name)
	if !k.IsRelationship() {
		q.fail("key %q: not a relationship key", name)
		return g
	}
	return g.add(NewNotion(k, v, exact))
}

// UUID appends an identity lookup without touching the sort settings.
func (g *Group) UUID(id string) *Group {
	return g.add(&UUID{ID: id})
}

// Visible appends a visibility filter.
func (g *Group) Visible() *Group {
	return g.add(&Visibility{})
}
