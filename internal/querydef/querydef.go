// Package querydef decodes YAML query documents into query builders.
//
// A document names the entity type, the where clauses, the sort keys and
// the paging window:
//
//	type: User
//	where:
//	  - compare: {key: age, op: ge, value: 30}
//	  - or:
//	      - key: {key: city, value: Berlin}
//	      - location: {address: Potsdam, radius_km: 50}
//	sort:
//	  - key: name
//	page_size: 20
//	page: 2
//
// Every clause sets exactly one field. The CLI query command and the
// scenario harness both read queries through this package.
package querydef

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/query"
)

// Document is a query in file form.
type Document struct {
	// Type restricts results to one entity type and resolves keys against it.
	Type string `yaml:"type,omitempty"`

	// Relationships queries relationship entities instead of nodes.
	Relationships bool `yaml:"relationships,omitempty"`

	// Superuser lifts visibility filtering.
	Superuser bool `yaml:"superuser,omitempty"`

	// Ping stops at the first match.
	Ping bool `yaml:"ping,omitempty"`

	Where []Clause `yaml:"where,omitempty"`

	// Sort keys in priority order. Ignored when DisableSorting is set.
	Sort           []SortKey `yaml:"sort,omitempty"`
	DisableSorting bool      `yaml:"disable_sorting,omitempty"`

	PageSize int `yaml:"page_size,omitempty"`
	Page     int `yaml:"page,omitempty"`
}

// SortKey is one sort key.
type SortKey struct {
	Key  string `yaml:"key"`
	Desc bool   `yaml:"desc,omitempty"`
}

// Clause is one predicate or nested group. Exactly one field is set.
type Clause struct {
	And []Clause `yaml:"and,omitempty"`
	Or  []Clause `yaml:"or,omitempty"`
	Not []Clause `yaml:"not,omitempty"`

	Key        *Value    `yaml:"key,omitempty"`
	Like       *Value    `yaml:"like,omitempty"`
	Compare    *Compare  `yaml:"compare,omitempty"`
	StartsWith *Text     `yaml:"starts_with,omitempty"`
	EndsWith   *Text     `yaml:"ends_with,omitempty"`
	Contains   *Text     `yaml:"contains,omitempty"`
	Matches    *Text     `yaml:"matches,omitempty"`
	Range      *Range    `yaml:"range,omitempty"`
	Fulltext   *Fulltext `yaml:"fulltext,omitempty"`
	Location   *Location `yaml:"location,omitempty"`
	Blank      string    `yaml:"blank,omitempty"`
	NotBlank   string    `yaml:"not_blank,omitempty"`
	Type       string    `yaml:"type,omitempty"`
	NotType    string    `yaml:"not_type,omitempty"`
	Related    *Related  `yaml:"related,omitempty"`
	UUID       string    `yaml:"uuid,omitempty"`
	Visible    bool      `yaml:"visible,omitempty"`
}

// Value is a key search. A list value matches any of its elements.
type Value struct {
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

// Compare is a comparison with an explicit operator (eq, ne, gt, ge, lt,
// le, starts_with, ..., is_null, is_not_null).
type Compare struct {
	Key   string `yaml:"key"`
	Op    string `yaml:"op"`
	Value any    `yaml:"value,omitempty"`
}

// Text is a string comparison. For matches, Value is the pattern.
type Text struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Range bounds are inclusive unless marked exclusive. An absent bound is
// open.
type Range struct {
	Key         string `yaml:"key"`
	Lo          any    `yaml:"lo,omitempty"`
	Hi          any    `yaml:"hi,omitempty"`
	ExclusiveLo bool   `yaml:"exclusive_lo,omitempty"`
	ExclusiveHi bool   `yaml:"exclusive_hi,omitempty"`
}

// Fulltext searches one key, or every property when Key is empty.
type Fulltext struct {
	Key  string `yaml:"key,omitempty"`
	Text string `yaml:"text"`
}

// Location is a distance search around an address or a coordinate.
type Location struct {
	Address  string   `yaml:"address,omitempty"`
	Lat      *float64 `yaml:"lat,omitempty"`
	Lon      *float64 `yaml:"lon,omitempty"`
	RadiusKm float64  `yaml:"radius_km"`
}

// Related is a notion search over a relationship key.
type Related struct {
	Key    string `yaml:"key"`
	Values []any  `yaml:"values"`
	Like   bool   `yaml:"like,omitempty"`
}

// Parse decodes and validates a document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse query: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads a document from a file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Validate checks the document shape. Key names and values are checked
// later by the builder against the schema.
func (d *Document) Validate() error {
	if d.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative")
	}
	if d.Page < 0 {
		return fmt.Errorf("page must not be negative")
	}
	for i, s := range d.Sort {
		if s.Key == "" {
			return fmt.Errorf("sort[%d]: key is required", i)
		}
	}
	return validateClauses("where", d.Where)
}

func validateClauses(path string, clauses []Clause) error {
	for i, c := range clauses {
		p := fmt.Sprintf("%s[%d]", path, i)
		if err := c.validate(p); err != nil {
			return err
		}
	}
	return nil
}

// kind names the single field the clause sets.
func (c *Clause) kind() (string, error) {
	var set []string
	mark := func(name string, ok bool) {
		if ok {
			set = append(set, name)
		}
	}
	mark("and", c.And != nil)
	mark("or", c.Or != nil)
	mark("not", c.Not != nil)
	mark("key", c.Key != nil)
	mark("like", c.Like != nil)
	mark("compare", c.Compare != nil)
	mark("starts_with", c.StartsWith != nil)
	mark("ends_with", c.EndsWith != nil)
	mark("contains", c.Contains != nil)
	mark("matches", c.Matches != nil)
	mark("range", c.Range != nil)
	mark("fulltext", c.Fulltext != nil)
	mark("location", c.Location != nil)
	mark("blank", c.Blank != "")
	mark("not_blank", c.NotBlank != "")
	mark("type", c.Type != "")
	mark("not_type", c.NotType != "")
	mark("related", c.Related != nil)
	mark("uuid", c.UUID != "")
	mark("visible", c.Visible)

	switch len(set) {
	case 0:
		return "", fmt.Errorf("empty clause")
	case 1:
		return set[0], nil
	default:
		return "", fmt.Errorf("clause sets %d fields %v, expected exactly one", len(set), set)
	}
}

func (c *Clause) validate(path string) error {
	kind, err := c.kind()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%s.%s: %s", path, kind, fmt.Sprintf(format, args...))
	}

	switch kind {
	case "and":
		return validateClauses(path+".and", c.And)
	case "or":
		return validateClauses(path+".or", c.Or)
	case "not":
		return validateClauses(path+".not", c.Not)
	case "key":
		if c.Key.Key == "" {
			return fail("key is required")
		}
	case "like":
		if c.Like.Key == "" {
			return fail("key is required")
		}
	case "compare":
		if c.Compare.Key == "" {
			return fail("key is required")
		}
		if _, err := query.ParseOp(c.Compare.Op); err != nil {
			return fail("%v", err)
		}
	case "starts_with", "ends_with", "contains", "matches":
		if c.text().Key == "" {
			return fail("key is required")
		}
	case "range":
		if c.Range.Key == "" {
			return fail("key is required")
		}
	case "location":
		l := c.Location
		hasPoint := l.Lat != nil || l.Lon != nil
		switch {
		case l.Address != "" && hasPoint:
			return fail("address and coordinates are mutually exclusive")
		case l.Address == "" && (l.Lat == nil || l.Lon == nil):
			return fail("address or lat and lon are required")
		case l.RadiusKm <= 0:
			return fail("radius_km must be positive")
		}
	case "related":
		if c.Related.Key == "" {
			return fail("key is required")
		}
	}
	return nil
}

func (c *Clause) text() *Text {
	switch {
	case c.StartsWith != nil:
		return c.StartsWith
	case c.EndsWith != nil:
		return c.EndsWith
	case c.Contains != nil:
		return c.Contains
	default:
		return c.Matches
	}
}

// Build turns the document into a query against schema. Builder errors are
// reported through the returned query's Err.
func (d *Document) Build(schema *graph.Schema) *query.Query {
	q := query.New(schema)
	if d.Relationships {
		q.Relationships()
	}
	if d.Type != "" {
		q.Where().Type(d.Type)
	}
	for _, c := range d.Where {
		c.apply(q.Where())
	}
	if d.DisableSorting {
		q.DisableSorting()
	} else {
		for _, s := range d.Sort {
			q.Sort(s.Key, s.Desc)
		}
	}
	if d.PageSize > 0 {
		q.PageSize(d.PageSize)
	}
	if d.Page > 0 {
		q.Page(d.Page)
	}
	if d.Superuser {
		q.AsSuperuser()
	}
	if d.Ping {
		q.Ping()
	}
	return q
}

func (c *Clause) apply(g *query.Group) {
	switch {
	case c.And != nil:
		applyAll(g.And(), c.And)
	case c.Or != nil:
		applyAll(g.Or(), c.Or)
	case c.Not != nil:
		applyAll(g.Not(), c.Not)
	case c.Key != nil:
		g.Key(c.Key.Key, c.Key.Value)
	case c.Like != nil:
		g.Like(c.Like.Key, c.Like.Value)
	case c.Compare != nil:
		// Validate has already checked the operator.
		op, _ := query.ParseOp(c.Compare.Op)
		g.Compare(c.Compare.Key, op, c.Compare.Value)
	case c.StartsWith != nil:
		g.StartsWith(c.StartsWith.Key, c.StartsWith.Value)
	case c.EndsWith != nil:
		g.EndsWith(c.EndsWith.Key, c.EndsWith.Value)
	case c.Contains != nil:
		g.Contains(c.Contains.Key, c.Contains.Value)
	case c.Matches != nil:
		g.MatchesRegex(c.Matches.Key, c.Matches.Value)
	case c.Range != nil:
		r := c.Range
		g.RangeBounds(r.Key, r.Lo, r.Hi, !r.ExclusiveLo, !r.ExclusiveHi)
	case c.Fulltext != nil:
		g.Fulltext(c.Fulltext.Key, c.Fulltext.Text)
	case c.Location != nil:
		l := c.Location
		if l.Address != "" {
			g.Location(l.Address, l.RadiusKm)
		} else {
			g.LocationAt(*l.Lat, *l.Lon, l.RadiusKm)
		}
	case c.Blank != "":
		g.Blank(c.Blank)
	case c.NotBlank != "":
		g.NotBlank(c.NotBlank)
	case c.Type != "":
		g.Type(c.Type)
	case c.NotType != "":
		g.NotType(c.NotType)
	case c.Related != nil:
		if c.Related.Like {
			g.RelatedLike(c.Related.Key, c.Related.Values...)
		} else {
			g.Related(c.Related.Key, c.Related.Values...)
		}
	case c.UUID != "":
		g.UUID(c.UUID)
	case c.Visible:
		g.Visible()
	}
}

func applyAll(g *query.Group, clauses []Clause) {
	for _, c := range clauses {
		c.apply(g)
	}
}
