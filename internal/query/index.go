package query

import (
	"context"
	"errors"

	"github.com/roach88/graphq/internal/graph"
)

// ErrIndexUnavailable is wrapped by Index implementations when the backend
// cannot be reached or fails mid-query.
var ErrIndexUnavailable = errors.New("index unavailable")

// IndexRequest is a predicate tree pushed down to an index.
type IndexRequest struct {
	Kind graph.Kind
	Root *Group

	// Order is applied by the index. Nil means ID order.
	Order SortOrder

	// PageSize <= 0 disables paging. Page is 1-based.
	PageSize int
	Page     int

	// Limit caps the number of rows returned when paging is disabled. Zero
	// means no cap.
	Limit int
}

// Offset returns the number of rows before the requested page.
func (r IndexRequest) Offset() int {
	if r.PageSize <= 0 || r.Page <= 1 {
		return 0
	}
	return (r.Page - 1) * r.PageSize
}

// Cursor iterates index results lazily, in the style of sql.Rows.
type Cursor interface {
	Next() bool
	Entity() graph.Entity
	Err() error
	Close() error
}

// IndexResult is an open cursor plus the number of matches before the page.
type IndexResult struct {
	Cursor  Cursor
	Skipped int
}

// Index evaluates pushed-down predicate trees.
//
// An index evaluates leaves with exact pushdown precisely and treats the
// others as true (see MatchRelaxed); it may therefore return a superset of
// the matches, which the executor post-filters.
type Index interface {
	Search(ctx context.Context, req IndexRequest) (IndexResult, error)
}

// IndexMatch evaluates a leaf the way an index does. It differs from
// Matches only for Fulltext, which is evaluated over the entity's text.
func IndexMatch(p Predicate, e graph.Entity) bool {
	if f, ok := p.(*Fulltext); ok {
		return f.TokensMatch(f.Texts(e))
	}
	return p.Matches(e)
}

// SliceCursor is a Cursor over an in-memory slice.
type SliceCursor struct {
	entities []graph.Entity
	pos      int
}

// NewSliceCursor creates a cursor over entities.
func NewSliceCursor(entities []graph.Entity) *SliceCursor {
	return &SliceCursor{entities: entities, pos: -1}
}

func (c *SliceCursor) Next() bool {
	if c.pos+1 >= len(c.entities) {
		c.pos = len(c.entities)
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) Entity() graph.Entity {
	if c.pos < 0 || c.pos >= len(c.entities) {
		return nil
	}
	return c.entities[c.pos]
}

func (c *SliceCursor) Err() error   { return nil }
func (c *SliceCursor) Close() error { return nil }
