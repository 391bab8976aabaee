package store

import (
	"context"
	"fmt"

	"github.com/roach88/graphq/internal/query"
)

// Index evaluates pushed-down predicate trees against a Store in SQL.
type Index struct {
	store *Store
}

var _ query.Index = (*Index)(nil)

// Index returns the pushdown index over the store.
func (s *Store) Index() *Index {
	return &Index{store: s}
}

// Explain returns the SQL and parameters Search would run for req.
func (ix *Index) Explain(req query.IndexRequest) (string, []any, error) {
	return ix.store.compiler.Compile(req)
}

// Search implements query.Index.
//
// Rows are read eagerly and returned through a slice cursor, so the single
// connection is free again when Search returns. When a later page is
// requested, a count query reports how many matches precede it.
func (ix *Index) Search(ctx context.Context, req query.IndexRequest) (query.IndexResult, error) {
	sqlText, params, err := ix.store.compiler.Compile(req)
	if err != nil {
		return query.IndexResult{}, fmt.Errorf("%w: %w", query.ErrIndexUnavailable, err)
	}

	skipped := 0
	if offset := req.Offset(); offset > 0 {
		countSQL, countParams, err := ix.store.compiler.CompileCount(req)
		if err != nil {
			return query.IndexResult{}, fmt.Errorf("%w: %w", query.ErrIndexUnavailable, err)
		}
		var total int
		if err := ix.store.db.QueryRowContext(ctx, countSQL, countParams...).Scan(&total); err != nil {
			return query.IndexResult{}, fmt.Errorf("%w: count: %w", query.ErrIndexUnavailable, err)
		}
		skipped = min(offset, total)
	}

	rows, err := ix.store.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return query.IndexResult{}, fmt.Errorf("%w: search: %w", query.ErrIndexUnavailable, err)
	}
	entities, err := collect(rows)
	if err != nil {
		return query.IndexResult{}, fmt.Errorf("%w: search: %w", query.ErrIndexUnavailable, err)
	}
	return query.IndexResult{Cursor: query.NewSliceCursor(entities), Skipped: skipped}, nil
}
