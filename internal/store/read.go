package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/querysql"
)

// scanBatch is the number of rows Scan reads per query.
const scanBatch = 256

// Lookup retrieves a single entity by ID.
// Returns an error wrapping graph.ErrNotFound if it does not exist.
func (s *Store) Lookup(ctx context.Context, id string) (graph.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+querysql.EntityColumns+`
		FROM entities e
		WHERE e.id = ?
	`, id)

	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup %q: %w", id, graph.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", id, err)
	}
	return e, nil
}

// Scan calls fn for every entity of the given kind whose type or traits
// include typeName, in ascending ID order. Empty kind or typeName match all.
//
// Rows are read in batches and the connection is released before fn runs,
// so fn may call back into the store.
func (s *Store) Scan(ctx context.Context, kind graph.Kind, typeName string, fn func(graph.Entity) error) error {
	after := ""
	first := true
	for {
		batch, err := s.scanPage(ctx, kind, typeName, after, first)
		if err != nil {
			return err
		}
		for _, e := range batch {
			if err := fn(e); err != nil {
				if errors.Is(err, graph.ErrStopScan) {
					return nil
				}
				return err
			}
		}
		if len(batch) < scanBatch {
			return nil
		}
		after = batch[len(batch)-1].ID()
		first = false
	}
}

func (s *Store) scanPage(ctx context.Context, kind graph.Kind, typeName, after string, first bool) ([]graph.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+querysql.EntityColumns+`
		FROM entities e
		WHERE (? = '' OR e.kind = ?)
		  AND (? = '' OR e.type = ? OR EXISTS (SELECT 1 FROM traits t WHERE t.entity_id = e.id AND t.trait = ?))
		  AND (? OR e.id > ?)
		ORDER BY e.id COLLATE BINARY ASC
		LIMIT ?
	`, string(kind), string(kind), typeName, typeName, typeName, first, after, scanBatch)
	if err != nil {
		return nil, fmt.Errorf("scan entities: %w", err)
	}
	return collect(rows)
}

// Referrers returns the entities whose property key references targetID,
// in ascending ID order.
func (s *Store) Referrers(ctx context.Context, targetID, key string) ([]graph.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+querysql.EntityColumns+`
		FROM entities e
		WHERE EXISTS (
			SELECT 1 FROM props p
			WHERE p.entity_id = e.id AND p.key = ? AND p.pos >= 0 AND p.vtype = ? AND p.vtext = ?
		)
		ORDER BY e.id COLLATE BINARY ASC
	`, key, querysql.TypeRef, targetID)
	if err != nil {
		return nil, fmt.Errorf("query referrers of %q: %w", targetID, err)
	}
	return collect(rows)
}

// collect reads and closes rows. Returns an empty slice (not nil) when there
// are no rows.
func collect(rows *sql.Rows) ([]graph.Entity, error) {
	defer rows.Close()

	entities := []graph.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntity reads one row of querysql.EntityColumns.
func scanEntity(row rowScanner) (graph.Entity, error) {
	var (
		r          graph.Record
		kind       string
		traitsJSON string
		source     sql.NullString
		target     sql.NullString
		propsJSON  string
	)
	if err := row.Scan(&r.ID, &kind, &r.Type, &traitsJSON, &source, &target, &r.Hidden, &propsJSON); err != nil {
		return nil, err
	}
	r.Kind = graph.Kind(kind)
	r.Source = source.String
	r.Target = target.String

	var err error
	if r.Traits, err = unmarshalTraits(traitsJSON); err != nil {
		return nil, fmt.Errorf("entity %q: %w", r.ID, err)
	}
	if r.Props, err = unmarshalProps(propsJSON); err != nil {
		return nil, fmt.Errorf("entity %q: %w", r.ID, err)
	}
	return graph.NewEntity(r), nil
}
