package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/query"
	"github.com/roach88/graphq/internal/querysql"
)

// Put inserts or replaces records in one transaction. Nothing is written if
// any record is invalid.
//
// Replacing a record rewrites its traits and props rows.
func (s *Store) Put(ctx context.Context, records ...graph.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("put: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, r := range records {
		if err := putRecord(ctx, tx, r); err != nil {
			return fmt.Errorf("put %q: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put: commit: %w", err)
	}
	return nil
}

func putRecord(ctx context.Context, tx *sql.Tx, r graph.Record) error {
	if r.Kind == "" {
		r.Kind = graph.KindNode
	}
	propsJSON, err := marshalProps(r.Props)
	if err != nil {
		return err
	}
	traits := slices.Clone(r.Traits)
	slices.Sort(traits)
	traits = slices.Compact(traits)
	traitsJSON, err := marshalTraits(traits)
	if err != nil {
		return err
	}

	// Deleting first cascades to the derived traits and props rows.
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, r.ID); err != nil {
		return fmt.Errorf("delete previous: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, id_fold, kind, type, traits, source_id, target_id, hidden, props)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		query.Fold(r.ID),
		string(r.Kind),
		r.Type,
		traitsJSON,
		nullString(r.Source),
		nullString(r.Target),
		r.Hidden,
		propsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}

	for _, trait := range traits {
		if _, err := tx.ExecContext(ctx, `INSERT INTO traits (entity_id, trait) VALUES (?, ?)`, r.ID, trait); err != nil {
			return fmt.Errorf("insert trait %q: %w", trait, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO props (entity_id, key, pos, vtype, vtext, vfold, vnum, blank)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare props: %w", err)
	}
	defer stmt.Close()

	for _, row := range querysql.EncodeProps(r.Props) {
		if _, err := stmt.ExecContext(ctx, r.ID, row.Key, row.Pos, row.VType, row.VText, row.VFold, row.VNum, row.Blank); err != nil {
			return fmt.Errorf("insert prop %q[%d]: %w", row.Key, row.Pos, err)
		}
	}
	return nil
}

// Delete removes entities by ID. Unknown IDs are ignored.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete %q: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete: commit: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
