package db

import (
	"context"
	"database/sql"
	"fmt"

	"allthetropes/catwalk/internal/wiki"
)

func (d *DB) titleUpsert(table string) string {
	conflict := "DO NOTHING"
	if d.policy == Refresh {
		conflict = "DO UPDATE SET title = excluded.title"
	}
	return d.rebind(`INSERT INTO ` + table + `(id, title) VALUES (?, ?) ON CONFLICT(id) ` + conflict)
}

// Upsert records one snapshot in a single transaction: each member's identity
// row, each parent category's identity row, and the membership edges. Either
// the whole snapshot is stored or none of it is, and repeating an upsert is a
// no-op.
func (d *DB) Upsert(ctx context.Context, s wiki.Snapshot) (err error) {
	defer func() { d.metrics.ObserveUpsert(err) }()

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	category, err := tx.PrepareContext(ctx, d.titleUpsert("categories"))
	if err != nil {
		return fmt.Errorf("preparing category upsert: %w", err)
	}
	defer category.Close()

	trope, err := tx.PrepareContext(ctx, d.titleUpsert("tropes"))
	if err != nil {
		return fmt.Errorf("preparing trope upsert: %w", err)
	}
	defer trope.Close()

	edge, err := tx.PrepareContext(ctx, d.rebind(
		`INSERT INTO members(category_id, member_id) VALUES (?, ?) ON CONFLICT(category_id, member_id) DO NOTHING`))
	if err != nil {
		return fmt.Errorf("preparing edge upsert: %w", err)
	}
	defer edge.Close()

	for _, e := range s.Entries() {
		kind, title := wiki.Classify(e.Member.Title)
		stmt := trope
		if kind == wiki.KindCategory {
			stmt = category
		}
		if _, err := stmt.ExecContext(ctx, e.Member.ID, title); err != nil {
			return fmt.Errorf("upserting %s %d: %w", kind, e.Member.ID, err)
		}

		for _, parent := range e.Parents.Sorted() {
			if err := upsertEdge(ctx, category, edge, parent, e.Member.ID); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// upsertEdge writes the parent's identity row before the edge that references it.
func upsertEdge(ctx context.Context, category, edge *sql.Stmt, parent wiki.Page, memberID int64) error {
	if _, err := category.ExecContext(ctx, parent.ID, wiki.CategoryName(parent.Title)); err != nil {
		return fmt.Errorf("upserting category %d: %w", parent.ID, err)
	}
	if _, err := edge.ExecContext(ctx, parent.ID, memberID); err != nil {
		return fmt.Errorf("upserting edge %d->%d: %w", parent.ID, memberID, err)
	}
	return nil
}
