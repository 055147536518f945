package db

import (
	"context"
	"fmt"
)

// scanEdge scans a (category_id, member_id) row into an Edge.
func scanEdge(scanner interface{ Scan(dest ...any) error }) (Edge, error) {
	var e Edge
	err := scanner.Scan(&e.CategoryID, &e.MemberID)
	return e, err
}

// AllEdges returns every membership edge ordered by category then member.
func (d *DB) AllEdges(ctx context.Context) ([]Edge, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT category_id, member_id
		FROM members
		ORDER BY category_id, member_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// EdgesForMember returns the edges where id is the member, i.e. its parents.
func (d *DB) EdgesForMember(ctx context.Context, id int64) ([]Edge, error) {
	rows, err := d.conn.QueryContext(ctx, d.rebind(`
		SELECT category_id, member_id
		FROM members WHERE member_id = ?
		ORDER BY category_id
	`), id)
	if err != nil {
		return nil, fmt.Errorf("querying parents of %d: %w", id, err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Counts returns the number of rows in each table.
func (d *DB) Counts(ctx context.Context) (Stats, error) {
	var s Stats
	err := d.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM tropes),
			(SELECT COUNT(*) FROM members)
	`).Scan(&s.Categories, &s.Tropes, &s.Edges)
	if err != nil {
		return Stats{}, fmt.Errorf("counting rows: %w", err)
	}
	return s, nil
}
