package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"allthetropes/catwalk/internal/wiki"
)

// scanPage scans an (id, title) row.
func scanPage(scanner interface{ Scan(dest ...any) error }) (wiki.Page, error) {
	var p wiki.Page
	err := scanner.Scan(&p.ID, &p.Title)
	return p, err
}

func (d *DB) queryPages(ctx context.Context, query string, args ...any) ([]wiki.Page, error) {
	rows, err := d.conn.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []wiki.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// AllCategories returns every category ordered by id. Titles are stored
// without the category prefix.
func (d *DB) AllCategories(ctx context.Context) ([]wiki.Page, error) {
	pages, err := d.queryPages(ctx, `SELECT id, title FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	return pages, nil
}

// AllTropes returns every leaf member ordered by id.
func (d *DB) AllTropes(ctx context.Context) ([]wiki.Page, error) {
	pages, err := d.queryPages(ctx, `SELECT id, title FROM tropes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying tropes: %w", err)
	}
	return pages, nil
}

// GetCategory returns the stored category with id, or nil if absent.
func (d *DB) GetCategory(ctx context.Context, id int64) (*wiki.Page, error) {
	return d.getPage(ctx, "categories", id)
}

// GetTrope returns the stored trope with id, or nil if absent.
func (d *DB) GetTrope(ctx context.Context, id int64) (*wiki.Page, error) {
	return d.getPage(ctx, "tropes", id)
}

func (d *DB) getPage(ctx context.Context, table string, id int64) (*wiki.Page, error) {
	row := d.conn.QueryRowContext(ctx, d.rebind(`SELECT id, title FROM `+table+` WHERE id = ?`), id)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s %d: %w", table, id, err)
	}
	return &p, nil
}
