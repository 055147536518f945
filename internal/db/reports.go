package db

import (
	"context"
	"fmt"

	"allthetropes/catwalk/internal/wiki"
)

// Read-only projections for inspecting a store. None of these are used by
// the crawl or hierarchy paths.

// ListCategories returns every category with its direct member count.
func (d *DB) ListCategories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT c.id, c.title, COUNT(m.member_id)
		FROM categories c
		LEFT JOIN members m ON m.category_id = c.id
		GROUP BY c.id, c.title
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.ID, &c.Title, &c.Members); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListMembers returns every edge with both titles, tropes and subcategories
// alike, ordered by category then member.
func (d *DB) ListMembers(ctx context.Context) ([]Membership, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT category_id, c.title, member_id, t.title, 'trope'
		FROM members
		JOIN categories c ON c.id = category_id
		JOIN tropes t ON t.id = member_id

		UNION ALL

		SELECT category_id, c.title, member_id, m.title, 'category'
		FROM members
		JOIN categories c ON c.id = category_id
		JOIN categories m ON m.id = member_id

		ORDER BY 1, 3
	`)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.CategoryID, &m.CategoryTitle, &m.MemberID, &m.MemberTitle, &m.MemberKind); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CategoriesThatAreMembers returns the categories that sit inside another category.
func (d *DB) CategoriesThatAreMembers(ctx context.Context) ([]wiki.Page, error) {
	pages, err := d.queryPages(ctx, `
		SELECT DISTINCT m.id, m.title
		FROM members
		JOIN categories m ON m.id = member_id
		ORDER BY m.id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing nested categories: %w", err)
	}
	return pages, nil
}

// CategoriesByTrope groups each trope with the categories it belongs to.
func (d *DB) CategoriesByTrope(ctx context.Context) ([]Grouping, error) {
	return d.groupParents(ctx, "tropes")
}

// CategoriesByCategory groups each nested category with its parents.
func (d *DB) CategoriesByCategory(ctx context.Context) ([]Grouping, error) {
	return d.groupParents(ctx, "categories")
}

// groupParents folds (member, parent) rows, sorted by member, into one
// Grouping per member.
func (d *DB) groupParents(ctx context.Context, memberTable string) ([]Grouping, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT m.id, m.title, c.id, c.title
		FROM members
		JOIN `+memberTable+` m ON m.id = member_id
		JOIN categories c ON c.id = category_id
		ORDER BY m.id, c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("grouping %s by category: %w", memberTable, err)
	}
	defer rows.Close()

	var out []Grouping
	for rows.Next() {
		var member, parent wiki.Page
		if err := rows.Scan(&member.ID, &member.Title, &parent.ID, &parent.Title); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].Member.ID != member.ID {
			out = append(out, Grouping{Member: member})
		}
		last := &out[len(out)-1]
		last.Categories = append(last.Categories, parent)
	}
	return out, rows.Err()
}
