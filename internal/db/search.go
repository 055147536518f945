package db

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "is": true,
	"it": true, "and": true, "or": true, "with": true, "from": true,
	"by": true, "this": true, "that": true, "as": true, "be": true,
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchTerms splits a free-text query into lowercase terms.
// Drops stopwords and words under 3 chars, and trims punctuation from both ends.
func SearchTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(query) {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(trimmed) < 3 {
			continue
		}
		lower := strings.ToLower(trimmed)
		if stopwords[lower] {
			continue
		}
		terms = append(terms, lower)
	}
	return terms
}

// SearchTitles finds stored categories and tropes whose title contains every
// term of query, case-insensitively. Returns an empty slice if the query has
// no usable terms.
func (d *DB) SearchTitles(ctx context.Context, query string, limit int) ([]TitleMatch, error) {
	terms := SearchTerms(query)
	if len(terms) == 0 {
		return []TitleMatch{}, nil
	}

	conds := make([]string, len(terms))
	var patterns []any
	for i, t := range terms {
		conds[i] = `LOWER(title) LIKE ? ESCAPE '\'`
		patterns = append(patterns, "%"+likeEscaper.Replace(t)+"%")
	}
	where := strings.Join(conds, " AND ")

	args := append(append(append([]any{}, patterns...), patterns...), limit)
	rows, err := d.conn.QueryContext(ctx, d.rebind(`
		SELECT id, title, kind FROM (
			SELECT id, title, 'category' AS kind FROM categories WHERE `+where+`
			UNION ALL
			SELECT id, title, 'trope' AS kind FROM tropes WHERE `+where+`
		) hits
		ORDER BY title, id
		LIMIT ?
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("searching titles: %w", err)
	}
	defer rows.Close()

	matches := []TitleMatch{}
	for rows.Next() {
		var m TitleMatch
		if err := rows.Scan(&m.Page.ID, &m.Page.Title, &m.Kind); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
