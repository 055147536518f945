package db

import (
	"fmt"

	"allthetropes/catwalk/internal/wiki"
)

// TitlePolicy decides what an upsert does when the ID is already stored.
type TitlePolicy string

const (
	// KeepFirst leaves the first stored title untouched.
	KeepFirst TitlePolicy = "keep-first"
	// Refresh overwrites the stored title with the newest one seen.
	Refresh TitlePolicy = "refresh"
)

// ParseTitlePolicy accepts "keep-first", "refresh", or "" (keep-first).
func ParseTitlePolicy(s string) (TitlePolicy, error) {
	switch TitlePolicy(s) {
	case "", KeepFirst:
		return KeepFirst, nil
	case Refresh:
		return Refresh, nil
	}
	return "", fmt.Errorf("unknown title policy %q (want %s or %s)", s, KeepFirst, Refresh)
}

// Edge is a row in the members table: member belongs to category.
type Edge struct {
	CategoryID int64 `json:"category_id"`
	MemberID   int64 `json:"member_id"`
}

// CategoryCount is a category with the number of its direct members.
type CategoryCount struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Members int    `json:"members"`
}

// Membership is an edge with both titles joined in.
type Membership struct {
	CategoryID    int64  `json:"category_id"`
	CategoryTitle string `json:"category_title"`
	MemberID      int64  `json:"member_id"`
	MemberTitle   string `json:"member_title"`
	// MemberKind is "category" or "trope".
	MemberKind string `json:"member_kind"`
}

// Grouping is a member together with every category it belongs to.
type Grouping struct {
	Member     wiki.Page   `json:"member"`
	Categories []wiki.Page `json:"categories"`
}

// Stats counts the rows of each table.
type Stats struct {
	Categories int `json:"categories"`
	Tropes     int `json:"tropes"`
	Edges      int `json:"edges"`
}

// TitleMatch is one search hit.
type TitleMatch struct {
	Page wiki.Page `json:"page"`
	Kind string    `json:"kind"`
}
