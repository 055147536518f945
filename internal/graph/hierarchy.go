package graph

import (
	"errors"
	"sort"
)

// Path separators: a category-to-subcategory step and a category-to-leaf step.
const (
	CategoryStep = "->"
	LeafStep     = "=>"
)

// ErrInvalidBudget is returned when a node budget is not positive.
var ErrInvalidBudget = errors.New("node budget must be positive")

// PathRow is one materialized row of the downward expansion. Root rows have
// Iter 1 and no category.
type PathRow struct {
	Iter          int    `json:"iter"`
	CategoryID    *int64 `json:"category_id"`
	CategoryTitle string `json:"category_title,omitempty"`
	MemberID      int64  `json:"member_id"`
	Path          string `json:"path"`
}

// PathReport is the result of ResolvePaths.
type PathReport struct {
	Roots []int64   `json:"roots"`
	Rows  []PathRow `json:"rows"`
	// Truncated is set when the budget stopped the expansion with rows left
	// to produce. Results are then incomplete.
	Truncated bool `json:"truncated"`
}

// Roots returns the categories with no parent whose fan-out exceeds
// minFanout, ordered by id.
func Roots(snap *GraphSnapshot, minFanout int) []int64 {
	var roots []int64
	for _, id := range snap.NodeIDs() {
		if !snap.IsCategory(id) || snap.HasParent.Contains(uint64(id)) {
			continue
		}
		if snap.Fanout(id) > minFanout {
			roots = append(roots, id)
		}
	}
	return roots
}

// ResolvePaths expands breadth-first from every root down to the leaves,
// materializing one row per path. The expansion does not track visited
// nodes: a cycle keeps producing longer paths and a node reached through
// several parents yields one row per distinct path. nodeBudget caps the total
// number of rows, root rows included, across all roots.
func ResolvePaths(snap *GraphSnapshot, minRootFanout, nodeBudget int) (*PathReport, error) {
	if nodeBudget <= 0 {
		return nil, ErrInvalidBudget
	}

	report := &PathReport{Roots: Roots(snap, minRootFanout)}
	rows := make([]PathRow, 0, min(nodeBudget, 1024))

	for _, id := range report.Roots {
		if len(rows) == nodeBudget {
			report.Truncated = true
			break
		}
		rows = append(rows, PathRow{Iter: 1, MemberID: id, Path: snap.Title(id)})
	}

	// rows doubles as the BFS queue.
expand:
	for head := 0; head < len(rows) && !report.Truncated; head++ {
		parent := rows[head]
		if !snap.IsCategory(parent.MemberID) {
			continue
		}
		catID := parent.MemberID
		catTitle := snap.Title(catID)
		for _, child := range snap.OutAdj[catID] {
			if len(rows) == nodeBudget {
				report.Truncated = true
				break expand
			}
			step := LeafStep
			if snap.IsCategory(child) {
				step = CategoryStep
			}
			rows = append(rows, PathRow{
				Iter:          parent.Iter + 1,
				CategoryID:    &catID,
				CategoryTitle: catTitle,
				MemberID:      child,
				Path:          parent.Path + step + snap.Title(child),
			})
		}
	}

	report.Rows = rows
	return report, nil
}

// SortByMember orders rows by member id, keeping expansion order among rows
// of the same member.
func SortByMember(rows []PathRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].MemberID < rows[j].MemberID })
}
