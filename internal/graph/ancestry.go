package graph

import "sort"

// AncestorRow is one upward path from a leaf: Path runs from CategoryID down
// to the leaf's direct parent.
type AncestorRow struct {
	Iter          int    `json:"iter"`
	LeafID        int64  `json:"leaf_id"`
	LeafTitle     string `json:"leaf_title"`
	CategoryID    int64  `json:"category_id"`
	CategoryTitle string `json:"category_title"`
	Path          string `json:"path"`
}

// AncestorReport is the result of AncestorPaths.
type AncestorReport struct {
	Rows      []AncestorRow `json:"rows"`
	Truncated bool          `json:"truncated"`
}

type ancestorKey struct {
	leaf, category int64
	path           string
}

// AncestorPaths walks upward from every (leaf, direct parent) edge through
// categories that are themselves members, one row per distinct
// (leaf, category, path). Like ResolvePaths it does not stop at cycles and
// relies on nodeBudget to bound the rows. Rows are ordered by leaf id.
//
// Every row, climbed ones included, names the trope it started from in
// LeafID and LeafTitle; the intermediate category a row climbed through is
// the last step of Path, not a separate member column.
func AncestorPaths(snap *GraphSnapshot, nodeBudget int) (*AncestorReport, error) {
	if nodeBudget <= 0 {
		return nil, ErrInvalidBudget
	}

	report := &AncestorReport{}
	rows := make([]AncestorRow, 0, min(nodeBudget, 1024))
	seen := make(map[ancestorKey]bool)

	// add appends r unless it is a duplicate; false means the budget is spent.
	add := func(r AncestorRow) bool {
		k := ancestorKey{r.LeafID, r.CategoryID, r.Path}
		if seen[k] {
			return true
		}
		if len(rows) == nodeBudget {
			report.Truncated = true
			return false
		}
		seen[k] = true
		rows = append(rows, r)
		return true
	}

seed:
	for _, leaf := range snap.NodeIDs() {
		if snap.IsCategory(leaf) {
			continue
		}
		for _, cat := range snap.InAdj[leaf] {
			r := AncestorRow{
				Iter:          1,
				LeafID:        leaf,
				LeafTitle:     snap.Title(leaf),
				CategoryID:    cat,
				CategoryTitle: snap.Title(cat),
				Path:          snap.Title(cat),
			}
			if !add(r) {
				break seed
			}
		}
	}

climb:
	for head := 0; head < len(rows) && !report.Truncated; head++ {
		child := rows[head]
		for _, cat := range snap.InAdj[child.CategoryID] {
			r := AncestorRow{
				Iter:          child.Iter + 1,
				LeafID:        child.LeafID,
				LeafTitle:     child.LeafTitle,
				CategoryID:    cat,
				CategoryTitle: snap.Title(cat),
				Path:          snap.Title(cat) + CategoryStep + child.Path,
			}
			if !add(r) {
				break climb
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].LeafID < rows[j].LeafID })
	report.Rows = rows
	return report, nil
}
