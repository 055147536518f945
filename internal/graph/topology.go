package graph

import (
	"sort"

	"allthetropes/catwalk/internal/wiki"
)

// HubCategory is a category with many direct members
type HubCategory struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Members int    `json:"members"`
	Parents int    `json:"parents"`
}

// FanoutBucket is one bucket in the fan-out histogram
type FanoutBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TopologyReport summarizes the shape of the stored membership graph
type TopologyReport struct {
	Categories       int            `json:"categories"`
	Tropes           int            `json:"tropes"`
	Edges            int            `json:"edges"`
	Roots            int            `json:"roots"`
	NumComponents    int            `json:"num_components"`
	LargestComponent int            `json:"largest_component"`
	OrphanCount      int            `json:"orphan_count"`
	OrphanIDs        []int64        `json:"orphan_ids"`
	FanoutHistogram  []FanoutBucket `json:"fanout_histogram"`
	Hubs             []HubCategory  `json:"hubs"`
	Cycles           []Cycle        `json:"cycles"`
	CycleCategories  int            `json:"cycle_categories"`
}

// ComputeTopology analyzes the graph: components, orphans, fan-out
// distribution, the topN largest categories, and category cycles.
func ComputeTopology(snap *GraphSnapshot, topN int) *TopologyReport {
	report := &TopologyReport{
		Edges:           len(snap.Edges),
		FanoutHistogram: defaultHistogram(),
	}
	if len(snap.Nodes) == 0 {
		return report
	}

	nodeIDs := snap.NodeIDs()
	uf := NewUnionFind(nodeIDs)
	for _, e := range snap.Edges {
		uf.Union(e.Category, e.Member)
	}
	for _, c := range uf.Components() {
		report.NumComponents++
		report.LargestComponent = max(report.LargestComponent, len(c))
	}

	var hubs []HubCategory
	for _, id := range nodeIDs {
		if len(snap.Adj[id]) == 0 {
			report.OrphanCount++
			if len(report.OrphanIDs) < topN {
				report.OrphanIDs = append(report.OrphanIDs, id)
			}
		}
		if snap.Nodes[id].Kind == wiki.KindTrope {
			report.Tropes++
			continue
		}

		report.Categories++
		if !snap.HasParent.Contains(uint64(id)) {
			report.Roots++
		}
		fanout := snap.Fanout(id)
		report.FanoutHistogram[fanoutBucket(fanout)].Count++
		hubs = append(hubs, HubCategory{
			ID:      id,
			Title:   snap.Nodes[id].Title,
			Members: fanout,
			Parents: len(snap.InAdj[id]),
		})
	}

	sort.SliceStable(hubs, func(i, j int) bool { return hubs[i].Members > hubs[j].Members })
	if len(hubs) > topN {
		hubs = hubs[:topN]
	}
	report.Hubs = hubs

	report.Cycles = FindCycles(snap)
	for _, c := range report.Cycles {
		report.CycleCategories += len(c.IDs)
	}
	return report
}

func defaultHistogram() []FanoutBucket {
	return []FanoutBucket{
		{Label: "0"}, {Label: "1-9"}, {Label: "10-49"},
		{Label: "50-99"}, {Label: "100-499"}, {Label: "500-999"}, {Label: "1000+"},
	}
}

func fanoutBucket(n int) int {
	switch {
	case n == 0:
		return 0
	case n < 10:
		return 1
	case n < 50:
		return 2
	case n < 100:
		return 3
	case n < 500:
		return 4
	case n < 1000:
		return 5
	default:
		return 6
	}
}
