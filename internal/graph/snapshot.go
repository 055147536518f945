package graph

import (
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"

	"allthetropes/catwalk/internal/wiki"
)

// NodeInfo is a lightweight page representation decoupled from DB types
type NodeInfo struct {
	ID    int64
	Title string
	Kind  wiki.Kind
}

// EdgeInfo is a membership edge: Member belongs to Category
type EdgeInfo struct {
	Category int64
	Member   int64
}

// GraphSnapshot holds the membership graph with precomputed adjacency lists
type GraphSnapshot struct {
	Nodes  map[int64]*NodeInfo
	Edges  []EdgeInfo
	Adj    map[int64][]int64 // undirected
	OutAdj map[int64][]int64 // category -> members, ascending
	InAdj  map[int64][]int64 // member -> categories, ascending
	// HasParent holds every node that is the member side of some edge.
	HasParent *roaring64.Bitmap
}

// NewSnapshot builds a GraphSnapshot from raw nodes and edges. Edges whose
// endpoints are unknown, or whose category side is not a category, are dropped.
func NewSnapshot(nodes []*NodeInfo, edges []EdgeInfo) *GraphSnapshot {
	nodeMap := make(map[int64]*NodeInfo, len(nodes))
	adj := make(map[int64][]int64)
	outAdj := make(map[int64][]int64)
	inAdj := make(map[int64][]int64)
	hasParent := roaring64.New()

	for _, n := range nodes {
		nodeMap[n.ID] = n
		adj[n.ID] = nil // ensure entry exists
		outAdj[n.ID] = nil
		inAdj[n.ID] = nil
	}

	kept := make([]EdgeInfo, 0, len(edges))
	for _, e := range edges {
		cat, ok := nodeMap[e.Category]
		if !ok || cat.Kind != wiki.KindCategory {
			continue
		}
		if _, ok := nodeMap[e.Member]; !ok {
			continue
		}
		kept = append(kept, e)
		adj[e.Category] = append(adj[e.Category], e.Member)
		adj[e.Member] = append(adj[e.Member], e.Category)
		outAdj[e.Category] = append(outAdj[e.Category], e.Member)
		inAdj[e.Member] = append(inAdj[e.Member], e.Category)
		hasParent.Add(uint64(e.Member))
	}

	for _, m := range []map[int64][]int64{outAdj, inAdj} {
		for _, ids := range m {
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		}
	}

	return &GraphSnapshot{
		Nodes:     nodeMap,
		Edges:     kept,
		Adj:       adj,
		OutAdj:    outAdj,
		InAdj:     inAdj,
		HasParent: hasParent,
	}
}

// NodeIDs returns a sorted list of all node IDs (for deterministic output)
func (s *GraphSnapshot) NodeIDs() []int64 {
	ids := make([]int64, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsCategory reports whether id is a stored category.
func (s *GraphSnapshot) IsCategory(id int64) bool {
	n, ok := s.Nodes[id]
	return ok && n.Kind == wiki.KindCategory
}

// Fanout is the number of direct members of id.
func (s *GraphSnapshot) Fanout(id int64) int {
	return len(s.OutAdj[id])
}

// Title returns the stored title of id, or "" if unknown.
func (s *GraphSnapshot) Title(id int64) string {
	if n, ok := s.Nodes[id]; ok {
		return n.Title
	}
	return ""
}
