package graph

import (
	"context"

	"allthetropes/catwalk/internal/db"
	"allthetropes/catwalk/internal/wiki"
)

// SnapshotFromDB loads a GraphSnapshot from the membership store. Readers
// may run while a crawl is appending; each upsert is one transaction, so a
// half-written edge is never visible.
func SnapshotFromDB(ctx context.Context, d *db.DB) (*GraphSnapshot, error) {
	categories, err := d.AllCategories(ctx)
	if err != nil {
		return nil, err
	}
	tropes, err := d.AllTropes(ctx)
	if err != nil {
		return nil, err
	}
	dbEdges, err := d.AllEdges(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make([]*NodeInfo, 0, len(categories)+len(tropes))
	for _, p := range categories {
		nodes = append(nodes, &NodeInfo{ID: p.ID, Title: p.Title, Kind: wiki.KindCategory})
	}
	for _, p := range tropes {
		nodes = append(nodes, &NodeInfo{ID: p.ID, Title: p.Title, Kind: wiki.KindTrope})
	}

	edges := make([]EdgeInfo, 0, len(dbEdges))
	for _, e := range dbEdges {
		edges = append(edges, EdgeInfo{Category: e.CategoryID, Member: e.MemberID})
	}

	return NewSnapshot(nodes, edges), nil
}
