package graph

import "sort"

// Cycle is a strongly connected group of categories: each one contains every
// other, directly or transitively. A single category that lists itself as a
// member is a cycle of one.
type Cycle struct {
	IDs    []int64  `json:"ids"`
	Titles []string `json:"titles"`
}

// FindCycles returns the cycles among categories, each sorted by id and the
// list ordered by smallest id. Uses Tarjan's algorithm with an explicit stack.
func FindCycles(snap *GraphSnapshot) []Cycle {
	index := make(map[int64]int)
	low := make(map[int64]int)
	onStack := make(map[int64]bool)
	var stack []int64
	var sccs [][]int64
	counter := 0

	visit := func(id int64) {
		index[id], low[id] = counter, counter
		counter++
		stack = append(stack, id)
		onStack[id] = true
	}

	type frame struct {
		id   int64
		next int
	}

	for _, start := range snap.NodeIDs() {
		if _, seen := index[start]; seen || !snap.IsCategory(start) {
			continue
		}
		visit(start)
		work := []frame{{id: start}}

		for len(work) > 0 {
			f := &work[len(work)-1]
			children := snap.OutAdj[f.id]
			if f.next < len(children) {
				c := children[f.next]
				f.next++
				if !snap.IsCategory(c) {
					continue
				}
				if _, seen := index[c]; !seen {
					visit(c)
					work = append(work, frame{id: c})
				} else if onStack[c] {
					low[f.id] = min(low[f.id], index[c])
				}
				continue
			}

			id := f.id
			if low[id] == index[id] {
				var scc []int64
				for {
					n := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[n] = false
					scc = append(scc, n)
					if n == id {
						break
					}
				}
				sccs = append(sccs, scc)
			}
			work = work[:len(work)-1]
			if len(work) > 0 {
				p := work[len(work)-1].id
				low[p] = min(low[p], low[id])
			}
		}
	}

	var cycles []Cycle
	for _, scc := range sccs {
		if len(scc) == 1 && !containsSorted(snap.OutAdj[scc[0]], scc[0]) {
			continue
		}
		sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
		c := Cycle{IDs: scc, Titles: make([]string, len(scc))}
		for i, id := range scc {
			c.Titles[i] = snap.Title(id)
		}
		cycles = append(cycles, c)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].IDs[0] < cycles[j].IDs[0] })
	return cycles
}

func containsSorted(ids []int64, id int64) bool {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	return i < len(ids) && ids[i] == id
}
