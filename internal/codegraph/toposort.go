package codegraph

import "sort"

// topoSortLocked orders symbols so that edge targets (the referenced side)
// come before edge sources. Ties are broken by qualified name, which makes
// the full ordering deterministic for a given symbol/edge set. When no node
// is ready the remaining nodes form cycles; the smallest qualified name is
// force-placed and recorded as a CycleBreak.
//
// Self-edges are ignored here: plain recursion does not constrain ordering.
func (g *Graph) topoSortLocked() ([]int, []CycleBreak) {
	n := len(g.symbols)
	if n == 0 {
		return nil, nil
	}

	depCount := make([]int, n)
	dependents := make(map[int][]int, n)
	seen := make(map[[2]int]struct{}, len(g.edges))
	for _, e := range g.edges {
		if e.From == e.To {
			continue
		}
		key := [2]int{e.From, e.To}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		depCount[e.From]++
		dependents[e.To] = append(dependents[e.To], e.From)
	}

	ready := nameQueue{g: g}
	for id := 0; id < n; id++ {
		if depCount[id] == 0 {
			ready.push(id)
		}
	}

	placed := make([]bool, n)
	order := make([]int, 0, n)
	var breaks []CycleBreak
	for len(order) < n {
		if ready.empty() {
			pick := -1
			for id := 0; id < n; id++ {
				if placed[id] {
					continue
				}
				if pick < 0 || g.symbols[id].Name < g.symbols[pick].Name {
					pick = id
				}
			}
			breaks = append(breaks, CycleBreak{ID: pick, Name: g.symbols[pick].Name})
			depCount[pick] = 0
			ready.push(pick)
		}
		id := ready.pop()
		if placed[id] {
			continue
		}
		placed[id] = true
		order = append(order, id)
		for _, dep := range dependents[id] {
			if placed[dep] {
				continue
			}
			depCount[dep]--
			if depCount[dep] == 0 {
				ready.push(dep)
			}
		}
	}
	return order, breaks
}

// nameQueue keeps ready symbol IDs sorted by qualified name. Names are
// unique after deduplication, so ordering is total.
type nameQueue struct {
	g   *Graph
	ids []int
}

func (q *nameQueue) empty() bool { return len(q.ids) == 0 }

func (q *nameQueue) push(id int) {
	name := q.g.symbols[id].Name
	i := sort.Search(len(q.ids), func(i int) bool {
		return q.g.symbols[q.ids[i]].Name >= name
	})
	q.ids = append(q.ids, 0)
	copy(q.ids[i+1:], q.ids[i:])
	q.ids[i] = id
}

func (q *nameQueue) pop() int {
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id
}
