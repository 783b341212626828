package divide

import (
	"cmp"
	"slices"

	"untangle/internal/graph"
	"untangle/internal/model"
)

// Decompose partitions patches into groups. Strongly connected components
// with more than one patch, or with a self-loop, come first. The remaining
// patches are merged with each of their ungrouped successors, and every
// resulting class is one more group. Members are listed in diff order.
func Decompose(g *PatchGraph, patches []*model.Patch) [][]*model.Patch {
	var groups [][]*model.Patch
	grouped := make(map[*model.Patch]bool)

	for _, scc := range graph.Tarjan(g) {
		if len(scc) == 1 && !graph.HasSelfLoop(g, scc[0]) {
			continue
		}
		for _, p := range scc {
			grouped[p] = true
		}
		groups = append(groups, sortByIndex(scc))
	}

	union := graph.NewDisjointSet[*model.Patch]()
	for _, p := range patches {
		if grouped[p] {
			continue
		}
		union.Add(p)
		if !g.HasNode(p) {
			continue
		}
		for _, succ := range g.Succs(p) {
			if grouped[succ] {
				continue
			}
			union.Add(succ)
			union.Union(p, succ)
		}
	}
	for _, set := range union.Sets() {
		groups = append(groups, sortByIndex(set))
	}
	return groups
}

func sortByIndex(ps []*model.Patch) []*model.Patch {
	out := slices.Clone(ps)
	slices.SortFunc(out, func(a, b *model.Patch) int { return cmp.Compare(a.Index(), b.Index()) })
	return out
}
