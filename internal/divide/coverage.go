package divide

import (
	"untangle/internal/analysis"
	"untangle/internal/model"
)

// project lifts the structural edges of one snapshot onto the patches whose
// changed tokens overlap their endpoints.
func (c *Cluster) project(diff *model.Diff, snap *model.Snapshot, g *analysis.StructureGraph) int {
	cover := make(map[model.TreeNode][]*model.Patch)
	for _, n := range g.Nodes() {
		view := snap.View(n.Path)
		if view == nil {
			continue
		}
		var ps []*model.Patch
		for _, r := range view.Regions() {
			for _, tok := range r.Tokens() {
				if tok.Intersects(n.Span) {
					ps = append(ps, diff.Patch(r.Index()))
					break
				}
			}
		}
		if len(ps) > 0 {
			cover[n] = ps
		}
	}

	added := 0
	for _, n := range g.Nodes() {
		srcs, ok := cover[n]
		if !ok {
			continue
		}
		for _, succ := range g.Succs(n) {
			for _, tgt := range cover[succ] {
				for _, src := range srcs {
					if c.addEdge(src, tgt, Depend) {
						added++
					}
				}
			}
		}
	}
	return added
}
