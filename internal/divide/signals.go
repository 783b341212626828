package divide

import (
	"context"
	"slices"
	"strings"

	"untangle/internal/model"
	"untangle/internal/refactor"
)

var commentPrefixes = []string{"//", "/*", "*", "*/", "/**"}

// isComment reports whether every stripped line is blank or starts a
// comment.
func isComment(lines []string) bool {
	for _, l := range lines {
		if l == "" {
			continue
		}
		if !slices.ContainsFunc(commentPrefixes, func(p string) bool { return strings.HasPrefix(l, p) }) {
			return false
		}
	}
	return true
}

// wholeRegion is the span of a side without a counterpart.
func wholeRegion(r *model.Region) model.Info {
	return model.NewInfo(r.Begin(), 1, r.End()+1, 0)
}

// tokenDiff fills the token spans of both sides of p.
func (c *Cluster) tokenDiff(ctx context.Context, p *model.Patch) error {
	prev, next := p.Prev(), p.Next()
	switch {
	case prev == nil:
		next.AddToken(wholeRegion(next))
	case next == nil:
		prev.AddToken(wholeRegion(prev))
	default:
		res, err := c.opts.Differ.Diff(ctx, prev.Code(), next.Code())
		if err != nil {
			return err
		}
		for _, info := range res.Removed {
			prev.AddToken(info.RowOffset(prev.Begin()))
		}
		for _, info := range res.Inserted {
			next.AddToken(info.RowOffset(next.Begin()))
		}
	}
	return nil
}

// involved collects the patches whose regions in snap intersect locs.
func involved(snap *model.Snapshot, locs []refactor.Location, into map[int]bool) {
	for _, loc := range locs {
		view := snap.View(loc.FilePath)
		if view == nil {
			continue
		}
		for _, r := range view.Regions() {
			if r.Intersects(loc.StartLine, loc.EndLine) {
				into[r.Index()] = true
			}
		}
	}
}

// linkRefactorings chains the patches touched by each refactoring with
// edges in both directions.
func (c *Cluster) linkRefactorings(diff *model.Diff, refs []refactor.Refactoring) {
	for _, ref := range refs {
		index := make(map[int]bool)
		involved(diff.Prev(), ref.Left, index)
		involved(diff.Next(), ref.Right, index)
		ids := make([]int, 0, len(index))
		for i := range index {
			ids = append(ids, i)
		}
		slices.Sort(ids)
		for k := 1; k < len(ids); k++ {
			x, y := diff.Patch(ids[k]), diff.Patch(ids[k-1])
			c.addEdge(x, y, Refactor)
			c.addEdge(y, x, Refactor)
		}
	}
}

func (c *Cluster) detectClones(patches []*model.Patch) {
	for i, pi := range patches {
		for _, pj := range patches[i+1:] {
			if pi.PathEquals(pj) && pi.Cosine(pj) >= c.opts.CloneThreshold {
				c.addEdge(pi, pj, Clone)
			}
		}
	}
}

func trivialSide(r *model.Region) bool {
	return r == nil || isComment(r.StrippedCode()) || len(r.Tokens()) == 0
}

// detectTrivial links every cosmetic patch to the earlier cosmetic patches of
// the same files.
func (c *Cluster) detectTrivial(patches []*model.Patch) {
	var seen []*model.Patch
	for _, p := range patches {
		if !trivialSide(p.Prev()) || !trivialSide(p.Next()) {
			continue
		}
		for _, pre := range seen {
			if p.PathEquals(pre) {
				c.addEdge(p, pre, Trivial)
			}
		}
		seen = append(seen, p)
	}
}
