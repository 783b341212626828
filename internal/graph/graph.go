package graph

// Edge is the constraint for edges stored in a Graph. Source and Target are
// kept on the edge for labelling and printing only; connectivity is owned by
// the graph.
type Edge[N comparable] interface {
	comparable
	Source() N
	Target() N
	Label() string
}

// edgeSet keeps edges unique while preserving insertion order, so that every
// traversal over the graph is deterministic.
type edgeSet[E comparable] struct {
	index map[E]struct{}
	items []E
}

func (s *edgeSet[E]) add(e E) bool {
	if s.index == nil {
		s.index = make(map[E]struct{})
	}
	if _, ok := s.index[e]; ok {
		return false
	}
	s.index[e] = struct{}{}
	s.items = append(s.items, e)
	return true
}

func (s *edgeSet[E]) has(e E) bool {
	_, ok := s.index[e]
	return ok
}

// Graph is a directed multigraph. Two nodes may be joined by several edges as
// long as the edges differ (for example by kind).
type Graph[N comparable, E Edge[N]] struct {
	nodes []N
	index map[N]int
	out   map[N]*edgeSet[E]
	in    map[N]*edgeSet[E]
	edges int
}

// New creates an empty graph.
func New[N comparable, E Edge[N]]() *Graph[N, E] {
	return &Graph[N, E]{
		index: make(map[N]int),
		out:   make(map[N]*edgeSet[E]),
		in:    make(map[N]*edgeSet[E]),
	}
}

// AddNode adds n if it is not present yet.
func (g *Graph[N, E]) AddNode(n N) {
	if _, ok := g.index[n]; ok {
		return
	}
	g.index[n] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.out[n] = &edgeSet[E]{}
	g.in[n] = &edgeSet[E]{}
}

// AddEdge inserts e between its endpoints, adding missing endpoints first.
// It reports whether the edge was new.
func (g *Graph[N, E]) AddEdge(e E) bool {
	src, dst := e.Source(), e.Target()
	g.AddNode(src)
	g.AddNode(dst)
	if !g.out[src].add(e) {
		return false
	}
	g.in[dst].add(e)
	g.edges++
	return true
}

func (g *Graph[N, E]) HasNode(n N) bool {
	_, ok := g.index[n]
	return ok
}

func (g *Graph[N, E]) HasEdge(e E) bool {
	set, ok := g.out[e.Source()]
	return ok && set.has(e)
}

// Nodes returns the nodes in insertion order.
func (g *Graph[N, E]) Nodes() []N {
	return append([]N(nil), g.nodes...)
}

// Edges returns every edge, grouped by source in node insertion order.
func (g *Graph[N, E]) Edges() []E {
	all := make([]E, 0, g.edges)
	for _, n := range g.nodes {
		all = append(all, g.out[n].items...)
	}
	return all
}

func (g *Graph[N, E]) OutEdges(n N) []E {
	if set, ok := g.out[n]; ok {
		return append([]E(nil), set.items...)
	}
	return nil
}

func (g *Graph[N, E]) InEdges(n N) []E {
	if set, ok := g.in[n]; ok {
		return append([]E(nil), set.items...)
	}
	return nil
}

func (g *Graph[N, E]) OutDegree(n N) int {
	if set, ok := g.out[n]; ok {
		return len(set.items)
	}
	return 0
}

func (g *Graph[N, E]) InDegree(n N) int {
	if set, ok := g.in[n]; ok {
		return len(set.items)
	}
	return 0
}

// Succs returns the distinct successors of n in edge insertion order.
func (g *Graph[N, E]) Succs(n N) []N {
	set, ok := g.out[n]
	if !ok {
		return nil
	}
	return project(set.items, func(e E) N { return e.Target() })
}

// Preds returns the distinct predecessors of n in edge insertion order.
func (g *Graph[N, E]) Preds(n N) []N {
	set, ok := g.in[n]
	if !ok {
		return nil
	}
	return project(set.items, func(e E) N { return e.Source() })
}

func (g *Graph[N, E]) NodeCount() int { return len(g.nodes) }

func (g *Graph[N, E]) EdgeCount() int { return g.edges }

func project[N comparable, E any](edges []E, end func(E) N) []N {
	seen := make(map[N]struct{}, len(edges))
	var out []N
	for _, e := range edges {
		n := end(e)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
