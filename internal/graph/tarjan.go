package graph

// frame is one entry of the explicit DFS stack: the node being expanded and
// the position of the next successor to look at.
type frame[N comparable] struct {
	node N
	next int
}

// Tarjan computes the strongly connected components of g without recursion.
// Components are returned in the order Tarjan's algorithm completes them
// (reverse topological order of the condensation); roots are tried in node
// insertion order, successors in edge insertion order.
func Tarjan[N comparable, E Edge[N]](g *Graph[N, E]) [][]N {
	var (
		counter int
		indexes = make(map[N]int, g.NodeCount())
		lows    = make(map[N]int, g.NodeCount())
		onStack = make(map[N]bool, g.NodeCount())
		stack   []N
		result  [][]N
	)

	succs := make(map[N][]N, g.NodeCount())
	successors := func(n N) []N {
		s, ok := succs[n]
		if !ok {
			s = g.Succs(n)
			succs[n] = s
		}
		return s
	}

	visit := func(n N) {
		indexes[n] = counter
		lows[n] = counter
		counter++
		stack = append(stack, n)
		onStack[n] = true
	}

	for _, root := range g.Nodes() {
		if _, seen := indexes[root]; seen {
			continue
		}
		visit(root)
		work := []frame[N]{{node: root}}

		for len(work) > 0 {
			top := &work[len(work)-1]
			node := top.node
			ss := successors(node)

			if top.next < len(ss) {
				succ := ss[top.next]
				top.next++
				if _, seen := indexes[succ]; !seen {
					visit(succ)
					work = append(work, frame[N]{node: succ})
				} else if onStack[succ] {
					lows[node] = min(lows[node], indexes[succ])
				}
				continue
			}

			// all successors done: close the component if node is its root
			if lows[node] == indexes[node] {
				var scc []N
				for {
					last := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[last] = false
					scc = append(scc, last)
					if last == node {
						break
					}
				}
				result = append(result, scc)
			}
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].node
				lows[parent] = min(lows[parent], lows[node])
			}
		}
	}
	return result
}

// HasSelfLoop reports whether n has an edge back to itself.
func HasSelfLoop[N comparable, E Edge[N]](g *Graph[N, E], n N) bool {
	for _, e := range g.OutEdges(n) {
		if e.Target() == n {
			return true
		}
	}
	return false
}
