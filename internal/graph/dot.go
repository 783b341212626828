package graph

import (
	"bufio"
	"fmt"
	"io"
)

// WriteDOT renders g in Graphviz DOT format. Nodes are numbered by insertion
// order and labelled with label(n).
func WriteDOT[N comparable, E Edge[N]](w io.Writer, g *Graph[N, E], name string, label func(N) string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %q {\n", name)
	fmt.Fprintln(bw, "  node [shape=box, fontname=\"Helvetica\"];")
	for _, n := range g.Nodes() {
		fmt.Fprintf(bw, "  n%d [label=%q];\n", g.index[n], label(n))
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(bw, "  n%d -> n%d [label=%q];\n", g.index[e.Source()], g.index[e.Target()], e.Label())
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
