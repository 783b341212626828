package divide

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"untangle/internal/graph"
	"untangle/internal/model"
)

// makePatches returns n single-line insertions into F.java.
func makePatches(t *testing.T, n int) []*model.Patch {
	t.Helper()
	view := model.NewFileView("F.java")
	patches := make([]*model.Patch, n)
	for i := range patches {
		r, err := model.NewRegion(view, i, i+1, i+1)
		require.NoError(t, err)
		p, err := model.NewPatch(i, nil, r)
		require.NoError(t, err)
		patches[i] = p
	}
	return patches
}

func render(groups [][]*model.Patch) string {
	var out strings.Builder
	for _, g := range groups {
		ids := make([]string, len(g))
		for i, p := range g {
			ids[i] = strconv.Itoa(p.Index())
		}
		out.WriteString(strings.Join(ids, " "))
		out.WriteString("\n")
	}
	return out.String()
}

func TestDecompose_DataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/decompose", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "decompose":
			var n int
			d.ScanArgs(t, "n", &n)
			patches := makePatches(t, n)
			g := graph.New[*model.Patch, HyperEdge]()
			for _, p := range patches {
				g.AddNode(p)
			}
			for _, line := range strings.Split(d.Input, "\n") {
				from, to, ok := strings.Cut(line, "->")
				if !ok {
					continue
				}
				x, err := strconv.Atoi(strings.TrimSpace(from))
				require.NoError(t, err)
				y, err := strconv.Atoi(strings.TrimSpace(to))
				require.NoError(t, err)
				g.AddEdge(HyperEdge{From: patches[x], To: patches[y], Kind: Depend})
			}
			return render(Decompose(g, patches))
		default:
			t.Fatalf("unknown command: %s", d.Cmd)
			return ""
		}
	})
}

func TestDecompose_Partition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	kinds := []HyperKind{Refactor, Depend, Clone, Trivial}

	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(20)
		patches := makePatches(t, n)
		g := graph.New[*model.Patch, HyperEdge]()
		for _, p := range patches {
			g.AddNode(p)
		}
		for e := rng.Intn(3 * n); e > 0; e-- {
			x, y := rng.Intn(n), rng.Intn(n)
			if x != y {
				g.AddEdge(HyperEdge{From: patches[x], To: patches[y], Kind: kinds[rng.Intn(len(kinds))]})
			}
		}

		groups := Decompose(g, patches)
		seen := make(map[*model.Patch]int)
		for _, grp := range groups {
			require.NotEmpty(t, grp)
			for _, p := range grp {
				seen[p]++
			}
		}
		require.Len(t, seen, n, "round %d", round)
		for p, count := range seen {
			assert.Equal(t, 1, count, fmt.Sprintf("round %d: patch %d", round, p.Index()))
		}
	}
}
