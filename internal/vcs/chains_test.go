package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func javaSource(class string, fields int, changed map[int]bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "class %s {\n", class)
	for i := 0; i < fields; i++ {
		v := i
		if changed[i] {
			v = -i
		}
		fmt.Fprintf(&b, "    int v%d = %d;\n", i, v)
	}
	b.WriteString("}\n")
	return b.String()
}

// chainRepo builds a history with two composite commits, c0..c3 and c5..c7.
func chainRepo(t *testing.T) (string, []string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	gitRun(t, dir, "init", "-q")
	src := func(name string) string { return "src/main/java/a/" + name + ".java" }

	var hashes []string
	step := func(files map[string]string) {
		hashes = append(hashes, commitTree(t, dir, files, fmt.Sprintf("c%d", len(hashes))))
	}
	step(map[string]string{
		src("A"):         javaSource("A", 3, nil),
		src("B"):         javaSource("B", 3, nil),
		src("C"):         javaSource("C", 60, nil),
		src("D"):         javaSource("D", 3, nil),
		"tools/Gen.java": javaSource("Gen", 2, nil),
	})
	step(map[string]string{src("A"): javaSource("A", 3, map[int]bool{1: true})})
	step(map[string]string{src("B"): javaSource("B", 3, map[int]bool{1: true})})
	step(map[string]string{src("C"): javaSource("C", 60, map[int]bool{1: true})})
	// A again: ends the first chain.
	step(map[string]string{src("A"): javaSource("A", 3, map[int]bool{2: true})})
	// Outside any source root: nothing to analyse.
	step(map[string]string{"tools/Gen.java": javaSource("Gen", 2, map[int]bool{1: true})})
	step(map[string]string{src("D"): javaSource("D", 3, map[int]bool{1: true})})
	step(map[string]string{src("B"): javaSource("B", 3, map[int]bool{2: true})})
	// Six separate hunks: too scattered to extend the second chain.
	step(map[string]string{src("C"): javaSource("C", 60, map[int]bool{1: true, 11: true, 21: true, 31: true, 41: true, 51: true, 59: true})})
	return dir, hashes
}

func short(hashes ...string) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h[:10]
	}
	return out
}

func TestRepository_Chains(t *testing.T) {
	dir, c := chainRepo(t)
	repo, err := Open(dir, nil)
	require.NoError(t, err)

	cases := []struct {
		name string
		opts func(*ChainOptions)
		want [][]string
	}{
		{
			name: "Defaults",
			opts: func(*ChainOptions) {},
			want: [][]string{short(c[0], c[1], c[2], c[3]), short(c[5], c[6], c[7])},
		},
		{
			name: "Length limit",
			opts: func(o *ChainOptions) { o.MaxLength = 2 },
			want: [][]string{short(c[0], c[1], c[2]), short(c[5], c[6], c[7])},
		},
		{
			name: "Full hashes",
			opts: func(o *ChainOptions) { o.HashLength = 0 },
			want: [][]string{{c[0], c[1], c[2], c[3]}, {c[5], c[6], c[7]}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultChainOptions()
			tc.opts(&opts)
			chains, err := repo.Chains(context.Background(), opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, chains)
		})
	}
}

func TestRepository_ChainsUnknownBranch(t *testing.T) {
	dir, _ := chainRepo(t)
	repo, err := Open(dir, nil)
	require.NoError(t, err)

	opts := DefaultChainOptions()
	opts.Branch = "no-such-branch"
	_, err = repo.Chains(context.Background(), opts)
	require.ErrorIs(t, err, ErrGit)
}

func TestMinable(t *testing.T) {
	assert.True(t, minable(""))
	assert.True(t, minable("core/src/main/java/a/A.java"))
	assert.True(t, minable("src/test/java/a/ATest.java"))
	assert.False(t, minable("tools/Gen.java"))
	assert.False(t, minable("src/main/java/a/notes.txt"))
	assert.False(t, minable("src/main/java/文档/A.java"))
}
