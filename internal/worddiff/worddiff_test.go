package worddiff

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"untangle/internal/model"
)

type wordCase struct {
	name     string
	before   []string
	after    []string
	removed  []model.Info
	inserted []model.Info
}

var wordCases = []wordCase{
	{
		name:     "changed literal",
		before:   []string{"int a = 1;", "return a;"},
		after:    []string{"int a = 2;", "return a;"},
		removed:  []model.Info{model.NewInfo(0, 9, 0, 10)},
		inserted: []model.Info{model.NewInfo(0, 9, 0, 10)},
	},
	{
		name:     "inserted line",
		before:   []string{"a();", "c();"},
		after:    []string{"a();", "b();", "c();"},
		inserted: []model.Info{model.NewInfo(1, 1, 1, 4)},
	},
	{
		name:    "deleted word",
		before:  []string{"final int x;"},
		after:   []string{"int x;"},
		removed: []model.Info{model.NewInfo(0, 1, 0, 5)},
	},
}

func TestParsePorcelain(t *testing.T) {
	output := `diff --git a/f1.txt b/f2.txt
index 3b18e51..f1b9c2a 100644
--- a/f1.txt
+++ b/f2.txt
@@ -1,2 +1,2 @@
 int a = 
-1;
+2;
~
 return a;
~
`
	res, err := ParsePorcelain(output, wordCases[0].before, wordCases[0].after)
	require.NoError(t, err)
	assert.Equal(t, wordCases[0].removed, res.Removed)
	assert.Equal(t, wordCases[0].inserted, res.Inserted)

	t.Run("Line end on one side only", func(t *testing.T) {
		output := "@@ -1,2 +1,3 @@\n a();\n~\n+b();\n~\n c();\n~\n"
		res, err := ParsePorcelain(output, []string{"a();", "c();"}, []string{"a();", "b();", "c();"})
		require.NoError(t, err)
		assert.Empty(t, res.Removed)
		assert.Equal(t, []model.Info{model.NewInfo(1, 1, 1, 4)}, res.Inserted)
	})

	t.Run("Hunk header sets rows", func(t *testing.T) {
		output := "@@ -3 +3 @@\n-x\n+y\n~\n"
		res, err := ParsePorcelain(output, []string{"a", "b", "x"}, []string{"a", "b", "y"})
		require.NoError(t, err)
		assert.Equal(t, []model.Info{model.NewInfo(2, 1, 2, 1)}, res.Removed)
		assert.Equal(t, []model.Info{model.NewInfo(2, 1, 2, 1)}, res.Inserted)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ParsePorcelain("@@ -1 +1 @@\n?what\n", []string{"a"}, []string{"b"})
		require.ErrorIs(t, err, ErrProcess)
	})
}

func runCases(t *testing.T, d Differ, cases []wordCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := d.Diff(context.Background(), tc.before, tc.after)
			require.NoError(t, err)
			assert.Equal(t, tc.removed, res.Removed)
			assert.Equal(t, tc.inserted, res.Inserted)
		})
	}
}

func TestBuiltin(t *testing.T) {
	runCases(t, Builtin{}, wordCases)
}

func TestGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	// Whitespace placement around deleted words differs between git
	// versions, so only line-anchored cases are compared.
	runCases(t, &Git{TempDir: t.TempDir()}, wordCases[:2])
}

func TestNew(t *testing.T) {
	d, err := New("", "", nil)
	require.NoError(t, err)
	assert.IsType(t, Builtin{}, d)

	d, err = New(ModeGit, t.TempDir(), nil)
	require.NoError(t, err)
	assert.IsType(t, &Git{}, d)

	_, err = New("svn", "", nil)
	assert.Error(t, err)
}
