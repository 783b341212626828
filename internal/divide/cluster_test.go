package divide

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"untangle/internal/analysis"
	"untangle/internal/graph"
	"untangle/internal/model"
	"untangle/internal/refactor"
	"untangle/internal/syntax"
	"untangle/internal/vcs"
	"untangle/internal/worddiff"
)

type fakeBuilder func(ctx context.Context, snap *model.Snapshot) (*analysis.StructureGraph, error)

func (f fakeBuilder) Build(ctx context.Context, snap *model.Snapshot) (*analysis.StructureGraph, error) {
	return f(ctx, snap)
}

func emptyBuilder() fakeBuilder {
	return func(context.Context, *model.Snapshot) (*analysis.StructureGraph, error) {
		return graph.New[model.TreeNode, model.Edge](), nil
	}
}

type fakeDetector struct {
	refs []refactor.Refactoring
	err  error
}

func (f fakeDetector) Detect(context.Context, string, string) ([]refactor.Refactoring, error) {
	return f.refs, f.err
}

type failingDiffer struct{}

func (failingDiffer) Diff(context.Context, []string, []string) (worddiff.Result, error) {
	return worddiff.Result{}, worddiff.ErrProcess
}

func text(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func newDiff(t *testing.T, edits ...model.FileEdit) *model.Diff {
	t.Helper()
	dir := t.TempDir()
	d := model.NewDiff(model.NewSnapshot(filepath.Join(dir, "before")), model.NewSnapshot(filepath.Join(dir, "after")), "")
	for _, e := range edits {
		require.NoError(t, d.AddFile(e))
	}
	return d
}

func modify(path, before, after string, hunks ...model.Hunk) model.FileEdit {
	return model.FileEdit{OldPath: path, NewPath: path, Kind: model.ChangeModify, Hunks: hunks, OldContent: before, NewContent: after}
}

func run(t *testing.T, opts Options, d *model.Diff) (*Result, error) {
	t.Helper()
	if opts.Builder == nil {
		opts.Builder = emptyBuilder()
	}
	return New(opts).Run(context.Background(), d)
}

func hasEdge(r *Result, d *model.Diff, from, to int, kind HyperKind) bool {
	return r.Graph.HasEdge(HyperEdge{From: d.Patch(from), To: d.Patch(to), Kind: kind})
}

func TestCluster_TokenDiff(t *testing.T) {
	before := text("a();", "int x = 1;", "b();")
	after := text("a();", "int x = 2;", "b();", "c();", "d();")
	d := newDiff(t, modify("F.java", before, after,
		model.Hunk{OldStart: 2, OldLines: 1, NewStart: 2, NewLines: 1},
		model.Hunk{OldStart: 3, OldLines: 0, NewStart: 4, NewLines: 2},
	))

	_, err := run(t, Options{}, d)
	require.NoError(t, err)

	t.Run("Paired sides get word spans", func(t *testing.T) {
		p := d.Patch(0)
		assert.Equal(t, []model.Info{model.NewInfo(2, 9, 2, 10)}, p.Prev().Tokens())
		assert.Equal(t, []model.Info{model.NewInfo(2, 9, 2, 10)}, p.Next().Tokens())
	})

	t.Run("Pure insertion spans the whole region", func(t *testing.T) {
		p := d.Patch(1)
		require.False(t, p.HasPrev())
		assert.Equal(t, []model.Info{model.NewInfo(4, 1, 6, 0)}, p.Next().Tokens())
	})
}

func TestCluster_ProjectsStructuralEdges(t *testing.T) {
	before := text("class A {", "  int w;", "  void f() {}", "  void g() {}", "  int y = w;", "}")
	after := text("class A {", "  int x;", "  void f() {}", "  void g() {}", "  int y = x;", "}")
	d := newDiff(t, modify("A.java", before, after,
		model.Hunk{OldStart: 2, OldLines: 1, NewStart: 2, NewLines: 1},
		model.Hunk{OldStart: 5, OldLines: 1, NewStart: 5, NewLines: 1},
	))

	use := model.TreeNode{Node: 1, Path: "A.java", Span: model.NewInfo(5, 3, 5, 13)}
	def := model.TreeNode{Node: 2, Path: "A.java", Span: model.NewInfo(2, 3, 2, 9)}
	other := model.TreeNode{Node: 3, Path: "A.java", Span: model.NewInfo(3, 3, 3, 14)}
	builder := fakeBuilder(func(_ context.Context, snap *model.Snapshot) (*analysis.StructureGraph, error) {
		g := graph.New[model.TreeNode, model.Edge]()
		if snap == d.Next() {
			g.AddEdge(model.Edge{From: use, To: def, Kind: model.EdgeDefUse})
			g.AddEdge(model.Edge{From: def, To: other, Kind: model.EdgeReference})
		}
		return g, nil
	})

	r, err := run(t, Options{Builder: builder}, d)
	require.NoError(t, err)
	assert.True(t, hasEdge(r, d, 1, 0, Depend))
	assert.False(t, hasEdge(r, d, 0, 1, Depend))
	assert.Equal(t, [][]*model.Patch{{d.Patch(0), d.Patch(1)}}, r.Groups)
}

func TestCluster_RefactorEdgesAreSymmetric(t *testing.T) {
	before := text("a1", "a2", "a3", "a4", "a5", "a6")
	after := text("b1", "a2", "b3", "a4", "b5", "a6")
	d := newDiff(t, modify("F.java", before, after,
		model.Hunk{OldStart: 1, OldLines: 1, NewStart: 1, NewLines: 1},
		model.Hunk{OldStart: 3, OldLines: 1, NewStart: 3, NewLines: 1},
		model.Hunk{OldStart: 5, OldLines: 1, NewStart: 5, NewLines: 1},
	))
	refs := []refactor.Refactoring{{
		Type:  "Extract Method",
		Left:  []refactor.Location{{FilePath: "F.java", StartLine: 1, EndLine: 1}, {FilePath: "F.java", StartLine: 5, EndLine: 6}},
		Right: []refactor.Location{{FilePath: "F.java", StartLine: 3, EndLine: 3}, {FilePath: "Missing.java", StartLine: 1, EndLine: 9}},
	}}

	r, err := run(t, Options{Detector: fakeDetector{refs: refs}}, d)
	require.NoError(t, err)

	for _, pair := range [][2]int{{0, 1}, {1, 2}} {
		assert.True(t, hasEdge(r, d, pair[0], pair[1], Refactor), "%d -> %d", pair[0], pair[1])
		assert.True(t, hasEdge(r, d, pair[1], pair[0], Refactor), "%d -> %d", pair[1], pair[0])
	}
	// A chain, not a clique.
	assert.False(t, hasEdge(r, d, 0, 2, Refactor))
	assert.Equal(t, [][]*model.Patch{{d.Patch(0), d.Patch(1), d.Patch(2)}}, r.Groups)
}

func TestCluster_CloneThreshold(t *testing.T) {
	before := text("a();", "x = compute(1);", "b();", "x = compute(1);", "c")
	after := text("a();", "y = compute(2);", "b();", "y = compute(2);", "totally different words here")
	d := newDiff(t, modify("F.java", before, after,
		model.Hunk{OldStart: 2, OldLines: 1, NewStart: 2, NewLines: 1},
		model.Hunk{OldStart: 4, OldLines: 1, NewStart: 4, NewLines: 1},
		model.Hunk{OldStart: 5, OldLines: 1, NewStart: 5, NewLines: 1},
	))

	r, err := run(t, Options{}, d)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d.Patch(0).Cosine(d.Patch(1)), 1e-9)
	assert.True(t, hasEdge(r, d, 0, 1, Clone))
	assert.False(t, hasEdge(r, d, 1, 0, Clone))
	assert.False(t, hasEdge(r, d, 0, 2, Clone))
	assert.False(t, hasEdge(r, d, 1, 2, Clone))
}

func TestCluster_TrivialChaining(t *testing.T) {
	before := text("// a", "x();", "// b", "y();", "// c")
	after := text("// A", "x();", "// B", "y();", "// C")
	d := newDiff(t, modify("F.java", before, after,
		model.Hunk{OldStart: 1, OldLines: 1, NewStart: 1, NewLines: 1},
		model.Hunk{OldStart: 3, OldLines: 1, NewStart: 3, NewLines: 1},
		model.Hunk{OldStart: 5, OldLines: 1, NewStart: 5, NewLines: 1},
	))

	r, err := run(t, Options{}, d)
	require.NoError(t, err)
	assert.True(t, hasEdge(r, d, 1, 0, Trivial))
	assert.True(t, hasEdge(r, d, 2, 0, Trivial))
	assert.True(t, hasEdge(r, d, 2, 1, Trivial))
	assert.False(t, hasEdge(r, d, 0, 1, Trivial))
}

func TestIsComment(t *testing.T) {
	assert.True(t, isComment([]string{"// x", "", "/* y", "* z", "*/"}))
	assert.True(t, isComment(nil))
	assert.False(t, isComment([]string{"// x", "int a;"}))
}

func TestCluster_Failures(t *testing.T) {
	edit := modify("F.java", text("a", "b"), text("a", "c"), model.Hunk{OldStart: 2, OldLines: 1, NewStart: 2, NewLines: 1})

	cases := []struct {
		name   string
		opts   Options
		kind   error
		reason string
	}{
		{
			name:   "word diff",
			opts:   Options{Differ: failingDiffer{}},
			kind:   ErrExternalProcess,
			reason: "process",
		},
		{
			name: "parse",
			opts: Options{Builder: fakeBuilder(func(context.Context, *model.Snapshot) (*analysis.StructureGraph, error) {
				return nil, syntax.ErrParse
			})},
			kind:   ErrParseFailure,
			reason: "parse",
		},
		{
			name:   "refactoring detector",
			opts:   Options{Detector: fakeDetector{err: errors.New("boom")}},
			kind:   ErrRefactoringDetection,
			reason: "refactoring",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := run(t, tc.opts, newDiff(t, edit))
			require.ErrorIs(t, err, tc.kind)
			assert.Nil(t, r)
			var ae *AnalysisError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tc.reason, Reason(err))
		})
	}
}

func TestCluster_WorkerFault(t *testing.T) {
	edit := modify("F.java", text("a", "b"), text("a", "c"), model.Hunk{OldStart: 2, OldLines: 1, NewStart: 2, NewLines: 1})

	t.Run("Other build finishes", func(t *testing.T) {
		d := newDiff(t, edit)
		builder := fakeBuilder(func(ctx context.Context, snap *model.Snapshot) (*analysis.StructureGraph, error) {
			if snap == d.Prev() {
				panic("corrupt tree")
			}
			return graph.New[model.TreeNode, model.Edge](), nil
		})
		var aborted atomic.Bool
		c := New(Options{Builder: builder, Abort: func() { aborted.Store(true) }})

		r, err := c.Run(context.Background(), d)
		require.ErrorIs(t, err, ErrWorkerFault)
		assert.Nil(t, r)
		assert.True(t, c.Failed())
		assert.False(t, aborted.Load())
		assert.Equal(t, "worker", Reason(err))
	})

	t.Run("Abandoned after grace period", func(t *testing.T) {
		d := newDiff(t, modify("F.java", text("a", "b", "c"), text("x", "b", "y"),
			model.Hunk{OldStart: 1, OldLines: 1, NewStart: 1, NewLines: 1},
			model.Hunk{OldStart: 3, OldLines: 1, NewStart: 3, NewLines: 1},
		))
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		builder := fakeBuilder(func(ctx context.Context, snap *model.Snapshot) (*analysis.StructureGraph, error) {
			if snap == d.Prev() {
				panic("corrupt tree")
			}
			<-release
			return graph.New[model.TreeNode, model.Edge](), nil
		})
		aborted := make(chan struct{})
		timer := NewTimer()
		c := New(Options{Builder: builder, GracePeriod: 20 * time.Millisecond, Abort: func() { close(aborted) }, Timer: timer})

		_, err := c.Run(context.Background(), d)
		require.ErrorIs(t, err, ErrWorkerFault)
		select {
		case <-aborted:
		default:
			t.Fatal("abort hook was not called")
		}
		assert.Equal(t, []string{PhaseTokens, PhaseGraph}, timer.Phases())

		// The stray build must not reach the graph, and the cluster is spent.
		assert.False(t, c.addEdge(d.Patch(0), d.Patch(1), Depend))
		assert.Zero(t, c.graph.EdgeCount())
		_, err = c.Run(context.Background(), newDiff(t, edit))
		require.ErrorIs(t, err, ErrWorkerFault)
	})
}

func TestCluster_PhaseFinishedOnError(t *testing.T) {
	edit := modify("F.java", text("a", "b"), text("a", "c"), model.Hunk{OldStart: 2, OldLines: 1, NewStart: 2, NewLines: 1})
	timer := NewTimer()

	_, err := run(t, Options{Differ: failingDiffer{}, Timer: timer}, newDiff(t, edit))
	require.ErrorIs(t, err, ErrExternalProcess)
	assert.Equal(t, []string{PhaseTokens, PhaseGraph}, timer.Phases())
}

func TestTimer(t *testing.T) {
	var observed []string
	timer := NewTimer(func(phase string, _ time.Duration) { observed = append(observed, phase) })
	clock := time.Unix(0, 0)
	timer.now = func() time.Time { return clock }

	timer.Mark(PhaseGraph)
	clock = clock.Add(30 * time.Millisecond)
	timer.Mark(PhaseRefactor)
	clock = clock.Add(12 * time.Millisecond)
	assert.Equal(t, 12*time.Millisecond, timer.Finish(PhaseRefactor))
	assert.Equal(t, 42*time.Millisecond, timer.Finish(PhaseGraph))
	assert.Zero(t, timer.Finish("never"))

	assert.Equal(t, []string{PhaseRefactor, PhaseGraph}, timer.Phases())
	assert.Equal(t, []string{PhaseRefactor, PhaseGraph}, observed)
	assert.Equal(t, "[Phase refactor cost 12ms, Phase graph cost 42ms]", timer.String())

	timer.Reset()
	assert.Empty(t, timer.Phases())
	assert.Zero(t, timer.Time(PhaseGraph))
}

func TestCluster_EndToEnd(t *testing.T) {
	cases := []struct {
		name                  string
		declBefore, declAfter string
		callBefore, callAfter string
	}{
		{
			name:       "Parameter type change",
			declBefore: "    public int twice(int v) {",
			declAfter:  "    public int twice(String v) {",
			callBefore: "        int a = calc.twice(3);",
			callAfter:  "        int a = calc.twice(\"3\");",
		},
		{
			name:       "Parameter rename",
			declBefore: "    public int twice(int v) {",
			declAfter:  "    public int twice(int value) {",
			callBefore: "        int a = calc.twice(3);",
			callAfter:  "        int a = calc.twice(4);",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tree := func(decl, call string) string {
				return writeTree(t, map[string]string{
					"app/Calc.java": text(
						"package app;",
						"",
						"public class Calc {",
						decl,
						"        return 2;",
						"    }",
						"}"),
					"app/Main.java": text(
						"package app;",
						"",
						"public class Main {",
						"    public int run(Calc calc) {",
						call,
						"        return a;",
						"    }",
						"}"),
				})
			}
			d, err := vcs.FromDirectories(tree(tc.declBefore, tc.callBefore), tree(tc.declAfter, tc.callAfter))
			require.NoError(t, err)
			require.Len(t, d.Patches(), 2)
			require.Equal(t, "app/Calc.java", d.Patch(0).Next().Path())

			timer := NewTimer()
			r, err := New(Options{Timer: timer}).Run(context.Background(), d)
			require.NoError(t, err)

			// The call site depends on the declaration it calls.
			assert.True(t, hasEdge(r, d, 1, 0, Depend))
			assert.False(t, hasEdge(r, d, 0, 1, Depend))
			assert.Equal(t, [][]*model.Patch{{d.Patch(0), d.Patch(1)}}, r.Groups)
			assert.Same(t, timer, r.Timings)
			assert.Equal(t, []string{PhaseTokens, PhaseGraph, PhaseRefactor, PhaseSignals, PhaseDecompose}, timer.Phases())
		})
	}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, src := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return root
}
