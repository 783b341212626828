package analysis

import (
	"context"
	"fmt"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"untangle/internal/model"
	"untangle/internal/syntax"
)

var shapesProject = map[string]string{
	"app/Shape.java": `package app;

public interface Shape {
    double area();
}
`,
	"app/Base.java": `package app;

public abstract class Base implements Shape {
    public abstract String name();
}
`,
	"app/Circle.java": `package app;

import app.util.Maths;
import static app.util.Maths.square;

public class Circle extends Base {
    private double r;

    @Override
    public double area() {
        return Maths.PI * square(r);
    }

    @Override
    public String name() {
        return "circle";
    }

    void scale(int k) { r = r * k; }
    void scale(double k) { r = r * k; }
}
`,
	"app/util/Maths.java": `package app.util;

public final class Maths {
    public static final double PI = 3.14;

    public static double square(double x) {
        return x * x;
    }
}
`,
}

// snapshotOf returns the after snapshot of a diff that touches lines
// [begin, end] of rel.
func snapshotOf(t *testing.T, root, rel, src string, begin, end int) *model.Snapshot {
	t.Helper()
	next := model.NewSnapshot(root)
	diff := model.NewDiff(model.NewSnapshot(t.TempDir()), next, "")
	require.NoError(t, diff.AddFile(model.FileEdit{
		NewPath:    rel,
		Kind:       model.ChangeAdd,
		Hunks:      []model.Hunk{{NewStart: begin, NewLines: end - begin + 1}},
		NewContent: src,
	}))
	return next
}

func where(n model.TreeNode) string {
	return fmt.Sprintf("%s:%d", path.Base(n.Path), n.Span.Begin.Line)
}

// edgesOf renders the edges of one kind as "File.java:line -> File.java:line".
func edgesOf(g *StructureGraph, kind model.EdgeKind) []string {
	var out []string
	for _, e := range g.Edges() {
		if e.Kind == kind {
			out = append(out, where(e.From)+" -> "+where(e.To))
		}
	}
	return out
}

func TestBuilder_Build(t *testing.T) {
	root := writeFiles(t, shapesProject)
	src := shapesProject["app/Circle.java"]
	lines := strings.Count(src, "\n")

	g, err := NewBuilder(Options{StrictParse: true}).Build(context.Background(), snapshotOf(t, root, "app/Circle.java", src, 1, lines))
	require.NoError(t, err)

	cases := []struct {
		kind model.EdgeKind
		want []string
	}{
		{model.EdgeImport, []string{"Circle.java:3 -> Maths.java:3", "Circle.java:4 -> Maths.java:6"}},
		{model.EdgeExtend, []string{"Circle.java:6 -> Base.java:3"}},
		{model.EdgeOverride, []string{"Circle.java:9 -> Shape.java:4", "Circle.java:14 -> Base.java:4"}},
		{model.EdgeOverload, []string{"Circle.java:20 -> Circle.java:19"}},
		{model.EdgeReference, []string{"Circle.java:11 -> Circle.java:3", "Circle.java:11 -> Circle.java:4"}},
		{model.EdgeMethodCall, []string{"Circle.java:11 -> Maths.java:6"}},
		{model.EdgeDefUse, []string{"Circle.java:11 -> Circle.java:7", "Circle.java:19 -> Circle.java:7", "Circle.java:20 -> Circle.java:7"}},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			got := edgesOf(g, tc.kind)
			for _, want := range tc.want {
				assert.Contains(t, got, want)
			}
		})
	}

	t.Run("No implement edge for inherited interface", func(t *testing.T) {
		assert.Empty(t, edgesOf(g, model.EdgeImplement))
	})
	t.Run("Contain is never produced", func(t *testing.T) {
		assert.Empty(t, edgesOf(g, model.EdgeContain))
	})
}

func TestBuilder_PrunesOutOfScopeNodes(t *testing.T) {
	root := writeFiles(t, shapesProject)
	src := shapesProject["app/Circle.java"]

	// Only the two scale overloads are touched.
	g, err := NewBuilder(Options{StrictParse: true}).Build(context.Background(), snapshotOf(t, root, "app/Circle.java", src, 19, 20))
	require.NoError(t, err)

	assert.Empty(t, edgesOf(g, model.EdgeImport))
	assert.Empty(t, edgesOf(g, model.EdgeOverride))
	assert.Empty(t, edgesOf(g, model.EdgeMethodCall))
	assert.Equal(t, []string{"Circle.java:20 -> Circle.java:19"}, edgesOf(g, model.EdgeOverload))
	for _, e := range edgesOf(g, model.EdgeDefUse) {
		assert.True(t, strings.HasPrefix(e, "Circle.java:19") || strings.HasPrefix(e, "Circle.java:20"), e)
	}
}

func TestBuilder_ParseFailure(t *testing.T) {
	files := map[string]string{
		"app/Broken.java": "package app;\n\npublic class Broken {\n    void f( {\n}\n",
	}
	root := writeFiles(t, files)
	snap := snapshotOf(t, root, "app/Broken.java", files["app/Broken.java"], 3, 4)

	_, err := NewBuilder(Options{StrictParse: true}).Build(context.Background(), snap)
	require.ErrorIs(t, err, syntax.ErrParse)

	_, err = NewBuilder(Options{StrictParse: false}).Build(context.Background(), snap)
	assert.NoError(t, err)
}

func TestBuilder_MissingFile(t *testing.T) {
	root := t.TempDir()
	snap := snapshotOf(t, root, "app/Gone.java", "class Gone {}\n", 1, 1)

	_, err := NewBuilder(Options{}).Build(context.Background(), snap)
	require.ErrorIs(t, err, syntax.ErrParse)
}

func TestBuilder_Canceled(t *testing.T) {
	root := writeFiles(t, shapesProject)
	src := shapesProject["app/Circle.java"]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder(Options{}).Build(ctx, snapshotOf(t, root, "app/Circle.java", src, 1, 3))
	require.ErrorIs(t, err, context.Canceled)
}

func TestStripTypeArgs(t *testing.T) {
	assert.Equal(t, "Map.Entry", stripTypeArgs("Map.Entry<K,List<V>>"))
	assert.Equal(t, "Outer.Inner", stripTypeArgs("Outer<T>.Inner"))
}

func TestBuilder_Implement(t *testing.T) {
	root := writeFiles(t, shapesProject)
	src := shapesProject["app/Base.java"]

	g, err := NewBuilder(Options{StrictParse: true}).Build(context.Background(), snapshotOf(t, root, "app/Base.java", src, 1, strings.Count(src, "\n")))
	require.NoError(t, err)
	assert.Equal(t, []string{"Base.java:3 -> Shape.java:3"}, edgesOf(g, model.EdgeImplement))
	assert.Empty(t, edgesOf(g, model.EdgeExtend))
}

var enumProject = map[string]string{
	"ops/Base.java": `package ops;

public interface Base {
    int apply(int x);
}
`,
	"ops/Calc.java": `package ops;

public interface Calc extends Base {
}
`,
	"ops/Op.java": `package ops;

public enum Op implements Calc {
    PLUS {
        @Override
        public int apply(int a) {
            return a + 1;
        }

        @Override
        String label() {
            return "plus";
        }
    };

    String label() {
        return "op";
    }
}
`,
}

func TestBuilder_EnumConstantOverride(t *testing.T) {
	root := writeFiles(t, enumProject)
	src := enumProject["ops/Op.java"]

	g, err := NewBuilder(Options{StrictParse: true}).Build(context.Background(), snapshotOf(t, root, "ops/Op.java", src, 1, strings.Count(src, "\n")))
	require.NoError(t, err)

	// The enum itself is searched before its interfaces.
	assert.ElementsMatch(t, []string{"Op.java:5 -> Base.java:4", "Op.java:10 -> Op.java:16"}, edgesOf(g, model.EdgeOverride))
	assert.Contains(t, edgesOf(g, model.EdgeDefUse), "Op.java:7 -> Op.java:6")
	assert.Empty(t, edgesOf(g, model.EdgeOverload))
}

var importProject = map[string]string{
	"lib/Outer.java": `package lib;

public class Outer {
    public static class Open {
    }

    static class Shut {
    }

    public static int twice(int x) {
        return x * 2;
    }

    static int hidden() {
        return 0;
    }

    public static final int ONE = 1;
    private static int secret = 2;
}
`,
	"lib/Near.java": `package lib;

import lib.Outer.*;
import static lib.Outer.*;

class Near {
}
`,
	"app/Far.java": `package app;

import lib.Outer.*;
import static lib.Outer.*;

public class Far {
}
`,
}

func TestBuilder_WildcardImports(t *testing.T) {
	cases := []struct {
		name string
		file string
		want []string
	}{
		{
			name: "Other package sees public members only",
			file: "app/Far.java",
			want: []string{
				"Far.java:3 -> Outer.java:4",
				"Far.java:4 -> Outer.java:10",
				"Far.java:4 -> Outer.java:18",
			},
		},
		{
			name: "Same package also sees package-private members",
			file: "lib/Near.java",
			want: []string{
				"Near.java:3 -> Outer.java:4",
				"Near.java:3 -> Outer.java:7",
				"Near.java:4 -> Outer.java:10",
				"Near.java:4 -> Outer.java:14",
				"Near.java:4 -> Outer.java:18",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := writeFiles(t, importProject)
			src := importProject[tc.file]
			g, err := NewBuilder(Options{StrictParse: true}).Build(context.Background(), snapshotOf(t, root, tc.file, src, 1, strings.Count(src, "\n")))
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, edgesOf(g, model.EdgeImport))
		})
	}
}
