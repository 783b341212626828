package crawler

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCrawler_SourceRoots(t *testing.T) {
	c := NewCrawler()

	t.Run("module layout", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "core/src/main/java/a/A.java", "class A {}")
		writeFile(t, root, "core/src/test/java/a/ATest.java", "class ATest {}")
		writeFile(t, root, "web/src/main/java/b/B.java", "class B {}")
		writeFile(t, root, ".git/src/main/java/x/X.java", "class X {}")

		roots, err := c.SourceRoots(root)
		require.NoError(t, err)
		sort.Strings(roots)
		assert.Equal(t, []string{
			filepath.Join(root, "core", "src", "main", "java"),
			filepath.Join(root, "core", "src", "test", "java"),
			filepath.Join(root, "web", "src", "main", "java"),
		}, roots)
	})

	t.Run("flat layout", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a/A.java", "class A {}")

		roots, err := c.SourceRoots(root)
		require.NoError(t, err)
		assert.Equal(t, []string{root}, roots)
	})
}

func TestCrawler_ScanJava(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main/java/a/A.java", "class A {}")
	writeFile(t, root, "src/main/java/a/notes.txt", "notes")
	writeFile(t, root, "src/main/java/文档/B.java", "class B {}")
	writeFile(t, root, "target/classes/C.java", "class C {}")

	var files []string
	require.NoError(t, NewCrawler().ScanJava(root, func(rel string) {
		files = append(files, rel)
	}))
	assert.Equal(t, []string{"src/main/java/a/A.java"}, files)
}

func TestPathPredicates(t *testing.T) {
	assert.True(t, IsValidPath("src/main/java/a/A.java"))
	assert.False(t, IsValidPath("src/main/java/中文/A.java"))
	assert.True(t, IsJavaFile("A.java"))
	assert.False(t, IsJavaFile("A.kt"))
	assert.True(t, IsSourceRoot("/x/core/src/test/java"))
	assert.False(t, IsSourceRoot("/x/core/src/main"))
}

func TestInSourceRoot(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/main/java/a/A.java", true},
		{"core/src/test/java/a/ATest.java", true},
		{"a/A.java", false},
		{"src/main/resources/a.properties", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, InSourceRoot(tc.path), tc.path)
	}
}
