package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir, "-c", "user.name=test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false"}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

func commitTree(t *testing.T, dir string, files map[string]string, msg string) string {
	t.Helper()
	for rel, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if src == "" {
			require.NoError(t, os.Remove(path))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	gitRun(t, dir, "add", "-A")
	gitRun(t, dir, "commit", "-q", "-m", msg)
	return gitRun(t, dir, "rev-parse", "HEAD")
}

func testRepo(t *testing.T) (dir, first, second string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir = t.TempDir()
	gitRun(t, dir, "init", "-q")
	first = commitTree(t, dir, map[string]string{
		"src/A.java":    "class A {\n  int x;\n  void f() {}\n}\n",
		"src/Gone.java": "class Gone {}\n",
		"notes.txt":     "one\n",
	}, "first")
	second = commitTree(t, dir, map[string]string{
		"src/A.java":    "class A {\n  int y;\n  void f() {}\n  void g() {}\n}\n",
		"src/Gone.java": "",
		"src/New.java":  "class New {\n}\n",
		"notes.txt":     "two\n",
	}, "second")
	return dir, first, second
}

func TestRepository_Diff(t *testing.T) {
	dir, first, second := testRepo(t)
	repo, err := Open(dir, nil)
	require.NoError(t, err)

	d, err := repo.Diff(context.Background(), first, second, t.TempDir(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Cleanup() })

	var got [][2]side
	for _, p := range d.Patches() {
		got = append(got, [2]side{sideOf(p.Prev()), sideOf(p.Next())})
	}
	assert.Equal(t, [][2]side{
		{{"src/A.java", 2, 2}, {"src/A.java", 2, 2}},
		{{}, {"src/A.java", 4, 4}},
		{{"src/Gone.java", 1, 1}, {}},
		{{}, {"src/New.java", 1, 2}},
	}, got)

	t.Run("Full trees are extracted", func(t *testing.T) {
		assert.FileExists(t, filepath.Join(d.Prev().Root(), "notes.txt"))
		assert.FileExists(t, filepath.Join(d.Prev().Root(), "src", "Gone.java"))
		assert.NoFileExists(t, filepath.Join(d.Next().Root(), "src", "Gone.java"))
		b, err := os.ReadFile(filepath.Join(d.Next().Root(), "src", "A.java"))
		require.NoError(t, err)
		assert.Contains(t, string(b), "void g()")
	})

	t.Run("Cleanup removes the temp dir", func(t *testing.T) {
		temp := d.TempDir()
		require.NoError(t, d.Cleanup())
		assert.NoDirExists(t, temp)
	})
}

func TestRepository_DiffOnlyChanged(t *testing.T) {
	dir, first, second := testRepo(t)
	repo, err := Open(dir, nil)
	require.NoError(t, err)

	d, err := repo.Diff(context.Background(), first, second, t.TempDir(), Options{OnlyDiff: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Cleanup() })

	assert.NoFileExists(t, filepath.Join(d.Prev().Root(), "notes.txt"))
	assert.FileExists(t, filepath.Join(d.Prev().Root(), "src", "A.java"))
	assert.FileExists(t, filepath.Join(d.Next().Root(), "src", "New.java"))
}

func TestRepository_Errors(t *testing.T) {
	_, err := Open(t.TempDir(), nil)
	assert.Error(t, err)

	dir, first, _ := testRepo(t)
	repo, err := Open(dir, nil)
	require.NoError(t, err)
	_, err = repo.Diff(context.Background(), first, "no-such-revision", t.TempDir(), Options{})
	assert.ErrorIs(t, err, ErrGit)
}

func TestRepository_Views(t *testing.T) {
	dir, first, second := testRepo(t)
	repo, err := Open(dir, nil)
	require.NoError(t, err)
	d, err := repo.Diff(context.Background(), first, second, t.TempDir(), Options{OnlyDiff: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Cleanup() })

	assert.NotNil(t, d.Prev().View("src/Gone.java"))
	assert.Nil(t, d.Next().View("src/Gone.java"))
	assert.Nil(t, d.Prev().View("src/New.java"))
	assert.NotNil(t, d.Next().View("src/New.java"))
}
