package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"untangle/internal/logging"
	"untangle/internal/metrics"
	"untangle/internal/storage"
)

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir, "-c", "user.name=test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false"}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

func commit(t *testing.T, dir, rel, src string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	gitRun(t, dir, "add", "-A")
	gitRun(t, dir, "commit", "-q", "-m", "change "+rel)
	return gitRun(t, dir, "rev-parse", "HEAD")
}

// setup creates projects/demo with three commits and a dataset with one good
// and one broken case.
func setup(t *testing.T) Options {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := t.TempDir()
	repo := filepath.Join(root, "projects", "demo")
	require.NoError(t, os.MkdirAll(repo, 0o755))
	gitRun(t, repo, "init", "-q")

	h1 := commit(t, repo, "src/main/java/app/A.java", "package app;\n\npublic class A {\n    int x = 1;\n}\n")
	h2 := commit(t, repo, "src/main/java/app/A.java", "package app;\n\npublic class A {\n    int x = 2;\n}\n")
	h3 := commit(t, repo, "src/main/java/app/A.java", "package app;\n\npublic class A {\n    int x = 3;\n    int y = x;\n}\n")

	dataset := filepath.Join(root, "dataset")
	require.NoError(t, os.MkdirAll(dataset, 0o755))
	b, err := json.Marshal([][]string{{h1, h2, h3}, {h3, "0000000000000000000000000000000000000000"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dataset, "demo.json"), b, 0o644))

	return Options{
		Projects: filepath.Join(root, "projects"),
		Dataset:  dataset,
		Output:   filepath.Join(root, "output"),
		Workers:  2,
		OnlyDiff: true,
	}
}

func TestBatch_Run(t *testing.T) {
	opts := setup(t)
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	opts.Store = store
	opts.Metrics = metrics.NewRecorder()
	var logs bytes.Buffer
	opts.Logger = slog.New(logging.NewHandler(&logs, logging.Config{Level: "info", Format: "text"}))

	summary, err := NewBatch(opts).Run(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Cases)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, summary.Total, summary.Average())

	t.Run("Case log", func(t *testing.T) {
		b, err := os.ReadFile(filepath.Join(opts.Output, "logs", "demo.log"))
		require.NoError(t, err)
		log := string(b)
		assert.Regexp(t, `Case 0/1: run cost \d+ms, refactor cost \d+ms`, log)
		assert.Contains(t, log, "Case 1/1: failed (vcs)")
		assert.Contains(t, log, "Fail count: 1")
		assert.Regexp(t, `Total cost \d+ms, average \d+ms per case`, log)
	})

	t.Run("Structured log uses case index", func(t *testing.T) {
		assert.Regexp(t, `msg="case has errors and will be skipped" case=1 reason=vcs`, logs.String())
	})

	t.Run("Groups file", func(t *testing.T) {
		entries, err := LoadEntries(filepath.Join(opts.Output, "groups", "demo.json"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 0, entries[0].Index)
		require.Len(t, entries[0].Groups, 1)
		require.Len(t, entries[0].Groups[0], 1)
		p := entries[0].Groups[0][0]
		require.NotNil(t, p.LeftPath)
		assert.Equal(t, "src/main/java/app/A.java", *p.LeftPath)
		assert.Equal(t, 4, p.LeftBegin)
		assert.Equal(t, 4, p.RightBegin)
		assert.Equal(t, 5, p.RightEnd)
	})

	t.Run("Stored run", func(t *testing.T) {
		run, err := store.GetRun(context.Background(), summary.RunID)
		require.NoError(t, err)
		assert.Equal(t, 2, run.Cases)
		assert.Equal(t, 1, run.Failures)

		cases, err := store.Cases(context.Background(), summary.RunID)
		require.NoError(t, err)
		require.Len(t, cases, 2)
		assert.Equal(t, storage.StatusOK, cases[0].Status)
		assert.Equal(t, storage.StatusFailed, cases[1].Status)
		assert.Equal(t, "vcs", cases[1].Reason)
	})

	t.Run("Temp dir removed", func(t *testing.T) {
		assert.NoDirExists(t, filepath.Join(opts.Output, "demo"))
	})
}

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.json")
	require.NoError(t, os.WriteFile(path, []byte(`[["a","b","c"],["d"]]`), 0o644))
	pairs, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"a", "c"}, {"d", "d"}}, pairs)

	require.NoError(t, os.WriteFile(path, []byte(`[[]]`), 0o644))
	_, err = LoadDataset(path)
	assert.Error(t, err)
}
