package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Runs(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	clock := time.UnixMilli(1_700_000_000_000)
	store.now = func() time.Time { return clock }

	run, err := store.CreateRun(ctx, "jfreechart")
	require.NoError(t, err)
	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	run.Cases, run.Failures = 5, 1
	require.NoError(t, store.FinishRun(ctx, run))

	loaded, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "jfreechart", loaded.Repo)
	assert.Equal(t, 5, loaded.Cases)
	assert.Equal(t, 1, loaded.Failures)
	assert.Equal(t, time.Minute, loaded.FinishedAt.Sub(loaded.StartedAt))

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.FinishRun(ctx, &Run{ID: "missing"}), ErrNotFound)
}

func TestSQLiteStore_SaveCase_ReplacesGroups(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.CreateRun(ctx, "demo")
	require.NoError(t, err)

	first := &Case{
		RunID:  run.ID,
		Index:  0,
		Before: "a1",
		After:  "b2",
		Status: StatusOK,
		Groups: [][]GroupPatch{
			{{Index: 0, Left: &Side{"A.java", 2, 3}, Right: &Side{"A.java", 2, 4}}, {Index: 2, Right: &Side{"B.java", 1, 9}}},
			{{Index: 1, Left: &Side{"C.java", 7, 7}}},
		},
		RunCost:      1500 * time.Millisecond,
		RefactorCost: 200 * time.Millisecond,
	}
	require.NoError(t, store.SaveCase(ctx, first))

	failed := &Case{RunID: run.ID, Index: 1, Before: "b2", After: "c3", Status: StatusFailed, Reason: "parse"}
	require.NoError(t, store.SaveCase(ctx, failed))

	cases, err := store.Cases(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, first, cases[0])
	assert.Equal(t, "parse", cases[1].Reason)
	assert.Empty(t, cases[1].Groups)

	// Saving the case again keeps only the new groups.
	first.Groups = [][]GroupPatch{{{Index: 0, Left: &Side{"A.java", 2, 3}}}}
	require.NoError(t, store.SaveCase(ctx, first))
	cases, err = store.Cases(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Groups, cases[0].Groups)
}
