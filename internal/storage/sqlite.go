package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			repo TEXT,
			started_at INTEGER,
			finished_at INTEGER,
			cases INTEGER DEFAULT 0,
			failures INTEGER DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS cases (
			run_id TEXT,
			idx INTEGER,
			before_hash TEXT,
			after_hash TEXT,
			status TEXT,
			reason TEXT,
			run_ms INTEGER,
			refactor_ms INTEGER,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS group_patches (
			run_id TEXT,
			case_idx INTEGER,
			group_no INTEGER,
			patch_index INTEGER,
			left_path TEXT,
			left_begin INTEGER,
			left_end INTEGER,
			right_path TEXT,
			right_begin INTEGER,
			right_end INTEGER,
			PRIMARY KEY (run_id, case_idx, patch_index)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_repo ON runs(repo);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- RunStore Implementation ---

func (s *SQLiteStore) CreateRun(ctx context.Context, repo string) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Repo: repo, StartedAt: s.now()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, repo, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Repo, run.StartedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	run.FinishedAt = s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, cases = ?, failures = ? WHERE id = ?`,
		run.FinishedAt.UnixMilli(), run.Cases, run.Failures, run.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, repo, started_at, finished_at, cases, failures FROM runs WHERE id = ?", id)

	var run Run
	var started int64
	var finished sql.NullInt64
	if err := row.Scan(&run.ID, &run.Repo, &started, &finished, &run.Cases, &run.Failures); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	run.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		run.FinishedAt = time.UnixMilli(finished.Int64)
	}
	return &run, nil
}

// --- CaseStore Implementation ---

func (s *SQLiteStore) SaveCase(ctx context.Context, c *Case) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cases (run_id, idx, before_hash, after_hash, status, reason, run_ms, refactor_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO UPDATE SET
			before_hash=excluded.before_hash,
			after_hash=excluded.after_hash,
			status=excluded.status,
			reason=excluded.reason,
			run_ms=excluded.run_ms,
			refactor_ms=excluded.refactor_ms
	`, c.RunID, c.Index, c.Before, c.After, c.Status, c.Reason, c.RunCost.Milliseconds(), c.RefactorCost.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to save case %d: %w", c.Index, err)
	}

	// Replace the stored groups with the current ones.
	if _, err := tx.ExecContext(ctx, "DELETE FROM group_patches WHERE run_id = ? AND case_idx = ?", c.RunID, c.Index); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO group_patches (run_id, case_idx, group_no, patch_index, left_path, left_begin, left_end, right_path, right_begin, right_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for g, group := range c.Groups {
		for _, p := range group {
			lp, lb, le := sideColumns(p.Left)
			rp, rb, re := sideColumns(p.Right)
			if _, err := stmt.ExecContext(ctx, c.RunID, c.Index, g, p.Index, lp, lb, le, rp, rb, re); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func sideColumns(side *Side) (sql.NullString, sql.NullInt64, sql.NullInt64) {
	if side == nil {
		return sql.NullString{}, sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullString{String: side.Path, Valid: true},
		sql.NullInt64{Int64: int64(side.Begin), Valid: true},
		sql.NullInt64{Int64: int64(side.End), Valid: true}
}

func sideOf(path sql.NullString, begin, end sql.NullInt64) *Side {
	if !path.Valid {
		return nil
	}
	return &Side{Path: path.String, Begin: int(begin.Int64), End: int(end.Int64)}
}

func (s *SQLiteStore) Cases(ctx context.Context, runID string) ([]*Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, before_hash, after_hash, status, reason, run_ms, refactor_ms
		FROM cases WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []*Case
	byIndex := make(map[int]*Case)
	for rows.Next() {
		c := &Case{RunID: runID}
		var runMS, refactorMS int64
		if err := rows.Scan(&c.Index, &c.Before, &c.After, &c.Status, &c.Reason, &runMS, &refactorMS); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		c.RunCost = time.Duration(runMS) * time.Millisecond
		c.RefactorCost = time.Duration(refactorMS) * time.Millisecond
		cases = append(cases, c)
		byIndex[c.Index] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	patchRows, err := s.db.QueryContext(ctx, `
		SELECT case_idx, group_no, patch_index, left_path, left_begin, left_end, right_path, right_begin, right_end
		FROM group_patches WHERE run_id = ? ORDER BY case_idx, group_no, patch_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer patchRows.Close()

	for patchRows.Next() {
		var idx, group int
		var p GroupPatch
		var lp, rp sql.NullString
		var lb, le, rb, re sql.NullInt64
		if err := patchRows.Scan(&idx, &group, &p.Index, &lp, &lb, &le, &rp, &rb, &re); err != nil {
			return nil, fmt.Errorf("failed to scan group patch: %w", err)
		}
		p.Left, p.Right = sideOf(lp, lb, le), sideOf(rp, rb, re)
		c, ok := byIndex[idx]
		if !ok {
			continue
		}
		for len(c.Groups) <= group {
			c.Groups = append(c.Groups, nil)
		}
		c.Groups[group] = append(c.Groups[group], p)
	}
	return cases, patchRows.Err()
}
