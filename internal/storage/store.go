package storage

import (
	"context"
	"time"
)

// Store persists batch runs and their analysed cases.
type Store interface {
	RunStore
	CaseStore
	Close() error
}

// RunStore records one batch over a repository.
type RunStore interface {
	// CreateRun starts a run and returns its id.
	CreateRun(ctx context.Context, repo string) (*Run, error)

	// FinishRun stores the final counters of a run.
	FinishRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by its id.
	GetRun(ctx context.Context, id string) (*Run, error)
}

// CaseStore records the outcome of single commit pairs.
type CaseStore interface {
	// SaveCase upserts a case together with its groups. Groups stored
	// earlier for the same case are replaced.
	SaveCase(ctx context.Context, c *Case) error

	// Cases retrieves the cases of a run in index order.
	Cases(ctx context.Context, runID string) ([]*Case, error)
}

type Run struct {
	ID         string
	Repo       string
	StartedAt  time.Time
	FinishedAt time.Time
	Cases      int
	Failures   int
}

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

type Case struct {
	RunID        string
	Index        int
	Before       string
	After        string
	Status       string
	Reason       string
	RunCost      time.Duration
	RefactorCost time.Duration
	Groups       [][]GroupPatch
}

// Side is one side of a stored patch.
type Side struct {
	Path  string
	Begin int
	End   int
}

// GroupPatch is a patch as stored inside a group. An absent side is nil.
type GroupPatch struct {
	Index int
	Left  *Side
	Right *Side
}
