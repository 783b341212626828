// Package pipeline runs the analysis over a dataset of commit pairs.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"untangle/internal/divide"
	"untangle/internal/metrics"
	"untangle/internal/model"
	"untangle/internal/storage"
	"untangle/internal/vcs"
)

const phaseAnalyze = "analyze"

// ClusterFactory builds the cluster of one case around its timer.
type ClusterFactory func(timer *divide.Timer) *divide.Cluster

type Options struct {
	Projects string // one checkout per repository
	Dataset  string // <repo>.json files
	Output   string
	Temp     string // defaults to <output>/<repo>
	Workers  int
	OnlyDiff bool

	NewCluster ClusterFactory
	Store      storage.Store
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
}

// Batch analyses every case of a repository dataset.
type Batch struct {
	opts   Options
	logger *slog.Logger
}

// Summary is the outcome of one batch.
type Summary struct {
	RunID    string
	Cases    int
	Failures int
	Total    time.Duration
}

// Average is the mean cost of the successful cases.
func (s *Summary) Average() time.Duration {
	ok := s.Cases - s.Failures
	if ok <= 0 {
		return 0
	}
	return s.Total / time.Duration(ok)
}

type caseResult struct {
	record  storage.Case
	patches int
	err     error
}

func NewBatch(opts Options) *Batch {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.NewCluster == nil {
		logger := opts.Logger
		opts.NewCluster = func(timer *divide.Timer) *divide.Cluster {
			return divide.New(divide.Options{Timer: timer, Logger: logger})
		}
	}
	return &Batch{opts: opts, logger: opts.Logger}
}

// LoadDataset reads a JSON array of commit lists. Each case compares the
// first and the last commit of its list.
func LoadDataset(path string) ([][2]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lists [][]string
	if err := json.Unmarshal(b, &lists); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	pairs := make([][2]string, 0, len(lists))
	for i, l := range lists {
		if len(l) == 0 {
			return nil, fmt.Errorf("dataset %s: case %d has no commits", path, i)
		}
		pairs = append(pairs, [2]string{l[0], l[len(l)-1]})
	}
	return pairs, nil
}

// Run analyses the dataset of repo. Failed cases are logged and skipped.
func (b *Batch) Run(ctx context.Context, repo string) (*Summary, error) {
	pairs, err := LoadDataset(filepath.Join(b.opts.Dataset, repo+".json"))
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("dataset of %s is empty", repo)
	}
	r, err := vcs.Open(filepath.Join(b.opts.Projects, repo), b.logger)
	if err != nil {
		return nil, err
	}

	temp := b.opts.Temp
	if temp == "" {
		temp = filepath.Join(b.opts.Output, repo)
	}
	if err := os.MkdirAll(temp, 0o755); err != nil {
		return nil, err
	}
	defer os.RemoveAll(temp)

	var run *storage.Run
	if b.opts.Store != nil {
		if run, err = b.opts.Store.CreateRun(ctx, repo); err != nil {
			return nil, err
		}
	}

	b.logger.Info("start analyzing", "repo", repo, "cases", len(pairs), "workers", b.opts.Workers)
	results := make([]caseResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, pair := range pairs {
		g.Go(func() error {
			results[i] = b.analyze(gctx, r, temp, i, pair)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary, err := b.report(ctx, repo, run, results)
	if err != nil {
		return nil, err
	}
	b.logger.Info("repository analyzed",
		"repo", repo,
		"cases", summary.Cases,
		"failures", summary.Failures,
		"average_ms", summary.Average().Milliseconds())
	return summary, nil
}

// analyze runs one case. It never fails the batch; the error is kept in the
// result.
func (b *Batch) analyze(ctx context.Context, r *vcs.Repository, temp string, index int, pair [2]string) caseResult {
	var timer *divide.Timer
	if b.opts.Metrics != nil {
		timer = divide.NewTimer(b.opts.Metrics.ObservePhase)
	} else {
		timer = divide.NewTimer()
	}
	res := caseResult{record: storage.Case{Index: index, Before: pair[0], After: pair[1]}}

	timer.Mark(phaseAnalyze)
	diff, err := r.Diff(ctx, pair[0], pair[1], temp, vcs.Options{OnlyDiff: b.opts.OnlyDiff})
	if err != nil {
		res.err = err
		return res
	}
	defer func() {
		if err := diff.Cleanup(); err != nil {
			b.logger.Warn("failed to clean up case", "case", index, "err", err)
		}
	}()
	res.patches = len(diff.Patches())

	result, err := b.opts.NewCluster(timer).Run(ctx, diff)
	if err != nil {
		res.err = err
		return res
	}
	res.record.RunCost = timer.Finish(phaseAnalyze)
	res.record.RefactorCost = timer.Time(divide.PhaseRefactor)
	res.record.Groups = StoredGroups(result.Groups)
	return res
}

// reason names the failure class of err.
func reason(err error) string {
	if errors.Is(err, vcs.ErrGit) {
		return "vcs"
	}
	return divide.Reason(err)
}

// report writes the case log and the groups file, and stores the cases.
func (b *Batch) report(ctx context.Context, repo string, run *storage.Run, results []caseResult) (*Summary, error) {
	summary := &Summary{Cases: len(results)}
	var lines []string
	var entries []Entry
	last := len(results) - 1

	for i := range results {
		res := &results[i]
		rec := &res.record
		if res.err != nil {
			summary.Failures++
			rec.Status, rec.Reason = storage.StatusFailed, reason(res.err)
			b.logger.Error("case has errors and will be skipped", "case", i, "reason", rec.Reason, "err", res.err)
			lines = append(lines, fmt.Sprintf("Case %d/%d: failed (%s): %v", i, last, rec.Reason, res.err))
			if b.opts.Metrics != nil {
				b.opts.Metrics.CaseFailed(rec.Reason)
			}
		} else {
			rec.Status = storage.StatusOK
			summary.Total += rec.RunCost
			line := fmt.Sprintf("Case %d/%d: run cost %dms, refactor cost %dms", i, last, rec.RunCost.Milliseconds(), rec.RefactorCost.Milliseconds())
			b.logger.Info(line)
			lines = append(lines, line)
			entries = append(entries, NewEntry(i, rec.Groups))
			if b.opts.Metrics != nil {
				b.opts.Metrics.CaseSucceeded(res.patches, len(rec.Groups))
			}
		}

		if run != nil {
			rec.RunID = run.ID
			if err := b.opts.Store.SaveCase(ctx, rec); err != nil {
				return nil, err
			}
		}
	}

	lines = append(lines,
		fmt.Sprintf("Total cost %dms, average %dms per case", summary.Total.Milliseconds(), summary.Average().Milliseconds()),
		fmt.Sprintf("Fail count: %d", summary.Failures))
	if err := appendLines(filepath.Join(b.opts.Output, "logs", repo+".log"), lines); err != nil {
		return nil, err
	}
	if err := SaveEntries(entries, filepath.Join(b.opts.Output, "groups", repo+".json")); err != nil {
		return nil, err
	}

	if run != nil {
		run.Cases, run.Failures = summary.Cases, summary.Failures
		if err := b.opts.Store.FinishRun(ctx, run); err != nil {
			return nil, err
		}
		summary.RunID = run.ID
	}
	return summary, nil
}

func appendLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open case log: %w", err)
	}
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Pair analyses a single diff outside of a batch and returns its entry.
func Pair(ctx context.Context, c *divide.Cluster, diff *model.Diff) (Entry, *divide.Result, error) {
	result, err := c.Run(ctx, diff)
	if err != nil {
		return Entry{}, nil, err
	}
	return NewEntry(0, StoredGroups(result.Groups)), result, nil
}
