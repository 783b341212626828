// Package divide groups the patches of a diff into entangled clusters.
package divide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"untangle/internal/analysis"
	"untangle/internal/graph"
	"untangle/internal/model"
	"untangle/internal/refactor"
	"untangle/internal/syntax"
	"untangle/internal/worddiff"
)

const (
	DefaultCloneThreshold = 0.85
	DefaultGracePeriod    = 15 * time.Second
)

// StructureBuilder builds the structural graph of one snapshot.
type StructureBuilder interface {
	Build(ctx context.Context, snap *model.Snapshot) (*analysis.StructureGraph, error)
}

type Options struct {
	Differ   worddiff.Differ
	Builder  StructureBuilder
	Detector refactor.Detector

	CloneThreshold float64
	// GracePeriod bounds the wait for the other build after a worker fault.
	GracePeriod time.Duration
	// Abort runs when the builds are abandoned after a fault.
	Abort func()

	Timer *Timer
	// DotDir receives DOT dumps of the graphs when set.
	DotDir string
	Logger *slog.Logger
}

// Result is the outcome of a successful analysis.
type Result struct {
	Groups  [][]*model.Patch
	Graph   *PatchGraph
	Timings *Timer
}

// Cluster runs the analysis of one diff.
type Cluster struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	graph  *PatchGraph
	failed atomic.Bool
}

func New(opts Options) *Cluster {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Differ == nil {
		opts.Differ = worddiff.Builtin{}
	}
	if opts.Builder == nil {
		opts.Builder = analysis.NewBuilder(analysis.Options{StrictParse: true, Logger: opts.Logger})
	}
	if opts.Detector == nil {
		opts.Detector = refactor.Nop{}
	}
	if opts.CloneThreshold == 0 {
		opts.CloneThreshold = DefaultCloneThreshold
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Timer == nil {
		opts.Timer = NewTimer()
	}
	return &Cluster{opts: opts, logger: opts.Logger}
}

// Failed reports whether a build task faulted.
func (c *Cluster) Failed() bool { return c.failed.Load() }

// Run analyses diff. On failure it returns an *AnalysisError and no groups.
// A Cluster is spent once a build task has faulted, since an abandoned build
// may still be running; later runs fail with ErrWorkerFault.
func (c *Cluster) Run(ctx context.Context, diff *model.Diff) (*Result, error) {
	if c.failed.Load() {
		return nil, fail(ErrWorkerFault, errors.New("cluster already failed"))
	}
	timer := c.opts.Timer
	c.mu.Lock()
	c.graph = graph.New[*model.Patch, HyperEdge]()
	c.mu.Unlock()
	patches := diff.Patches()

	if err := c.buildGraph(ctx, diff, patches); err != nil {
		return nil, err
	}

	timer.Mark(PhaseRefactor)
	refs, err := c.opts.Detector.Detect(ctx, diff.Prev().Root(), diff.Next().Root())
	timer.Finish(PhaseRefactor)
	if err != nil {
		return nil, fail(ErrRefactoringDetection, err)
	}

	timer.Mark(PhaseSignals)
	c.linkRefactorings(diff, refs)
	c.detectClones(patches)
	c.detectTrivial(patches)
	timer.Finish(PhaseSignals)

	timer.Mark(PhaseDecompose)
	groups := Decompose(c.graph, patches)
	timer.Finish(PhaseDecompose)

	c.logger.Debug("diff decomposed",
		"patches", len(patches),
		"edges", c.graph.EdgeCount(),
		"refactorings", len(refs),
		"groups", len(groups))
	dumpDOT(c.logger, c.opts.DotDir, "patch", c.graph, (*model.Patch).String)
	return &Result{Groups: groups, Graph: c.graph, Timings: timer}, nil
}

// buildGraph runs the token diff and both structural builds. The graph phase
// spans both and is finished on every return.
func (c *Cluster) buildGraph(ctx context.Context, diff *model.Diff, patches []*model.Patch) error {
	c.opts.Timer.Mark(PhaseGraph)
	defer c.opts.Timer.Finish(PhaseGraph)
	if err := c.tokenDiffAll(ctx, patches); err != nil {
		return err
	}
	return c.buildAll(ctx, diff)
}

func (c *Cluster) tokenDiffAll(ctx context.Context, patches []*model.Patch) error {
	c.opts.Timer.Mark(PhaseTokens)
	defer c.opts.Timer.Finish(PhaseTokens)
	for _, p := range patches {
		c.graph.AddNode(p)
		if err := c.tokenDiff(ctx, p); err != nil {
			return fail(ErrExternalProcess, fmt.Errorf("patch %d: %w", p.Index(), err))
		}
	}
	return nil
}

// addEdge inserts a hyperedge unless it is a self edge. Edges are dropped
// once a build task has faulted.
func (c *Cluster) addEdge(src, tgt *model.Patch, kind HyperKind) bool {
	if src == tgt {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed.Load() {
		return false
	}
	return c.graph.AddEdge(HyperEdge{From: src, To: tgt, Kind: kind})
}

// buildAll runs the before and after builds side by side. After a worker
// fault the other build gets the grace period to finish before the analysis
// is abandoned.
func (c *Cluster) buildAll(ctx context.Context, diff *model.Diff) error {
	p := pool.New().WithMaxGoroutines(2).WithContext(ctx).WithCancelOnError()
	fault := make(chan struct{})
	var once sync.Once

	for _, snap := range []*model.Snapshot{diff.Prev(), diff.Next()} {
		p.Go(func(ctx context.Context) error {
			var pc panics.Catcher
			var err error
			pc.Try(func() { err = c.buildOne(ctx, diff, snap) })
			if r := pc.Recovered(); r != nil {
				c.failed.Store(true)
				once.Do(func() { close(fault) })
				c.logger.Error("build task panicked", "root", snap.Root(), "panic", r.Value, "stack", string(r.Stack))
				return fail(ErrWorkerFault, r.AsError())
			}
			return err
		})
	}

	done := make(chan error, 1)
	go func() { done <- p.Wait() }()

	select {
	case err := <-done:
		return firstFailure(err)
	case <-fault:
	}
	grace := time.NewTimer(c.opts.GracePeriod)
	defer grace.Stop()
	select {
	case err := <-done:
		return firstFailure(err)
	case <-grace.C:
		c.logger.Error("abandoning analysis after worker fault", "grace", c.opts.GracePeriod)
		if c.opts.Abort != nil {
			c.opts.Abort()
		}
		return fail(ErrWorkerFault, fmt.Errorf("builds still running after %s", c.opts.GracePeriod))
	}
}

// firstFailure picks the analysis error out of joined task errors. A worker
// fault wins over the cancellation it caused in the other task.
func firstFailure(err error) error {
	if err == nil {
		return nil
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae
	}
	return err
}

func (c *Cluster) buildOne(ctx context.Context, diff *model.Diff, snap *model.Snapshot) error {
	g, err := c.opts.Builder.Build(ctx, snap)
	if err != nil {
		if !errors.Is(err, syntax.ErrParse) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return err
		}
		return fail(ErrParseFailure, err)
	}
	n := c.project(diff, snap, g)
	c.logger.Debug("structure graph projected",
		"root", snap.Root(),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"depend", n)
	dumpDOT(c.logger, c.opts.DotDir, "structure-"+filepath.Base(snap.Root()), g, model.TreeNode.String)
	return nil
}

// dumpDOT writes g to dir/name.dot. Failures are logged and otherwise
// ignored.
func dumpDOT[N comparable, E graph.Edge[N]](logger *slog.Logger, dir, name string, g *graph.Graph[N, E], label func(N) string) {
	if dir == "" {
		return
	}
	path := filepath.Join(dir, name+".dot")
	f, err := os.Create(path)
	if err != nil {
		logger.Warn("failed to create dot file", "path", path, "err", err)
		return
	}
	defer f.Close()
	if err := graph.WriteDOT(f, g, name, label); err != nil {
		logger.Warn("failed to write dot file", "path", path, "err", err)
	}
}
