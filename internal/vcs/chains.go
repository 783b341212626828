package vcs

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"untangle/internal/crawler"
)

// ChainOptions bounds the composite commits mined from a history.
type ChainOptions struct {
	// Branch is the history walked; HEAD when empty.
	Branch string
	// MaxFiles is the most files one commit of a chain may touch.
	MaxFiles int
	// MaxHunks is the most hunks one file diff may have.
	MaxHunks int
	// MaxLength is the most commits a chain may add after its base.
	MaxLength int
	// HashLength abbreviates the hashes written out; zero keeps them whole.
	HashLength int
}

func DefaultChainOptions() ChainOptions {
	return ChainOptions{MaxFiles: 3, MaxHunks: 5, MaxLength: 5, HashLength: 10}
}

type revision struct {
	hash    string
	parents []string
}

// Chains mines composite commits: runs of more than two consecutive
// commits, each the only parent of the next, where every commit after the
// base changes at most MaxFiles Java source files, no file diff has more
// than MaxHunks hunks, and no file is touched twice. Each chain lists its
// hashes oldest first, base included.
func (r *Repository) Chains(ctx context.Context, opts ChainOptions) ([][]string, error) {
	branch := opts.Branch
	if branch == "" {
		branch = "HEAD"
	}
	out, err := r.git(ctx, "rev-list", "--reverse", "--parents", branch)
	if err != nil {
		return nil, err
	}
	var revs []revision
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		revs = append(revs, revision{hash: fields[0], parents: fields[1:]})
	}

	var chains [][]string
	for i := 0; i < len(revs); {
		n, err := r.chainAt(ctx, revs, i, opts)
		if err != nil {
			return nil, err
		}
		if n > 2 {
			chain := make([]string, n)
			for k := range chain {
				chain[k] = abbrev(revs[i+k].hash, opts.HashLength)
			}
			chains = append(chains, chain)
		}
		i += n
	}
	r.logger.Info("composite commits collected", "branch", branch, "commits", len(revs), "chains", len(chains))
	return chains, nil
}

// chainAt returns the length of the chain based at revs[i], base included.
func (r *Repository) chainAt(ctx context.Context, revs []revision, i int, opts ChainOptions) (int, error) {
	n := 1
	oldSeen, newSeen := make(map[string]bool), make(map[string]bool)
	for j := i + 1; j < len(revs); j++ {
		rev := revs[j]
		if n > opts.MaxLength || len(rev.parents) != 1 || rev.parents[0] != revs[j-1].hash {
			break
		}
		out, err := r.git(ctx, "diff", "-M", "--ignore-space-change", "--no-color", "--no-ext-diff", rev.parents[0], rev.hash)
		if err != nil {
			return 0, err
		}
		fds, err := diff.NewMultiFileDiffReader(bytes.NewReader(out)).ReadAllFiles()
		if err != nil {
			return 0, fmt.Errorf("failed to parse diff of %s: %w", rev.hash, err)
		}
		if len(fds) > opts.MaxFiles {
			break
		}

		stop, changed := false, false
		oldPaths, newPaths := make(map[string]bool), make(map[string]bool)
		for _, fd := range fds {
			if len(fd.Hunks) > opts.MaxHunks {
				stop = true
				continue
			}
			oldPath, newPath := stripPrefix(fd.OrigName, "a/"), stripPrefix(fd.NewName, "b/")
			if !minable(oldPath) || !minable(newPath) {
				continue
			}
			changed = true
			if newSeen[oldPath] || oldSeen[newPath] {
				stop = true
				break
			}
			if oldPath != "" {
				oldPaths[oldPath] = true
			}
			if newPath != "" {
				newPaths[newPath] = true
			}
		}
		if !changed || max(len(oldPaths), len(newPaths)) > opts.MaxFiles {
			stop = true
		}
		if stop {
			break
		}
		n++
		for p := range oldPaths {
			oldSeen[p] = true
		}
		for p := range newPaths {
			newSeen[p] = true
		}
	}
	return n, nil
}

// minable reports whether a diff side counts toward a chain. The missing
// side of an added or deleted file always does.
func minable(path string) bool {
	if path == "" {
		return true
	}
	return crawler.IsJavaFile(path) && crawler.IsValidPath(path) && crawler.InSourceRoot(path)
}

func abbrev(hash string, n int) string {
	if n <= 0 || len(hash) <= n {
		return hash
	}
	return hash[:n]
}
