package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"untangle/internal/vcs"
)

var ErrDatasetExists = errors.New("dataset already exists")

// DatasetOptions configures MineDataset.
type DatasetOptions struct {
	Projects string
	Dataset  string
	Chains   vcs.ChainOptions
	// Force rewrites a dataset file that already exists.
	Force  bool
	Logger *slog.Logger
}

// MineDataset writes <dataset>/<repo>.json from the composite commits of
// <projects>/<repo> and returns how many it found.
func MineDataset(ctx context.Context, opts DatasetOptions, repo string) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(opts.Dataset, repo+".json")
	if _, err := os.Stat(path); err == nil && !opts.Force {
		return 0, fmt.Errorf("%w: %s", ErrDatasetExists, path)
	}

	r, err := vcs.Open(filepath.Join(opts.Projects, repo), logger)
	if err != nil {
		return 0, err
	}
	chains, err := r.Chains(ctx, opts.Chains)
	if err != nil {
		return 0, err
	}
	if err := SaveDataset(chains, path); err != nil {
		return 0, err
	}
	logger.Info("dataset written", "repo", repo, "path", path, "cases", len(chains))
	return len(chains), nil
}

// SaveDataset writes chains in the format LoadDataset reads.
func SaveDataset(chains [][]string, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if chains == nil {
		chains = [][]string{}
	}
	b, err := json.MarshalIndent(chains, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}
