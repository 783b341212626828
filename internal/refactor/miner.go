package refactor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Miner runs the RefactoringMiner command line in directory mode.
type Miner struct {
	// Command is the RefactoringMiner launcher.
	Command string
	// TempDir holds the JSON report. Empty means os.TempDir.
	TempDir string
	Logger  *slog.Logger
}

func NewMiner(command, tempDir string, logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{Command: command, TempDir: tempDir, Logger: logger}
}

func (m *Miner) Detect(ctx context.Context, beforeRoot, afterRoot string) ([]Refactoring, error) {
	dir, err := os.MkdirTemp(m.TempDir, "refactor-")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "refactorings.json")

	cmd := exec.CommandContext(ctx, m.Command, "-bd", beforeRoot, afterRoot, "-json", out)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		m.Logger.Error("refactoring miner failed", "command", m.Command, "err", err, "stderr", strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("%w: %s: %v", ErrDetection, m.Command, err)
	}

	f, err := os.Open(out)
	if err != nil {
		return nil, fmt.Errorf("%w: no report: %v", ErrDetection, err)
	}
	defer f.Close()

	refs, err := ParseReport(f)
	if err != nil {
		return nil, err
	}
	m.Logger.Debug("refactorings detected", "count", len(refs))
	return refs, nil
}
