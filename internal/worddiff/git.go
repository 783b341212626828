package worddiff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Git runs git diff --no-index --word-diff=porcelain over two scratch files.
type Git struct {
	// TempDir is where scratch files are created. Empty means os.TempDir.
	TempDir string
	Logger  *slog.Logger
}

func (g *Git) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Git) Diff(ctx context.Context, before, after []string) (Result, error) {
	dir, err := os.MkdirTemp(g.TempDir, "worddiff-")
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrProcess, err)
	}
	defer os.RemoveAll(dir)

	if err := writeLines(filepath.Join(dir, "f1.txt"), before); err != nil {
		return Result{}, err
	}
	if err := writeLines(filepath.Join(dir, "f2.txt"), after); err != nil {
		return Result{}, err
	}

	// Full context keeps every line in one hunk.
	unified := "-U" + strconv.Itoa(max(len(before), len(after)))
	cmd := exec.CommandContext(ctx, "git", "diff", "--no-index", "--no-color", "--word-diff=porcelain", unified, "f1.txt", "f2.txt")
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.ExitCode() == 1) {
		g.logger().Error("git word diff failed", "err", err, "stderr", strings.TrimSpace(stderr.String()))
		return Result{}, fmt.Errorf("%w: git diff: %v", ErrProcess, err)
	}
	return ParsePorcelain(stdout.String(), before, after)
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrProcess, err)
	}
	return nil
}
