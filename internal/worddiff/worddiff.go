// Package worddiff computes the changed tokens between the two sides of a
// hunk. Spans are returned with 0-based rows relative to the first line of
// each side and 1-based inclusive columns.
package worddiff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"untangle/internal/model"
)

// ErrProcess reports a word diff that could not be computed.
var ErrProcess = errors.New("word diff failed")

const (
	ModeBuiltin = "builtin"
	ModeGit     = "git"
)

// Result holds the removed tokens of the before side and the inserted tokens
// of the after side.
type Result struct {
	Removed  []model.Info
	Inserted []model.Info
}

type Differ interface {
	Diff(ctx context.Context, before, after []string) (Result, error)
}

// New returns the differ for mode. tempDir holds the scratch files of the
// git differ.
func New(mode, tempDir string, logger *slog.Logger) (Differ, error) {
	switch mode {
	case "", ModeBuiltin:
		return Builtin{}, nil
	case ModeGit:
		return &Git{TempDir: tempDir, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown word diff mode %q", mode)
	}
}

func span(row, col, length int) model.Info {
	return model.NewInfo(row, col+1, row, col+length)
}
