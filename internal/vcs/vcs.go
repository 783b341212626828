// Package vcs turns two revisions of a Java project into a model.Diff.
package vcs

import (
	"errors"
	"strings"

	"untangle/internal/crawler"
	"untangle/internal/model"
)

var ErrGit = errors.New("git command failed")

const (
	beforeDir = "before"
	afterDir  = "after"
)

type Options struct {
	// OnlyDiff writes just the changed files into the snapshot roots
	// instead of the full trees.
	OnlyDiff bool
}

// wanted reports whether path takes part in the analysis.
func wanted(path string) bool {
	return path != "" && crawler.IsJavaFile(path) && crawler.IsValidPath(path)
}

// touches reports whether any hunk has lines on the old (or new) side.
func touches(hunks []model.Hunk, old bool) bool {
	for _, h := range hunks {
		if old && h.OldLines > 0 || !old && h.NewLines > 0 {
			return true
		}
	}
	return false
}

// contentLines splits text into lines without the empty element that
// follows a final newline.
func contentLines(text string) []string {
	if text == "" {
		return nil
	}
	return model.SplitLines(strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n"))
}
