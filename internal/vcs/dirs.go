package vcs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"untangle/internal/crawler"
	"untangle/internal/model"
)

// FromDirectories compares two plain source trees. The directories become
// the snapshot roots as they are, so Cleanup leaves them alone.
func FromDirectories(before, after string) (*model.Diff, error) {
	d := model.NewDiff(model.NewSnapshot(before), model.NewSnapshot(after), "")

	c := crawler.NewCrawler()
	seen := make(map[string]bool)
	for _, root := range []string{before, after} {
		if err := c.ScanJava(root, func(rel string) { seen[rel] = true }); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, rel := range paths {
		old, oldOK, err := readFile(before, rel)
		if err != nil {
			return nil, err
		}
		cur, curOK, err := readFile(after, rel)
		if err != nil {
			return nil, err
		}
		if old == cur && oldOK == curOK {
			continue
		}

		edit := model.FileEdit{OldPath: rel, NewPath: rel, Kind: model.ChangeModify, OldContent: old, NewContent: cur}
		switch {
		case !oldOK:
			edit.Kind = model.ChangeAdd
		case !curOK:
			edit.Kind = model.ChangeDelete
		}
		edit.Hunks = lineHunks(contentLines(old), contentLines(cur))
		if err := d.AddFile(edit); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func readFile(root, rel string) (string, bool, error) {
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// lineHunks matches lines with runs of whitespace collapsed and returns the
// non-equal opcodes as hunks.
func lineHunks(a, b []string) []model.Hunk {
	m := difflib.NewMatcherWithJunk(normalize(a), normalize(b), false, nil)
	var hunks []model.Hunk
	for _, op := range m.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		hunks = append(hunks, model.Hunk{
			OldStart: op.I1 + 1,
			OldLines: op.I2 - op.I1,
			NewStart: op.J1 + 1,
			NewLines: op.J2 - op.J1,
		})
	}
	return hunks
}

func normalize(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.Join(strings.Fields(l), " ")
	}
	return out
}
