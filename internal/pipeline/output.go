package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"untangle/internal/model"
	"untangle/internal/storage"
)

// Patch is the output form of one patch. The path of an absent side is null
// and its line range is omitted.
type Patch struct {
	LeftPath   *string `json:"leftPath"`
	LeftBegin  int     `json:"leftBegin,omitempty"`
	LeftEnd    int     `json:"leftEnd,omitempty"`
	RightPath  *string `json:"rightPath"`
	RightBegin int     `json:"rightBegin,omitempty"`
	RightEnd   int     `json:"rightEnd,omitempty"`
}

// Entry holds the groups of one case.
type Entry struct {
	Groups [][]Patch `json:"groups"`
	Index  int       `json:"index"`
}

func sideOf(r *model.Region) *storage.Side {
	if r == nil {
		return nil
	}
	return &storage.Side{Path: r.Path(), Begin: r.Begin(), End: r.End()}
}

// StoredGroups converts decomposed groups for persistence.
func StoredGroups(groups [][]*model.Patch) [][]storage.GroupPatch {
	out := make([][]storage.GroupPatch, len(groups))
	for i, g := range groups {
		out[i] = make([]storage.GroupPatch, len(g))
		for j, p := range g {
			out[i][j] = storage.GroupPatch{Index: p.Index(), Left: sideOf(p.Prev()), Right: sideOf(p.Next())}
		}
	}
	return out
}

// NewEntry converts stored groups to their output form.
func NewEntry(index int, groups [][]storage.GroupPatch) Entry {
	e := Entry{Index: index, Groups: make([][]Patch, len(groups))}
	for i, g := range groups {
		e.Groups[i] = make([]Patch, len(g))
		for j, p := range g {
			var out Patch
			if p.Left != nil {
				out.LeftPath, out.LeftBegin, out.LeftEnd = &p.Left.Path, p.Left.Begin, p.Left.End
			}
			if p.Right != nil {
				out.RightPath, out.RightBegin, out.RightEnd = &p.Right.Path, p.Right.Begin, p.Right.End
			}
			e.Groups[i][j] = out
		}
	}
	return e
}

// SaveEntries writes entries as an indented JSON array.
func SaveEntries(entries []Entry, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create groups file: %w", err)
	}
	defer f.Close()

	if entries == nil {
		entries = []Entry{}
	}
	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}
	return nil
}

// LoadEntries reads a file written by SaveEntries.
func LoadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open groups file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	return entries, nil
}
