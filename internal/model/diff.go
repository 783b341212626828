package model

import (
	"fmt"
	"os"
)

type ChangeKind int

const (
	ChangeModify ChangeKind = iota
	ChangeAdd
	ChangeDelete
	ChangeRename
	ChangeCopy
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "ADD"
	case ChangeDelete:
		return "DELETE"
	case ChangeRename:
		return "RENAME"
	case ChangeCopy:
		return "COPY"
	default:
		return "MODIFY"
	}
}

// Hunk is one line-level edit. Starts are 1-based; a side with zero lines is
// absent from the resulting patch.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

// FileEdit is one file-level entry of a version-control diff.
type FileEdit struct {
	OldPath    string
	NewPath    string
	Kind       ChangeKind
	Hunks      []Hunk
	OldContent string
	NewContent string
}

// Diff is the ordered list of patches between two snapshots.
type Diff struct {
	prev    *Snapshot
	next    *Snapshot
	temp    string
	patches []*Patch
}

// NewDiff creates an empty diff. temp is removed by Cleanup when it is not
// empty; the snapshot roots are expected to live below it in that case.
func NewDiff(prev, next *Snapshot, temp string) *Diff {
	return &Diff{prev: prev, next: next, temp: temp}
}

func (d *Diff) Prev() *Snapshot { return d.prev }
func (d *Diff) Next() *Snapshot { return d.next }
func (d *Diff) TempDir() string { return d.temp }

// Patches returns the patches in index order.
func (d *Diff) Patches() []*Patch { return d.patches }

func (d *Diff) Patch(index int) *Patch {
	if index < 0 || index >= len(d.patches) {
		return nil
	}
	return d.patches[index]
}

// AddFile appends one patch per hunk of edit and registers the touched file
// views with both snapshots.
func (d *Diff) AddFile(edit FileEdit) error {
	left := NewFileView(edit.OldPath)
	right := NewFileView(edit.NewPath)

	for _, h := range edit.Hunks {
		index := len(d.patches)
		var prev, next *Region
		var err error
		if edit.Kind != ChangeAdd && h.OldLines > 0 {
			if prev, err = NewRegion(left, index, h.OldStart, h.OldStart+h.OldLines-1); err != nil {
				return err
			}
			left.addRegion(prev)
		}
		if edit.Kind != ChangeDelete && h.NewLines > 0 {
			if next, err = NewRegion(right, index, h.NewStart, h.NewStart+h.NewLines-1); err != nil {
				return err
			}
			right.addRegion(next)
		}
		if prev == nil && next == nil {
			continue
		}
		patch, err := NewPatch(index, prev, next)
		if err != nil {
			return err
		}
		d.patches = append(d.patches, patch)
	}

	if !left.IsEmpty() {
		if err := left.setContent(edit.OldContent); err != nil {
			return err
		}
		d.prev.AddView(left)
	}
	if !right.IsEmpty() {
		if err := right.setContent(edit.NewContent); err != nil {
			return err
		}
		d.next.AddView(right)
	}
	return nil
}

// Materialize writes every touched file into its snapshot root. It is used
// when only the changed files are checked out.
func (d *Diff) Materialize() error {
	for _, s := range []*Snapshot{d.prev, d.next} {
		for _, v := range s.Views() {
			if err := s.MakeFile(v.Path(), v.Content()); err != nil {
				return fmt.Errorf("failed to materialize %s: %w", v.Path(), err)
			}
		}
	}
	return nil
}

// Cleanup drops all views and removes the temp directory, if any.
func (d *Diff) Cleanup() error {
	d.prev.Reset()
	d.next.Reset()
	d.patches = nil
	if d.temp == "" {
		return nil
	}
	return os.RemoveAll(d.temp)
}
