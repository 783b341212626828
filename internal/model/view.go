package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileView collects the regions of one file in one revision together with
// the file's full text at that revision.
type FileView struct {
	path    string
	content string
	regions []*Region
}

func NewFileView(path string) *FileView {
	return &FileView{path: filepath.ToSlash(path)}
}

func (v *FileView) Path() string { return v.path }
func (v *FileView) Content() string { return v.content }
func (v *FileView) Regions() []*Region { return v.regions }
func (v *FileView) IsEmpty() bool { return len(v.regions) == 0 }

func (v *FileView) addRegion(r *Region) {
	v.regions = append(v.regions, r)
}

// setContent stores the file text and slices every region's lines out of it.
func (v *FileView) setContent(content string) error {
	v.content = content
	lines := SplitLines(content)
	for _, r := range v.regions {
		if r.end > len(lines) {
			return fmt.Errorf("%s: region %d-%d exceeds %d lines", v.path, r.begin, r.end, len(lines))
		}
		r.code = lines[r.begin-1 : r.end]
	}
	return nil
}

// InScope reports whether the line range [begin, end] overlaps any region.
func (v *FileView) InScope(begin, end int) bool {
	for _, r := range v.regions {
		if r.Intersects(begin, end) {
			return true
		}
	}
	return false
}

// SplitLines splits text on \n or \r\n, keeping a trailing empty line like
// the text editors do.
func SplitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// Snapshot is one revision: the file views that take part in the diff and the
// directory where the revision's files are materialized for parsing.
type Snapshot struct {
	root  string
	views map[string]*FileView
	order []string
}

func NewSnapshot(root string) *Snapshot {
	return &Snapshot{root: root, views: make(map[string]*FileView)}
}

func (s *Snapshot) Root() string { return s.root }

// View returns the view for a slash-separated path relative to the root.
func (s *Snapshot) View(path string) *FileView {
	return s.views[filepath.ToSlash(path)]
}

// Views returns the views in the order they were added.
func (s *Snapshot) Views() []*FileView {
	out := make([]*FileView, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, s.views[p])
	}
	return out
}

func (s *Snapshot) AddView(v *FileView) {
	if _, ok := s.views[v.path]; !ok {
		s.order = append(s.order, v.path)
	}
	s.views[v.path] = v
}

// MakeFile writes text to path below the snapshot root.
func (s *Snapshot) MakeFile(path, text string) error {
	abs := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", path, err)
	}
	return os.WriteFile(abs, []byte(text), 0o644)
}

// Reset forgets every view. Files on disk are left alone.
func (s *Snapshot) Reset() {
	s.views = make(map[string]*FileView)
	s.order = nil
}
