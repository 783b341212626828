package model

import (
	"fmt"
	"strings"
)

// Region is one side of a Patch: a line range [Begin, End] in one file of one
// revision. The line range never changes after construction; token spans are
// appended by the token diff phase.
type Region struct {
	index  int
	begin  int
	end    int
	view   *FileView
	code   []string
	tokens []Info
}

func NewRegion(view *FileView, index, begin, end int) (*Region, error) {
	if view == nil {
		return nil, fmt.Errorf("region %d: missing file view", index)
	}
	if begin < 1 || begin > end {
		return nil, fmt.Errorf("region %d in %s: invalid line range %d-%d", index, view.Path(), begin, end)
	}
	return &Region{index: index, begin: begin, end: end, view: view}, nil
}

func (r *Region) Index() int { return r.index }
func (r *Region) Begin() int { return r.begin }
func (r *Region) End() int { return r.end }
func (r *Region) View() *FileView { return r.view }
func (r *Region) Path() string { return r.view.Path() }
func (r *Region) Code() []string { return r.code }
func (r *Region) Tokens() []Info { return r.tokens }
func (r *Region) AddToken(i Info) { r.tokens = append(r.tokens, i) }
func (r *Region) Len() int { return r.end - r.begin + 1 }

// Intersects reports whether the inclusive line ranges overlap.
func (r *Region) Intersects(begin, end int) bool {
	return !(r.end < begin || r.begin > end)
}

// PathEquals reports whether o lives in the same file. A nil region never
// matches.
func (r *Region) PathEquals(o *Region) bool {
	if o == nil {
		return false
	}
	return r.Path() == o.Path()
}

// StrippedCode returns the region lines without surrounding whitespace.
func (r *Region) StrippedCode() []string {
	out := make([]string, len(r.code))
	for i, line := range r.code {
		out[i] = strings.TrimSpace(line)
	}
	return out
}

// Cosine is the bag-of-words cosine similarity of the stripped code of both
// regions. It is 0 against a nil region.
func (r *Region) Cosine(o *Region) float64 {
	if o == nil {
		return 0
	}
	return CosineSimilarity(strings.Join(r.StrippedCode(), " "), strings.Join(o.StrippedCode(), " "))
}

func (r *Region) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Region[%s](%d-%d)", r.Path(), r.begin, r.end)
}
