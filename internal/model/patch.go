package model

import (
	"fmt"
	"math"
)

// Patch is one edit hunk: an optional before side and an optional after side.
// A Diff holds exactly one *Patch per index, so pointer identity and index
// identity coincide.
type Patch struct {
	index int
	prev  *Region
	next  *Region
}

func NewPatch(index int, prev, next *Region) (*Patch, error) {
	if prev == nil && next == nil {
		return nil, fmt.Errorf("patch %d: both sides are absent", index)
	}
	return &Patch{index: index, prev: prev, next: next}, nil
}

func (p *Patch) Index() int { return p.index }
func (p *Patch) Prev() *Region { return p.prev }
func (p *Patch) Next() *Region { return p.next }
func (p *Patch) HasPrev() bool { return p.prev != nil }
func (p *Patch) HasNext() bool { return p.next != nil }

// Sides returns the present regions, before side first.
func (p *Patch) Sides() []*Region {
	var sides []*Region
	if p.prev != nil {
		sides = append(sides, p.prev)
	}
	if p.next != nil {
		sides = append(sides, p.next)
	}
	return sides
}

// PathEquals reports whether every side present in p is present in o and
// lives in the same file.
func (p *Patch) PathEquals(o *Patch) bool {
	if p.prev != nil && !p.prev.PathEquals(o.prev) {
		return false
	}
	if p.next != nil && !p.next.PathEquals(o.next) {
		return false
	}
	return true
}

// Cosine compares the sides p has; with both sides present the weaker
// similarity wins.
func (p *Patch) Cosine(o *Patch) float64 {
	switch {
	case p.prev == nil:
		return p.next.Cosine(o.next)
	case p.next == nil:
		return p.prev.Cosine(o.prev)
	default:
		return math.Min(p.next.Cosine(o.next), p.prev.Cosine(o.prev))
	}
}

func (p *Patch) String() string {
	return fmt.Sprintf("Patch#%d{prev=%v, next=%v}", p.index, p.prev, p.next)
}
