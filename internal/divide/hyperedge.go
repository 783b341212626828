package divide

import (
	"fmt"

	"untangle/internal/graph"
	"untangle/internal/model"
)

type HyperKind int

const (
	Refactor HyperKind = iota
	Depend
	// Format and Comment are reserved kinds. No phase produces them.
	Format
	Comment
	Clone
	Trivial
)

var hyperKindNames = [...]string{
	Refactor: "REFACTOR",
	Depend:   "DEPEND",
	Format:   "FORMAT",
	Comment:  "COMMENT",
	Clone:    "CLONE",
	Trivial:  "TRIVIAL",
}

func (k HyperKind) String() string {
	if int(k) < len(hyperKindNames) {
		return hyperKindNames[k]
	}
	return fmt.Sprintf("HyperKind(%d)", int(k))
}

// HyperEdge is a typed relation between two patches.
type HyperEdge struct {
	From *model.Patch
	To   *model.Patch
	Kind HyperKind
}

func (e HyperEdge) Source() *model.Patch { return e.From }
func (e HyperEdge) Target() *model.Patch { return e.To }
func (e HyperEdge) Label() string        { return e.Kind.String() }

// PatchGraph is the hypergraph over the patches of one diff.
type PatchGraph = graph.Graph[*model.Patch, HyperEdge]
