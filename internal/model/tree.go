package model

import "fmt"

type EdgeKind int

const (
	EdgeImport EdgeKind = iota
	EdgeExtend
	EdgeImplement
	EdgeOverride
	EdgeReference
	EdgeDefUse
	EdgeMethodCall
	EdgeControl
	EdgeContain
	EdgeOverload
)

var edgeKindNames = [...]string{
	EdgeImport:     "IMPORT",
	EdgeExtend:     "EXTEND",
	EdgeImplement:  "IMPLEMENT",
	EdgeOverride:   "OVERRIDE",
	EdgeReference:  "REFERENCE",
	EdgeDefUse:     "DEF_USE",
	EdgeMethodCall: "METHOD_CALL",
	EdgeControl:    "CONTROL",
	EdgeContain:    "CONTAIN",
	EdgeOverload:   "OVERLOAD",
}

func (k EdgeKind) String() string {
	if int(k) < len(edgeKindNames) {
		return edgeKindNames[k]
	}
	return fmt.Sprintf("EdgeKind(%d)", int(k))
}

// TreeNode points at one parsed syntax node. Node is the arena id assigned by
// the parser, so two syntactically identical fragments stay distinct.
type TreeNode struct {
	Node int32
	Path string
	Span Info
}

func (n TreeNode) String() string {
	return fmt.Sprintf("%s#%d%s", n.Path, n.Node, n.Span)
}

// Edge is a typed structural relation between two tree nodes.
type Edge struct {
	From TreeNode
	To   TreeNode
	Kind EdgeKind
}

func (e Edge) Source() TreeNode { return e.From }
func (e Edge) Target() TreeNode { return e.To }
func (e Edge) Label() string { return e.Kind.String() }
