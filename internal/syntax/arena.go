package syntax

import "untangle/internal/model"

// NodeID indexes a node in an Arena. Ids are assigned in parse order and are
// never reused within one Arena.
type NodeID int32

const NoNode NodeID = -1

// Point is a 0-based row/byte-column pair as reported by tree-sitter.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a copy of one tree-sitter node. Anonymous tokens (keywords,
// punctuation) are kept so that modifiers stay visible; comments are dropped.
type Node struct {
	Type      string
	Named     bool
	Field     string
	Parent    NodeID
	Children  []NodeID
	File      *File
	StartByte uint32
	EndByte   uint32
	Start     Point
	End       Point
}

// Arena owns every node parsed for one snapshot. It is not safe for
// concurrent use; each structural build has its own.
type Arena struct {
	nodes []Node
}

func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) add(n Node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

func (a *Arena) Len() int { return len(a.nodes) }

func (a *Arena) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(a.nodes)
}

func (a *Arena) Node(id NodeID) *Node {
	return &a.nodes[id]
}

// Type returns the tree-sitter node type, or "" for NoNode.
func (a *Arena) Type(id NodeID) string {
	if !a.Valid(id) {
		return ""
	}
	return a.nodes[id].Type
}

func (a *Arena) Is(id NodeID, types ...string) bool {
	t := a.Type(id)
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

func (a *Arena) Parent(id NodeID) NodeID {
	if !a.Valid(id) {
		return NoNode
	}
	return a.nodes[id].Parent
}

func (a *Arena) File(id NodeID) *File {
	if !a.Valid(id) {
		return nil
	}
	return a.nodes[id].File
}

func (a *Arena) Text(id NodeID) string {
	if !a.Valid(id) {
		return ""
	}
	n := &a.nodes[id]
	return string(n.File.Source[n.StartByte:n.EndByte])
}

// Field returns the first child stored under the given field name.
func (a *Arena) Field(id NodeID, name string) NodeID {
	if !a.Valid(id) {
		return NoNode
	}
	for _, c := range a.nodes[id].Children {
		if a.nodes[c].Field == name {
			return c
		}
	}
	return NoNode
}

// Fields returns every child stored under the given field name.
func (a *Arena) Fields(id NodeID, name string) []NodeID {
	if !a.Valid(id) {
		return nil
	}
	var out []NodeID
	for _, c := range a.nodes[id].Children {
		if a.nodes[c].Field == name {
			out = append(out, c)
		}
	}
	return out
}

func (a *Arena) Children(id NodeID) []NodeID {
	if !a.Valid(id) {
		return nil
	}
	return a.nodes[id].Children
}

func (a *Arena) NamedChildren(id NodeID) []NodeID {
	if !a.Valid(id) {
		return nil
	}
	var out []NodeID
	for _, c := range a.nodes[id].Children {
		if a.nodes[c].Named {
			out = append(out, c)
		}
	}
	return out
}

// ChildOfType returns the first child whose type is one of types.
func (a *Arena) ChildOfType(id NodeID, types ...string) NodeID {
	for _, c := range a.Children(id) {
		if a.Is(c, types...) {
			return c
		}
	}
	return NoNode
}

func (a *Arena) ChildrenOfType(id NodeID, types ...string) []NodeID {
	var out []NodeID
	for _, c := range a.Children(id) {
		if a.Is(c, types...) {
			out = append(out, c)
		}
	}
	return out
}

// HasToken reports whether id has an anonymous child token such as "static".
func (a *Arena) HasToken(id NodeID, token string) bool {
	for _, c := range a.Children(id) {
		if !a.nodes[c].Named && a.nodes[c].Type == token {
			return true
		}
	}
	return false
}

// Ancestor walks up from id (exclusive) to the nearest node of one of types.
func (a *Arena) Ancestor(id NodeID, types ...string) NodeID {
	for p := a.Parent(id); p != NoNode; p = a.Parent(p) {
		if a.Is(p, types...) {
			return p
		}
	}
	return NoNode
}

// Contains reports whether inner lies in the subtree of outer.
func (a *Arena) Contains(outer, inner NodeID) bool {
	for n := inner; n != NoNode; n = a.Parent(n) {
		if n == outer {
			return true
		}
	}
	return false
}

// Span converts the node range into 1-based, end-inclusive columns.
func (a *Arena) Span(id NodeID) model.Info {
	n := &a.nodes[id]
	return model.NewInfo(int(n.Start.Row)+1, int(n.Start.Column)+1, int(n.End.Row)+1, int(n.End.Column))
}

// Lines returns the 1-based first and last line of the node.
func (a *Arena) Lines(id NodeID) (int, int) {
	n := &a.nodes[id]
	begin, end := int(n.Start.Row)+1, int(n.End.Row)+1
	if n.End.Column == 0 && end > begin {
		end--
	}
	return begin, end
}

// TreeNode wraps id for the structural graph.
func (a *Arena) TreeNode(id NodeID) model.TreeNode {
	path := ""
	if f := a.File(id); f != nil {
		path = f.Path
	}
	return model.TreeNode{Node: int32(id), Path: path, Span: a.Span(id)}
}
