package analysis

import "untangle/internal/syntax"

// isNameUse reports whether an identifier is used as a simple name
// expression, as opposed to naming a declaration, a member after a dot, a
// label or part of a qualified package or import name.
func isNameUse(a *syntax.Arena, id syntax.NodeID) bool {
	if !a.Is(id, "identifier") {
		return false
	}
	n := a.Node(id)
	parent := n.Parent
	switch n.Field {
	case "name", "key":
		return false
	case "field":
		if a.Is(parent, "field_access") {
			return false
		}
	case "parameters":
		return false
	}
	switch a.Type(parent) {
	case "scoped_identifier", "scoped_type_identifier", "import_declaration", "package_declaration",
		"labeled_statement", "break_statement", "continue_statement", "inferred_parameters",
		"marker_annotation", "annotation":
		return false
	case "method_reference":
		named := a.NamedChildren(parent)
		return len(named) > 0 && named[0] == id
	}
	return true
}

// unparen strips enclosing parentheses from an expression.
func unparen(a *syntax.Arena, id syntax.NodeID) syntax.NodeID {
	for a.Is(id, "parenthesized_expression") {
		inner := a.NamedChildren(id)
		if len(inner) == 0 {
			break
		}
		id = inner[0]
	}
	return id
}

// baseTypeNode strips array dimensions and annotations from a type node.
func baseTypeNode(a *syntax.Arena, id syntax.NodeID) syntax.NodeID {
	for {
		switch a.Type(id) {
		case "array_type":
			id = a.Field(id, "element")
		case "annotated_type":
			next := syntax.NoNode
			for _, c := range a.NamedChildren(id) {
				if syntax.IsTypeNode(a.Type(c)) {
					next = c
				}
			}
			if next == syntax.NoNode {
				return id
			}
			id = next
		default:
			return id
		}
	}
}
