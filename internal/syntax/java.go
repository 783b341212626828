package syntax

import "strings"

// Node types shared by the resolver and the graph builder.
const (
	TypeClass       = "class_declaration"
	TypeInterface   = "interface_declaration"
	TypeEnum        = "enum_declaration"
	TypeRecord      = "record_declaration"
	TypeAnnotation  = "annotation_type_declaration"
	TypeMethod      = "method_declaration"
	TypeCtor        = "constructor_declaration"
	TypeCompactCtor = "compact_constructor_declaration"
	TypeField       = "field_declaration"
	TypeConstant    = "constant_declaration"
	TypeEnumConst   = "enum_constant"
)

var typeDeclTypes = []string{TypeClass, TypeInterface, TypeEnum, TypeRecord, TypeAnnotation}

// IsTypeDecl reports whether id declares a class, interface, enum, record or
// annotation type.
func (a *Arena) IsTypeDecl(id NodeID) bool {
	return a.Is(id, typeDeclTypes...)
}

// EnclosingType returns the nearest type declaration around id.
func (a *Arena) EnclosingType(id NodeID) NodeID {
	return a.Ancestor(id, typeDeclTypes...)
}

// Modifiers is the decoded modifier list of a declaration.
type Modifiers struct {
	Public      bool
	Protected   bool
	Private     bool
	Static      bool
	Final       bool
	Abstract    bool
	Default     bool
	Annotations []NodeID
}

func (a *Arena) Modifiers(decl NodeID) Modifiers {
	var m Modifiers
	mods := a.ChildOfType(decl, "modifiers")
	if mods == NoNode {
		return m
	}
	for _, c := range a.Children(mods) {
		switch a.Type(c) {
		case "public":
			m.Public = true
		case "protected":
			m.Protected = true
		case "private":
			m.Private = true
		case "static":
			m.Static = true
		case "final":
			m.Final = true
		case "abstract":
			m.Abstract = true
		case "default":
			m.Default = true
		case "marker_annotation", "annotation":
			m.Annotations = append(m.Annotations, c)
		}
	}
	return m
}

// AnnotationName returns the simple name of an annotation node.
func (a *Arena) AnnotationName(ann NodeID) string {
	return LastSegment(a.Text(a.Field(ann, "name")))
}

// HasAnnotation reports whether decl carries an annotation with the given
// simple name.
func (a *Arena) HasAnnotation(decl NodeID, name string) bool {
	for _, ann := range a.Modifiers(decl).Annotations {
		if a.AnnotationName(ann) == name {
			return true
		}
	}
	return false
}

// Name returns the text of the "name" field of a declaration.
func (a *Arena) Name(decl NodeID) string {
	return a.Text(a.Field(decl, "name"))
}

// Body returns the body of a type declaration, enum constant or object
// creation expression.
func (a *Arena) Body(decl NodeID) NodeID {
	if b := a.Field(decl, "body"); b != NoNode {
		return b
	}
	return a.ChildOfType(decl, "class_body")
}

// Members returns the member declarations of a type body. Enum bodies keep
// their members in a nested enum_body_declarations node.
func (a *Arena) Members(decl NodeID) []NodeID {
	body := a.Body(decl)
	var out []NodeID
	for _, c := range a.NamedChildren(body) {
		if a.Is(c, "enum_body_declarations") {
			out = append(out, a.NamedChildren(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// EnumConstants returns the constants of an enum declaration.
func (a *Arena) EnumConstants(decl NodeID) []NodeID {
	return a.ChildrenOfType(a.Body(decl), TypeEnumConst)
}

// Declarators returns the variable_declarator children of a field, constant
// or local variable declaration.
func (a *Arena) Declarators(decl NodeID) []NodeID {
	return a.Fields(decl, "declarator")
}

// SuperTypes returns the type nodes named in extends and implements clauses.
// For interfaces the extended interfaces are reported as extends.
func (a *Arena) SuperTypes(decl NodeID) (extends, implements []NodeID) {
	if sc := a.Field(decl, "superclass"); sc != NoNode {
		extends = append(extends, a.NamedChildren(sc)...)
	}
	if ei := a.ChildOfType(decl, "extends_interfaces"); ei != NoNode {
		extends = append(extends, a.typeList(ei)...)
	}
	if si := a.Field(decl, "interfaces"); si != NoNode {
		implements = append(implements, a.typeList(si)...)
	} else if si := a.ChildOfType(decl, "super_interfaces"); si != NoNode {
		implements = append(implements, a.typeList(si)...)
	}
	return extends, implements
}

func (a *Arena) typeList(clause NodeID) []NodeID {
	list := a.ChildOfType(clause, "type_list")
	if list == NoNode {
		return a.NamedChildren(clause)
	}
	return a.NamedChildren(list)
}

// Parameters returns the formal and spread parameters of a callable.
func (a *Arena) Parameters(callable NodeID) []NodeID {
	params := a.Field(callable, "parameters")
	return a.ChildrenOfType(params, "formal_parameter", "spread_parameter")
}

// ParamName returns the identifier naming a parameter.
func (a *Arena) ParamName(param NodeID) NodeID {
	if a.Is(param, "spread_parameter") {
		return a.Field(a.ChildOfType(param, "variable_declarator"), "name")
	}
	return a.Field(param, "name")
}

// ParamType returns the declared type node of a parameter.
func (a *Arena) ParamType(param NodeID) NodeID {
	if t := a.Field(param, "type"); t != NoNode {
		return t
	}
	for _, c := range a.NamedChildren(param) {
		if IsTypeNode(a.Type(c)) {
			return c
		}
	}
	return NoNode
}

// Statements returns the statements of a block or constructor body.
func (a *Arena) Statements(body NodeID) []NodeID {
	return a.NamedChildren(body)
}

// IsTypeNode reports whether nodeType is one of the tree-sitter type forms.
func IsTypeNode(nodeType string) bool {
	switch nodeType {
	case "type_identifier", "scoped_type_identifier", "generic_type", "array_type",
		"integral_type", "floating_point_type", "boolean_type", "void_type":
		return true
	}
	return false
}

// IsPrimitiveType reports whether nodeType names a primitive or void.
func IsPrimitiveType(nodeType string) bool {
	switch nodeType {
	case "integral_type", "floating_point_type", "boolean_type", "void_type":
		return true
	}
	return false
}

// LastSegment returns the part of a dotted name after the last dot.
func LastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// FirstSegment returns the part of a dotted name before the first dot.
func FirstSegment(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// CompactText returns the node text with all whitespace removed.
func (a *Arena) CompactText(id NodeID) string {
	return strings.Join(strings.Fields(a.Text(id)), "")
}
