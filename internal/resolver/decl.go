package resolver

import (
	"strings"

	"untangle/internal/syntax"
)

// TypeKind is the declaration form of a TypeDecl.
type TypeKind int

const (
	KindClass TypeKind = iota + 1
	KindInterface
	KindEnum
	KindRecord
	KindAnnotation
)

func (k TypeKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	case KindRecord:
		return "record"
	case KindAnnotation:
		return "annotation"
	default:
		return "unknown"
	}
}

func typeKindOf(nodeType string) TypeKind {
	switch nodeType {
	case syntax.TypeClass:
		return KindClass
	case syntax.TypeInterface:
		return KindInterface
	case syntax.TypeEnum:
		return KindEnum
	case syntax.TypeRecord:
		return KindRecord
	case syntax.TypeAnnotation:
		return KindAnnotation
	}
	return 0
}

// TypeDecl is a class, interface, enum, record or annotation type declared
// in a loaded file.
type TypeDecl struct {
	Node       syntax.NodeID
	Kind       TypeKind
	Name       string
	Qualified  string
	Package    string
	File       *syntax.File
	Outer      *TypeDecl
	Local      bool
	TypeParams []string
	Mods       syntax.Modifiers
	Fields     []*FieldDecl
	Methods    []*MethodDecl
	Ctors      []*MethodDecl
	Members    []*TypeDecl

	extendNodes    []syntax.NodeID
	implementNodes []syntax.NodeID
	extends        []Type
	implements     []Type
	supersDone     bool
	resolving      bool
}

// MethodsNamed returns the declared methods called name, in source order.
func (d *TypeDecl) MethodsNamed(name string) []*MethodDecl {
	var out []*MethodDecl
	for _, m := range d.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// MethodBySignature returns the declared method with the given signature.
func (d *TypeDecl) MethodBySignature(sig string) *MethodDecl {
	for _, m := range d.Methods {
		if m.Signature == sig {
			return m
		}
	}
	return nil
}

// FieldNamed returns the declared field or enum constant called name.
func (d *TypeDecl) FieldNamed(name string) *FieldDecl {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Member returns the member type called name.
func (d *TypeDecl) Member(name string) *TypeDecl {
	for _, m := range d.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (d *TypeDecl) String() string { return d.Qualified }

// MethodDecl is a method or constructor.
type MethodDecl struct {
	Node       syntax.NodeID
	Name       string
	Owner      *TypeDecl
	Params     []Param
	Result     syntax.NodeID
	TypeParams []string
	Mods       syntax.Modifiers
	Ctor       bool
	Varargs    bool
	Signature  string
}

// Param is one formal parameter.
type Param struct {
	Node     syntax.NodeID
	NameNode syntax.NodeID
	TypeNode syntax.NodeID
	Name     string
	Dims     int
}

// FieldDecl is one declarator of a field, a record component or an enum
// constant. Declarator is the variable_declarator, formal_parameter or
// enum_constant node.
type FieldDecl struct {
	Node         syntax.NodeID
	Declarator   syntax.NodeID
	NameNode     syntax.NodeID
	TypeNode     syntax.NodeID
	Name         string
	Dims         int
	Owner        *TypeDecl
	Mods         syntax.Modifiers
	EnumConstant bool
}

// ValueKind classifies what a simple name denotes.
type ValueKind int

const (
	ValueLocal ValueKind = iota + 1
	ValueParam
	ValueField
	ValueType
)

// ValueDecl is the declaration a name resolves to. NameNode is the
// identifier in the declaration.
type ValueDecl struct {
	Kind       ValueKind
	NameNode   syntax.NodeID
	Declarator syntax.NodeID
	TypeNode   syntax.NodeID
	Dims       int
	Field      *FieldDecl
	Type       *TypeDecl
}

func (p *Program) index(f *syntax.File) {
	var walk func(id syntax.NodeID, outer *TypeDecl)
	walk = func(id syntax.NodeID, outer *TypeDecl) {
		switch {
		case p.arena.IsTypeDecl(id):
			outer = p.declare(f, id, outer)
		case outer != nil && p.arena.Is(id, syntax.TypeMethod, syntax.TypeCtor) && p.methods[id] == nil:
			// Enum constant and anonymous class bodies. The method is owned by
			// the enclosing type but is not one of its members.
			p.method(id, outer)
		}
		for _, c := range p.arena.NamedChildren(id) {
			walk(c, outer)
		}
	}
	walk(f.Root, nil)
}

func (p *Program) declare(f *syntax.File, id syntax.NodeID, outer *TypeDecl) *TypeDecl {
	a := p.arena
	d := &TypeDecl{
		Node:    id,
		Kind:    typeKindOf(a.Type(id)),
		Name:    a.Name(id),
		Package: f.Package,
		File:    f,
		Outer:   outer,
		Mods:    a.Modifiers(id),
	}
	d.Local = outer != nil && !a.Is(a.Parent(id), "class_body", "interface_body", "enum_body_declarations", "annotation_type_body")
	switch {
	case outer != nil:
		d.Qualified = outer.Qualified + "." + d.Name
	case f.Package != "":
		d.Qualified = f.Package + "." + d.Name
	default:
		d.Qualified = d.Name
	}
	d.TypeParams = typeParams(a, id)
	d.extendNodes, d.implementNodes = a.SuperTypes(id)

	iface := d.Kind == KindInterface || d.Kind == KindAnnotation
	if d.Kind == KindRecord {
		for _, param := range a.Parameters(id) {
			p.addField(d, &FieldDecl{
				Node:       param,
				Declarator: param,
				NameNode:   a.ParamName(param),
				TypeNode:   a.ParamType(param),
				Owner:      d,
				Mods:       syntax.Modifiers{Private: true, Final: true},
			})
		}
	}
	for _, c := range a.EnumConstants(id) {
		p.addField(d, &FieldDecl{
			Node:         c,
			Declarator:   c,
			NameNode:     a.Field(c, "name"),
			TypeNode:     syntax.NoNode,
			Owner:        d,
			Mods:         syntax.Modifiers{Public: true, Static: true, Final: true},
			EnumConstant: true,
		})
	}
	for _, m := range a.Members(id) {
		switch a.Type(m) {
		case syntax.TypeField, syntax.TypeConstant:
			mods := a.Modifiers(m)
			if iface {
				mods.Public, mods.Static, mods.Final = true, true, true
			}
			for _, v := range a.Declarators(m) {
				p.addField(d, &FieldDecl{
					Node:       m,
					Declarator: v,
					NameNode:   a.Field(v, "name"),
					TypeNode:   a.Field(m, "type"),
					Dims:       dims(a, a.Field(v, "dimensions")),
					Owner:      d,
					Mods:       mods,
				})
			}
		case syntax.TypeMethod, syntax.TypeCtor, syntax.TypeCompactCtor:
			md := p.method(m, d)
			if iface && !md.Mods.Private {
				md.Mods.Public = true
			}
			if md.Ctor {
				d.Ctors = append(d.Ctors, md)
			} else {
				d.Methods = append(d.Methods, md)
			}
		}
	}
	p.decls[id] = d
	if outer != nil && !d.Local {
		outer.Members = append(outer.Members, d)
	}
	if !d.Local {
		if _, ok := p.types[d.Qualified]; !ok {
			p.types[d.Qualified] = d
		}
	}
	return d
}

func (p *Program) addField(d *TypeDecl, fd *FieldDecl) {
	fd.Name = p.arena.Text(fd.NameNode)
	d.Fields = append(d.Fields, fd)
	p.fields[fd.Declarator] = fd
}

func (p *Program) method(id syntax.NodeID, owner *TypeDecl) *MethodDecl {
	a := p.arena
	md := &MethodDecl{
		Node:       id,
		Name:       a.Name(id),
		Owner:      owner,
		Result:     a.Field(id, "type"),
		TypeParams: typeParams(a, id),
		Mods:       a.Modifiers(id),
		Ctor:       !a.Is(id, syntax.TypeMethod),
	}
	var sig []string
	for _, param := range a.Parameters(id) {
		pr := Param{
			Node:     param,
			NameNode: a.ParamName(param),
			TypeNode: a.ParamType(param),
		}
		pr.Name = a.Text(pr.NameNode)
		spelled := a.CompactText(pr.TypeNode)
		if a.Is(param, "spread_parameter") {
			md.Varargs = true
			pr.Dims = 1
			spelled += "[]"
		}
		pr.Dims += dims(a, a.Field(param, "dimensions"))
		md.Params = append(md.Params, pr)
		sig = append(sig, spelled)
	}
	md.Signature = md.Name + "(" + strings.Join(sig, ",") + ")"
	p.methods[id] = md
	return md
}

func typeParams(a *syntax.Arena, id syntax.NodeID) []string {
	var out []string
	for _, tp := range a.ChildrenOfType(a.ChildOfType(id, "type_parameters"), "type_parameter") {
		out = append(out, a.Text(a.ChildOfType(tp, "type_identifier", "identifier")))
	}
	return out
}

func dims(a *syntax.Arena, id syntax.NodeID) int {
	return strings.Count(a.Text(id), "[")
}
