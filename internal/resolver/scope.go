package resolver

import (
	"regexp"
	"slices"
	"strings"

	"untangle/internal/syntax"
)

var javaLang = map[string]bool{
	"Object": true, "String": true, "Integer": true, "Long": true, "Short": true,
	"Byte": true, "Character": true, "Boolean": true, "Double": true, "Float": true,
	"Number": true, "Math": true, "System": true, "Thread": true, "Runnable": true,
	"Iterable": true, "Comparable": true, "CharSequence": true, "StringBuilder": true,
	"StringBuffer": true, "Class": true, "Enum": true, "Void": true, "Record": true,
	"Throwable": true, "Exception": true, "Error": true, "RuntimeException": true,
	"IllegalArgumentException": true, "IllegalStateException": true,
	"NullPointerException": true, "UnsupportedOperationException": true,
	"IndexOutOfBoundsException": true, "ClassCastException": true,
	"ArithmeticException": true, "InterruptedException": true,
	"CloneNotSupportedException": true, "AssertionError": true, "AutoCloseable": true,
	"Cloneable": true, "Override": true, "Deprecated": true, "SuppressWarnings": true,
	"FunctionalInterface": true, "SafeVarargs": true, "ThreadLocal": true,
	"Runtime": true, "Process": true,
}

var genericArgs = regexp.MustCompile(`<[^<>]*>`)

// stripGenerics removes type argument lists from a compact type spelling.
func stripGenerics(s string) string {
	for strings.Contains(s, "<") {
		next := genericArgs.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	return s
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// ResolveType resolves a type node in the scope where it appears.
func (p *Program) ResolveType(node syntax.NodeID) (Type, error) {
	a := p.arena
	switch a.Type(node) {
	case "integral_type", "floating_point_type", "boolean_type", "void_type":
		return Primitive(a.CompactText(node)), nil
	case "type_identifier":
		name := a.Text(node)
		if name == "var" {
			return Type{}, unsolved("inferred local type")
		}
		return p.resolveTypeName(name, node)
	case "scoped_type_identifier":
		return p.resolveScoped(stripGenerics(a.CompactText(node)), node)
	case "generic_type":
		base := a.ChildOfType(node, "type_identifier", "scoped_type_identifier")
		t, err := p.ResolveType(base)
		if err != nil {
			return Type{}, err
		}
		for _, arg := range a.NamedChildren(a.ChildOfType(node, "type_arguments")) {
			at, err := p.ResolveType(arg)
			if err != nil {
				at = External("java.lang.Object")
			}
			t.Args = append(t.Args, at)
		}
		return t, nil
	case "array_type":
		elem, err := p.ResolveType(a.Field(node, "element"))
		if err != nil {
			return Type{}, err
		}
		return ArrayOf(elem, dims(a, a.Field(node, "dimensions"))), nil
	case "annotated_type":
		for _, c := range a.NamedChildren(node) {
			if syntax.IsTypeNode(a.Type(c)) {
				return p.ResolveType(c)
			}
		}
	case "wildcard":
		for _, c := range a.NamedChildren(node) {
			if syntax.IsTypeNode(a.Type(c)) {
				return p.ResolveType(c)
			}
		}
		return External("java.lang.Object"), nil
	}
	return Type{}, unsolved("type node %q", a.Type(node))
}

func (p *Program) resolveScoped(name string, at syntax.NodeID) (Type, error) {
	if d := p.FindType(name); d != nil {
		return Ref(d), nil
	}
	first, rest := syntax.FirstSegment(name), strings.Split(name, ".")[1:]
	t, err := p.resolveTypeName(first, at)
	if err != nil {
		return External(name), nil
	}
	if t.Decl == nil {
		return External(t.Name + "." + strings.Join(rest, ".")), nil
	}
	d := t.Decl
	for _, seg := range rest {
		if d = p.memberType(d, seg, nil); d == nil {
			return External(name), nil
		}
	}
	return Ref(d), nil
}

// resolveTypeName resolves a simple type name used at node at. The search
// order is type variables and member types of the enclosing declarations,
// local classes, top-level types of the file, single-type imports, the
// file's package, on-demand imports and finally java.lang.
func (p *Program) resolveTypeName(name string, at syntax.NodeID) (Type, error) {
	a := p.arena
	for cur, n := at, a.Parent(at); n != syntax.NoNode; cur, n = n, a.Parent(n) {
		switch {
		case a.Is(n, syntax.TypeMethod, syntax.TypeCtor):
			if slices.Contains(typeParams(a, n), name) {
				return TypeVar(name), nil
			}
		case a.IsTypeDecl(n):
			d := p.decls[n]
			if d == nil {
				continue
			}
			if slices.Contains(d.TypeParams, name) {
				return TypeVar(name), nil
			}
			if d.Name == name {
				return Ref(d), nil
			}
			if m := p.memberType(d, name, nil); m != nil {
				return Ref(m), nil
			}
		}
		for _, c := range a.Children(n) {
			if c == cur {
				break
			}
			if a.IsTypeDecl(c) && a.Name(c) == name {
				if d := p.decls[c]; d != nil {
					return Ref(d), nil
				}
			}
		}
	}

	f := a.File(at)
	if f == nil {
		return Type{}, unsolved("type %s", name)
	}
	for _, c := range a.NamedChildren(f.Root) {
		if a.IsTypeDecl(c) && a.Name(c) == name {
			if d := p.decls[c]; d != nil {
				return Ref(d), nil
			}
		}
	}
	for _, imp := range f.Imports {
		if imp.Static || imp.Asterisk || imp.SimpleName() != name {
			continue
		}
		if d := p.FindType(imp.Name); d != nil {
			return Ref(d), nil
		}
		return External(imp.Name), nil
	}
	if d := p.FindType(qualify(f.Package, name)); d != nil {
		return Ref(d), nil
	}
	for _, imp := range f.Imports {
		if imp.Static || !imp.Asterisk {
			continue
		}
		if d := p.FindType(imp.Name + "." + name); d != nil {
			return Ref(d), nil
		}
	}
	if javaLang[name] {
		return External("java.lang." + name), nil
	}
	return Type{}, unsolved("type %s", name)
}

// memberType finds a member type of d or of one of its supertypes.
func (p *Program) memberType(d *TypeDecl, name string, seen map[*TypeDecl]bool) *TypeDecl {
	if seen == nil {
		seen = make(map[*TypeDecl]bool)
	}
	if seen[d] {
		return nil
	}
	seen[d] = true
	if m := d.Member(name); m != nil {
		return m
	}
	if d.resolving {
		return nil
	}
	for _, st := range p.Supertypes(d) {
		if st.Decl == nil {
			continue
		}
		if m := p.memberType(st.Decl, name, seen); m != nil {
			return m
		}
	}
	return nil
}

// LookupValue resolves a simple name used as an expression to the local
// variable, parameter, field or type it denotes.
func (p *Program) LookupValue(ident syntax.NodeID) (*ValueDecl, error) {
	p.stats.Lookups++
	a := p.arena
	name := a.Text(ident)
	pos := a.Node(ident).StartByte

	for cur, n := ident, a.Parent(ident); n != syntax.NoNode; cur, n = n, a.Parent(n) {
		switch a.Type(n) {
		case "lambda_expression":
			if v := p.lambdaParam(n, name); v != nil {
				return v, nil
			}
		case syntax.TypeMethod, syntax.TypeCtor, syntax.TypeCompactCtor:
			if v := p.patternVar(n, name, pos); v != nil {
				return v, nil
			}
			if md := p.methods[n]; md != nil {
				for _, pr := range md.Params {
					if pr.Name == name {
						return &ValueDecl{Kind: ValueParam, NameNode: pr.NameNode, Declarator: pr.Node, TypeNode: pr.TypeNode, Dims: pr.Dims}, nil
					}
				}
			}
		case "catch_clause":
			cp := a.ChildOfType(n, "catch_formal_parameter")
			if a.Text(a.Field(cp, "name")) == name {
				typ := syntax.NoNode
				if types := a.NamedChildren(a.ChildOfType(cp, "catch_type")); len(types) > 0 {
					typ = types[0]
				}
				return &ValueDecl{Kind: ValueLocal, NameNode: a.Field(cp, "name"), Declarator: cp, TypeNode: typ}, nil
			}
		case "enhanced_for_statement":
			if cur == a.Field(n, "body") && a.Text(a.Field(n, "name")) == name {
				return &ValueDecl{Kind: ValueLocal, NameNode: a.Field(n, "name"), Declarator: n, TypeNode: a.Field(n, "type"), Dims: dims(a, a.Field(n, "dimensions"))}, nil
			}
		case "try_with_resources_statement":
			for _, r := range a.NamedChildren(a.Field(n, "resources")) {
				if a.Node(r).StartByte < pos && a.Text(a.Field(r, "name")) == name {
					return &ValueDecl{Kind: ValueLocal, NameNode: a.Field(r, "name"), Declarator: r, TypeNode: a.Field(r, "type")}, nil
				}
			}
		}

		var found *ValueDecl
		for _, c := range a.Children(n) {
			if c == cur {
				break
			}
			if !a.Is(c, "local_variable_declaration") {
				continue
			}
			for _, v := range a.Declarators(c) {
				if a.Text(a.Field(v, "name")) == name {
					found = &ValueDecl{Kind: ValueLocal, NameNode: a.Field(v, "name"), Declarator: v, TypeNode: a.Field(c, "type"), Dims: dims(a, a.Field(v, "dimensions"))}
				}
			}
		}
		if found != nil {
			return found, nil
		}

		if d := p.decls[n]; d != nil {
			if fd, _ := p.findField(d, name, nil, nil); fd != nil {
				return fieldValue(fd), nil
			}
		}
	}

	if f := a.File(ident); f != nil {
		for _, imp := range f.Imports {
			if !imp.Static {
				continue
			}
			owner := imp.Name
			if !imp.Asterisk {
				if imp.SimpleName() != name {
					continue
				}
				owner = strings.TrimSuffix(imp.Name, "."+name)
			}
			if d := p.FindType(owner); d != nil {
				if fd, _ := p.findField(d, name, nil, nil); fd != nil && fd.Mods.Static {
					return fieldValue(fd), nil
				}
			}
		}
	}

	if t, err := p.resolveTypeName(name, ident); err == nil && t.Decl != nil {
		return &ValueDecl{Kind: ValueType, NameNode: a.Field(t.Decl.Node, "name"), Declarator: t.Decl.Node, TypeNode: syntax.NoNode, Type: t.Decl}, nil
	}
	p.stats.Unsolved++
	return nil, unsolved("symbol %s", name)
}

func fieldValue(fd *FieldDecl) *ValueDecl {
	return &ValueDecl{Kind: ValueField, NameNode: fd.NameNode, Declarator: fd.Declarator, TypeNode: fd.TypeNode, Dims: fd.Dims, Field: fd}
}

func (p *Program) lambdaParam(lambda syntax.NodeID, name string) *ValueDecl {
	a := p.arena
	params := a.Field(lambda, "parameters")
	if a.Is(params, "identifier") {
		if a.Text(params) == name {
			return &ValueDecl{Kind: ValueParam, NameNode: params, Declarator: params, TypeNode: syntax.NoNode}
		}
		return nil
	}
	for _, c := range a.NamedChildren(params) {
		switch a.Type(c) {
		case "identifier":
			if a.Text(c) == name {
				return &ValueDecl{Kind: ValueParam, NameNode: c, Declarator: c, TypeNode: syntax.NoNode}
			}
		case "formal_parameter", "spread_parameter":
			if n := a.ParamName(c); a.Text(n) == name {
				return &ValueDecl{Kind: ValueParam, NameNode: n, Declarator: c, TypeNode: a.ParamType(c)}
			}
		}
	}
	return nil
}

// patternVar finds an instanceof pattern binding declared before pos in the
// callable.
func (p *Program) patternVar(callable syntax.NodeID, name string, pos uint32) *ValueDecl {
	a := p.arena
	var found *ValueDecl
	var walk func(id syntax.NodeID)
	walk = func(id syntax.NodeID) {
		if found != nil || a.Node(id).StartByte >= pos {
			return
		}
		if a.Is(id, "instanceof_expression") {
			if n := a.Field(id, "name"); n != syntax.NoNode && a.Text(n) == name {
				found = &ValueDecl{Kind: ValueLocal, NameNode: n, Declarator: id, TypeNode: a.Field(id, "right")}
				return
			}
		}
		for _, c := range a.NamedChildren(id) {
			walk(c)
		}
	}
	walk(a.Field(callable, "body"))
	return found
}

// findField looks name up in d and its supertypes. The returned bindings
// map the type variables of the declaring type.
func (p *Program) findField(d *TypeDecl, name string, bindings map[string]Type, seen map[*TypeDecl]bool) (*FieldDecl, map[string]Type) {
	if seen == nil {
		seen = make(map[*TypeDecl]bool)
	}
	if seen[d] {
		return nil, nil
	}
	seen[d] = true
	if fd := d.FieldNamed(name); fd != nil {
		return fd, bindings
	}
	for _, st := range p.Supertypes(d) {
		st = Substitute(st, bindings)
		if st.Decl == nil {
			continue
		}
		if fd, b := p.findField(st.Decl, name, st.Bindings(), seen); fd != nil {
			return fd, b
		}
	}
	return nil, nil
}

// ValueType returns the declared type of a resolved name.
func (p *Program) ValueType(v *ValueDecl) (Type, error) {
	a := p.arena
	switch {
	case v.Kind == ValueType:
		return Ref(v.Type), nil
	case v.Field != nil && v.Field.EnumConstant:
		return Ref(v.Field.Owner), nil
	case v.TypeNode == syntax.NoNode:
		return Type{}, unsolved("untyped declaration %s", a.Text(v.NameNode))
	case a.Text(v.TypeNode) == "var":
		if a.Is(v.Declarator, "variable_declarator") {
			return p.TypeOf(a.Field(v.Declarator, "value"))
		}
		return Type{}, unsolved("inferred local type")
	}
	t, err := p.ResolveType(v.TypeNode)
	if err != nil {
		return Type{}, err
	}
	return ArrayOf(t, v.Dims), nil
}
