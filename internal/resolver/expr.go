package resolver

import (
	"strings"

	"untangle/internal/syntax"
)

// Bound is a method seen through a parameterized receiver type.
type Bound struct {
	Method   *MethodDecl
	Bindings map[string]Type
}

// TypeOf computes the static type of an expression.
func (p *Program) TypeOf(expr syntax.NodeID) (Type, error) {
	a := p.arena
	switch a.Type(expr) {
	case "parenthesized_expression":
		if inner := a.NamedChildren(expr); len(inner) > 0 {
			return p.TypeOf(inner[0])
		}
	case "identifier":
		v, err := p.LookupValue(expr)
		if err != nil {
			return Type{}, err
		}
		return p.ValueType(v)
	case "this":
		if d := p.EnclosingDecl(expr); d != nil {
			return p.SelfType(d), nil
		}
	case "super":
		if d := p.EnclosingDecl(expr); d != nil {
			if ext := p.Extends(d); len(ext) > 0 {
				return ext[0], nil
			}
			return External("java.lang.Object"), nil
		}
	case "field_access":
		object, name := a.Field(expr, "object"), a.Text(a.Field(expr, "field"))
		t, err := p.TypeOf(object)
		if err != nil {
			if d := p.FindType(a.CompactText(expr)); d != nil {
				return Ref(d), nil
			}
			return Type{}, err
		}
		return p.FieldType(t, name)
	case "method_invocation":
		b, err := p.ResolveCall(expr)
		if err != nil {
			return Type{}, err
		}
		return p.ReturnType(b)
	case "object_creation_expression":
		return p.ResolveType(a.Field(expr, "type"))
	case "array_creation_expression":
		elem, err := p.ResolveType(a.Field(expr, "type"))
		if err != nil {
			return Type{}, err
		}
		n := 0
		for _, c := range a.Children(expr) {
			if a.Is(c, "dimensions_expr") {
				n++
			} else if a.Is(c, "dimensions") {
				n += dims(a, c)
			}
		}
		return ArrayOf(elem, n), nil
	case "array_access":
		t, err := p.TypeOf(a.Field(expr, "array"))
		if err != nil {
			return Type{}, err
		}
		if !t.IsArray() || t.Elem == nil {
			return Type{}, unsolved("indexing non-array %s", t)
		}
		return *t.Elem, nil
	case "cast_expression":
		return p.ResolveType(a.Field(expr, "type"))
	case "string_literal", "text_block":
		return stringType, nil
	case "character_literal":
		return Primitive("char"), nil
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		if strings.HasSuffix(strings.ToLower(a.Text(expr)), "l") {
			return Primitive("long"), nil
		}
		return Primitive("int"), nil
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		if strings.HasSuffix(strings.ToLower(a.Text(expr)), "f") {
			return Primitive("float"), nil
		}
		return Primitive("double"), nil
	case "true", "false", "instanceof_expression":
		return Primitive("boolean"), nil
	case "null_literal":
		return Null(), nil
	case "class_literal":
		return External("java.lang.Class"), nil
	case "assignment_expression":
		return p.TypeOf(a.Field(expr, "left"))
	case "update_expression":
		if operand := a.NamedChildren(expr); len(operand) > 0 {
			return p.TypeOf(operand[0])
		}
	case "unary_expression":
		if a.Text(a.Field(expr, "operator")) == "!" {
			return Primitive("boolean"), nil
		}
		return p.TypeOf(a.Field(expr, "operand"))
	case "ternary_expression":
		t, err := p.TypeOf(a.Field(expr, "consequence"))
		if err != nil || t.Kind == KindNull {
			return p.TypeOf(a.Field(expr, "alternative"))
		}
		return t, nil
	case "binary_expression":
		return p.binaryType(expr)
	}
	return Type{}, unsolved("expression %q", a.Type(expr))
}

func (p *Program) binaryType(expr syntax.NodeID) (Type, error) {
	a := p.arena
	switch a.Text(a.Field(expr, "operator")) {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return Primitive("boolean"), nil
	}
	left, lerr := p.TypeOf(a.Field(expr, "left"))
	right, rerr := p.TypeOf(a.Field(expr, "right"))
	if (lerr == nil && left.Name == stringType.Name) || (rerr == nil && right.Name == stringType.Name) {
		return stringType, nil
	}
	if lerr != nil {
		return Type{}, lerr
	}
	if rerr != nil {
		return left, nil
	}
	return promote(unbox(left), unbox(right)), nil
}

func unbox(t Type) Type {
	if t.Kind != KindRef {
		return t
	}
	for prim, box := range boxes {
		if box == t.Name {
			return Primitive(prim)
		}
	}
	return t
}

// ResolveField resolves a field access to the field it reads.
func (p *Program) ResolveField(access syntax.NodeID) (*ValueDecl, error) {
	p.stats.Lookups++
	a := p.arena
	object, name := a.Field(access, "object"), a.Text(a.Field(access, "field"))
	t, err := p.receiverType(object)
	if err != nil {
		p.stats.Unsolved++
		return nil, err
	}
	if t.Decl != nil {
		if fd, _ := p.findField(t.Decl, name, nil, nil); fd != nil {
			return fieldValue(fd), nil
		}
	}
	p.stats.Unsolved++
	return nil, unsolved("field %s of %s", name, t)
}

// FieldType returns the type of field name read through a receiver of type
// t, with the receiver's type arguments substituted.
func (p *Program) FieldType(t Type, name string) (Type, error) {
	if t.IsArray() && name == "length" {
		return Primitive("int"), nil
	}
	if t.Kind != KindRef || t.Decl == nil {
		return Type{}, unsolved("field %s of %s", name, t)
	}
	fd, bindings := p.findField(t.Decl, name, t.Bindings(), nil)
	if fd == nil {
		return Type{}, unsolved("field %s of %s", name, t)
	}
	ft, err := p.ValueType(fieldValue(fd))
	if err != nil {
		return Type{}, err
	}
	return Substitute(ft, bindings), nil
}

// receiverType types the object of a member access. Names that are not
// values fall back to qualified type names.
func (p *Program) receiverType(object syntax.NodeID) (Type, error) {
	a := p.arena
	if a.Is(object, "this") || a.Is(object, "super") {
		return p.TypeOf(object)
	}
	t, err := p.TypeOf(object)
	if err == nil {
		return t, nil
	}
	if a.Is(object, "identifier", "field_access", "scoped_identifier") {
		if d := p.FindType(a.CompactText(object)); d != nil {
			return Ref(d), nil
		}
	}
	return Type{}, err
}

// VisibleMethods lists the methods callable on t: every method declared by
// t itself and the non-private methods of its supertypes, overridden
// signatures reported once.
func (p *Program) VisibleMethods(t Type) []Bound {
	if t.Kind != KindRef || t.Decl == nil {
		return nil
	}
	var out []Bound
	sigs := make(map[string]bool)
	seen := make(map[*TypeDecl]bool)
	var collect func(d *TypeDecl, bindings map[string]Type, own bool)
	collect = func(d *TypeDecl, bindings map[string]Type, own bool) {
		if seen[d] {
			return
		}
		seen[d] = true
		for _, m := range d.Methods {
			if (!own && m.Mods.Private) || sigs[m.Signature] {
				continue
			}
			sigs[m.Signature] = true
			out = append(out, Bound{Method: m, Bindings: bindings})
		}
		for _, st := range p.Supertypes(d) {
			st = Substitute(st, bindings)
			if st.Decl != nil {
				collect(st.Decl, st.Bindings(), false)
			}
		}
	}
	collect(t.Decl, t.Bindings(), true)
	return out
}

// Accepts reports whether m can take argc arguments.
func Accepts(m *MethodDecl, argc int) bool {
	if m.Varargs {
		return argc >= len(m.Params)-1
	}
	return argc == len(m.Params)
}

// ParamType returns the type expected for argument i of a bound method.
func (p *Program) ParamType(b Bound, i int) (Type, error) {
	params := b.Method.Params
	if len(params) == 0 {
		return Type{}, unsolved("argument %d of %s", i, b.Method.Signature)
	}
	last := len(params) - 1
	if i > last {
		if !b.Method.Varargs {
			return Type{}, unsolved("argument %d of %s", i, b.Method.Signature)
		}
		i = last
	}
	pr := params[i]
	t, err := p.ResolveType(pr.TypeNode)
	if err != nil {
		return Type{}, err
	}
	if !(b.Method.Varargs && i == last) {
		t = ArrayOf(t, pr.Dims)
	}
	return Substitute(t, b.Bindings), nil
}

// ReturnType returns the declared result of a bound method with the
// receiver's type arguments substituted.
func (p *Program) ReturnType(b Bound) (Type, error) {
	if b.Method.Result == syntax.NoNode {
		return Type{}, unsolved("constructor %s has no result", b.Method.Signature)
	}
	t, err := p.ResolveType(b.Method.Result)
	if err != nil {
		return Type{}, err
	}
	return Substitute(t, b.Bindings), nil
}

// ResolveCall resolves a method invocation to its most specific applicable
// declaration.
func (p *Program) ResolveCall(call syntax.NodeID) (Bound, error) {
	p.stats.Lookups++
	a := p.arena
	name := a.Text(a.Field(call, "name"))
	args := a.NamedChildren(a.Field(call, "arguments"))
	object := a.Field(call, "object")

	var candidates []Bound
	if object == syntax.NoNode {
		for d := p.EnclosingDecl(call); d != nil && len(candidates) == 0; d = p.EnclosingDecl(d.Node) {
			candidates = named(p.VisibleMethods(p.SelfType(d)), name)
		}
		if len(candidates) == 0 {
			candidates = p.staticImports(call, name)
		}
	} else {
		t, err := p.receiverType(object)
		if err != nil {
			p.stats.Unsolved++
			return Bound{}, err
		}
		candidates = named(p.VisibleMethods(t), name)
	}
	if b, ok := p.selectMethod(candidates, args); ok {
		return b, nil
	}
	p.stats.Unsolved++
	return Bound{}, unsolved("method %s/%d", name, len(args))
}

func named(methods []Bound, name string) []Bound {
	var out []Bound
	for _, b := range methods {
		if b.Method.Name == name {
			out = append(out, b)
		}
	}
	return out
}

func (p *Program) staticImports(at syntax.NodeID, name string) []Bound {
	f := p.arena.File(at)
	if f == nil {
		return nil
	}
	var out []Bound
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
		d := p.FindType(owner)
		if d == nil {
			continue
		}
		for _, m := range d.MethodsNamed(name) {
			if m.Mods.Static {
				out = append(out, Bound{Method: m})
			}
		}
	}
	return out
}

// selectMethod picks the most specific candidate whose arity and argument
// types match. Arguments of unknown type match anything. Without a full
// match the first candidate of the right arity wins.
func (p *Program) selectMethod(candidates []Bound, args []syntax.NodeID) (Bound, bool) {
	argTypes := make([]*Type, len(args))
	for i, arg := range args {
		if t, err := p.TypeOf(arg); err == nil {
			argTypes[i] = &t
		}
	}
	var fallback, best *Bound
	for i := range candidates {
		b := &candidates[i]
		if !Accepts(b.Method, len(args)) {
			continue
		}
		if fallback == nil {
			fallback = b
		}
		if !p.applicable(*b, argTypes) {
			continue
		}
		if best == nil || p.moreSpecific(*b, *best, len(args)) {
			best = b
		}
	}
	switch {
	case best != nil:
		return *best, true
	case fallback != nil:
		return *fallback, true
	}
	return Bound{}, false
}

func (p *Program) applicable(b Bound, argTypes []*Type) bool {
	for i, at := range argTypes {
		if at == nil {
			continue
		}
		pt, err := p.ParamType(b, i)
		if err != nil {
			continue
		}
		if !p.Assignable(pt, *at) {
			return false
		}
	}
	return true
}

// moreSpecific reports whether every parameter of x accepts only what the
// matching parameter of y accepts, and x differs from y somewhere.
func (p *Program) moreSpecific(x, y Bound, argc int) bool {
	differs := false
	for i := 0; i < argc; i++ {
		xt, xerr := p.ParamType(x, i)
		yt, yerr := p.ParamType(y, i)
		if xerr != nil || yerr != nil {
			return false
		}
		if !p.Assignable(yt, xt) {
			return false
		}
		if xt.Describe() != yt.Describe() {
			differs = true
		}
	}
	return differs
}

// ResolveMethodRef resolves Type::method and expr::method to the first
// visible method with that name.
func (p *Program) ResolveMethodRef(ref syntax.NodeID) (Bound, error) {
	p.stats.Lookups++
	a := p.arena
	parts := a.NamedChildren(ref)
	if len(parts) < 2 {
		p.stats.Unsolved++
		return Bound{}, unsolved("method reference")
	}
	recv, name := parts[0], a.Text(parts[len(parts)-1])
	var t Type
	var err error
	if syntax.IsTypeNode(a.Type(recv)) {
		t, err = p.ResolveType(recv)
	} else {
		t, err = p.receiverType(recv)
	}
	if err != nil {
		p.stats.Unsolved++
		return Bound{}, err
	}
	for _, b := range p.VisibleMethods(t) {
		if b.Method.Name == name {
			return b, nil
		}
	}
	p.stats.Unsolved++
	return Bound{}, unsolved("method reference %s::%s", t, name)
}

var finalLibraryTypes = map[string]bool{
	"java.lang.String":    true,
	"java.lang.Boolean":   true,
	"java.lang.Byte":      true,
	"java.lang.Short":     true,
	"java.lang.Character": true,
	"java.lang.Integer":   true,
	"java.lang.Long":      true,
	"java.lang.Float":     true,
	"java.lang.Double":    true,
	"java.lang.Class":     true,
}

// Assignable reports whether a value of type from can be assigned to a
// variable of type to. Library hierarchies are unknown, so two distinct
// library types are assumed compatible unless one of them is final.
func (p *Program) Assignable(to, from Type) bool {
	switch {
	case to.Kind == KindTypeVar || from.Kind == KindTypeVar:
		return true
	case from.Kind == KindNull:
		return to.Kind != KindPrimitive
	case to.Kind == KindPrimitive && from.Kind == KindPrimitive:
		if to.Name == from.Name {
			return true
		}
		rt, rf := numericRank[to.Name], numericRank[from.Name]
		return rt != 0 && rf != 0 && rf <= rt && !(to.Name == "char" && from.Name != "char")
	case to.Kind == KindPrimitive:
		return boxes[to.Name] == from.Name
	case from.Kind == KindPrimitive:
		switch to.Name {
		case boxes[from.Name], "java.lang.Object", "java.lang.Number", "java.lang.Comparable", "java.io.Serializable":
			return true
		}
		return false
	case to.Kind == KindArray:
		return from.Kind == KindArray && to.Elem != nil && from.Elem != nil && p.Assignable(*to.Elem, *from.Elem)
	case from.Kind == KindArray:
		switch to.Name {
		case "java.lang.Object", "java.lang.Cloneable", "java.io.Serializable":
			return true
		}
		return false
	}
	if to.Name == "java.lang.Object" || to.Name == from.Name {
		return true
	}
	if from.Decl != nil {
		return p.IsSubtype(from.Decl, to.Name)
	}
	if to.Decl != nil {
		return false
	}
	return !finalLibraryTypes[to.Name] && !finalLibraryTypes[from.Name]
}
