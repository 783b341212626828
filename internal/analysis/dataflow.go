package analysis

import (
	"log/slog"
	"maps"
	"slices"

	"untangle/internal/resolver"
	"untangle/internal/syntax"
)

type outcome int

const (
	resolved outcome = iota
	recovered
)

// FlowStats counts the visits of one DataFlow run.
type FlowStats struct {
	Visited   int
	Recovered int
}

// DataFlow is a single-pass, flow-insensitive analysis of one callable body.
// It relates uses to declarations, guarded statements to their conditions,
// expressions to the reference types they may hold and call sites to the
// declarations they may reach.
type DataFlow struct {
	prog   *resolver.Program
	a      *syntax.Arena
	params []syntax.NodeID
	body   []syntax.NodeID
	logger *slog.Logger

	useToDef map[syntax.NodeID]syntax.NodeID
	control  map[syntax.NodeID]syntax.NodeID
	typeRefs map[syntax.NodeID]*TypeSet
	callFact map[syntax.NodeID][]syntax.NodeID
	visiting map[syntax.NodeID]bool
	stats    FlowStats
}

// NewDataFlow prepares the analysis of a parameter list and the statements of
// a body.
func NewDataFlow(prog *resolver.Program, params, statements []syntax.NodeID, logger *slog.Logger) *DataFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataFlow{
		prog:     prog,
		a:        prog.Arena(),
		params:   params,
		body:     statements,
		logger:   logger,
		useToDef: make(map[syntax.NodeID]syntax.NodeID),
		control:  make(map[syntax.NodeID]syntax.NodeID),
		typeRefs: make(map[syntax.NodeID]*TypeSet),
		callFact: make(map[syntax.NodeID][]syntax.NodeID),
		visiting: make(map[syntax.NodeID]bool),
	}
}

func (d *DataFlow) Analyze() {
	for _, p := range d.params {
		d.visit(p)
	}
	for _, s := range d.body {
		d.visit(s)
	}
}

// UseToDef maps a use site to the name node of its declaration.
func (d *DataFlow) UseToDef() map[syntax.NodeID]syntax.NodeID { return d.useToDef }

// Control maps a guarded statement to its controlling expression or block.
func (d *DataFlow) Control() map[syntax.NodeID]syntax.NodeID { return d.control }

// TypeRefs maps nodes to the reference types they may hold.
func (d *DataFlow) TypeRefs() map[syntax.NodeID]*TypeSet { return d.typeRefs }

// CallFact maps call and method reference sites to callee declarations.
func (d *DataFlow) CallFact() map[syntax.NodeID][]syntax.NodeID { return d.callFact }

func (d *DataFlow) Stats() FlowStats { return d.stats }

// sortedKeys returns map keys in arena order, which is source order.
func sortedKeys[V any](m map[syntax.NodeID]V) []syntax.NodeID {
	return slices.Sorted(maps.Keys(m))
}

func (d *DataFlow) visit(n syntax.NodeID) {
	if !d.a.Valid(n) {
		return
	}
	d.stats.Visited++
	if d.dispatch(n) == recovered {
		d.stats.Recovered++
		begin, _ := d.a.Lines(n)
		d.logger.Debug("recovered unresolved node", "type", d.a.Type(n), "path", d.a.File(n).Path, "line", begin)
	}
}

func (d *DataFlow) dispatch(n syntax.NodeID) outcome {
	a := d.a
	switch a.Type(n) {
	case "formal_parameter", "spread_parameter", "catch_formal_parameter":
		return d.visitParam(n)
	case "local_variable_declaration":
		out := resolved
		for _, v := range a.Declarators(n) {
			out = worst(out, d.visitDeclarator(v, a.Field(n, "type")))
		}
		return out
	case "identifier":
		if !isNameUse(a, n) {
			return resolved
		}
		return d.visitName(n)
	case "object_creation_expression":
		return d.visitCreation(n)
	case "array_creation_expression":
		return d.visitArrayCreation(n)
	case "array_initializer":
		d.visitArrayInit(n)
		return resolved
	case "array_access":
		return d.visitArrayAccess(n)
	case "assignment_expression":
		return d.visitAssign(n)
	case "field_access":
		return d.visitFieldAccess(n)
	case "method_invocation":
		return d.visitCall(n)
	case "method_reference":
		return d.visitMethodRef(n)
	case "cast_expression":
		d.visit(a.Field(n, "value"))
		return d.seed(n, a.Field(n, "type"))
	case "instanceof_expression":
		return d.visitInstanceOf(n)
	case "marker_annotation":
		return resolved
	case "annotation":
		for _, arg := range a.NamedChildren(a.Field(n, "arguments")) {
			if a.Is(arg, "element_value_pair") {
				d.visit(a.Field(arg, "value"))
			} else {
				d.visit(arg)
			}
		}
		return resolved
	case "if_statement":
		cond := unparen(a, a.Field(n, "condition"))
		d.visit(cond)
		if then := a.Field(n, "consequence"); then != syntax.NoNode {
			d.control[then] = cond
			d.visit(then)
		}
		if els := a.Field(n, "alternative"); els != syntax.NoNode {
			d.control[els] = cond
			d.visit(els)
		}
		return resolved
	case "for_statement":
		for _, init := range a.Fields(n, "init") {
			d.visit(init)
		}
		body := a.Field(n, "body")
		if cond := a.Field(n, "condition"); cond != syntax.NoNode {
			d.visit(cond)
			d.control[body] = unparen(a, cond)
		}
		d.visit(body)
		for _, u := range a.Fields(n, "update") {
			d.visit(u)
		}
		return resolved
	case "enhanced_for_statement":
		value, body := a.Field(n, "value"), a.Field(n, "body")
		d.visit(value)
		out := d.seed(a.Field(n, "name"), a.Field(n, "type"))
		d.control[body] = value
		d.visit(body)
		return out
	case "while_statement":
		cond, body := unparen(a, a.Field(n, "condition")), a.Field(n, "body")
		d.visit(cond)
		d.visit(body)
		d.control[body] = cond
		return resolved
	case "do_statement":
		cond, body := unparen(a, a.Field(n, "condition")), a.Field(n, "body")
		d.visit(body)
		d.visit(cond)
		d.control[body] = cond
		return resolved
	case "try_statement", "try_with_resources_statement":
		return d.visitTry(n)
	case "lambda_expression":
		params := a.Field(n, "parameters")
		if a.Is(params, "formal_parameters") {
			for _, p := range a.NamedChildren(params) {
				d.visit(p)
			}
		}
		d.visit(a.Field(n, "body"))
		return resolved
	case syntax.TypeClass, syntax.TypeInterface, syntax.TypeEnum, syntax.TypeRecord, syntax.TypeAnnotation:
		// Local types are analysed body by body by the builder.
		return resolved
	}
	for _, c := range a.NamedChildren(n) {
		d.visit(c)
	}
	return resolved
}

func worst(a, b outcome) outcome {
	if a == recovered || b == recovered {
		return recovered
	}
	return resolved
}

// isReferenceTypeNode reports whether a declared type names a class after
// its array dimensions are removed.
func (d *DataFlow) isReferenceTypeNode(typ syntax.NodeID) bool {
	base := baseTypeNode(d.a, typ)
	if base == syntax.NoNode || syntax.IsPrimitiveType(d.a.Type(base)) {
		return false
	}
	return d.a.Text(base) != "var"
}

// seed records the declared reference type of a declaration name.
func (d *DataFlow) seed(name, typ syntax.NodeID) outcome {
	if !d.isReferenceTypeNode(typ) {
		return resolved
	}
	t, err := d.prog.ResolveType(typ)
	if err != nil {
		return recovered
	}
	d.typeRefs[name] = NewTypeSet(t.Base())
	return resolved
}

func (d *DataFlow) visitParam(n syntax.NodeID) outcome {
	a := d.a
	if a.Is(n, "catch_formal_parameter") {
		types := a.NamedChildren(a.ChildOfType(n, "catch_type"))
		if len(types) == 0 {
			return resolved
		}
		return d.seed(a.Field(n, "name"), types[0])
	}
	return d.seed(a.ParamName(n), a.ParamType(n))
}

// visitDeclarator types a variable from its initializer. Generic raw
// initializer types take the type arguments of the declared type.
func (d *DataFlow) visitDeclarator(v, typ syntax.NodeID) outcome {
	a := d.a
	name := a.Field(v, "name")
	if _, ok := d.typeRefs[name]; ok || d.visiting[v] {
		return resolved
	}
	d.visiting[v] = true
	defer delete(d.visiting, v)

	out := resolved
	output := NewTypeSet()
	if value := a.Field(v, "value"); value != syntax.NoNode {
		d.visit(value)
		if set, ok := d.typeRefs[value]; ok {
			declared, err := d.prog.ResolveType(typ)
			if err != nil {
				out = recovered
			}
			base := declared.Base()
			if err != nil || len(base.Args) == 0 {
				output.Merge(set)
			} else {
				for _, elem := range set.Items() {
					if !elem.IsReference() {
						continue
					}
					if parameterized(elem) {
						output.Add(elem)
					} else {
						elem.Args = base.Args
						output.Add(elem)
					}
				}
			}
		}
	}
	if a.Is(typ, "array_type") || a.Field(v, "dimensions") != syntax.NoNode || !output.IsEmpty() {
		d.typeRefs[name] = output
	}
	return out
}

// parameterized reports whether a reference carries all of its type
// arguments. Library types are trusted when they carry any.
func parameterized(t resolver.Type) bool {
	if t.Decl != nil {
		return len(t.Decl.TypeParams) == len(t.Args)
	}
	return len(t.Args) > 0
}

func (d *DataFlow) visitName(n syntax.NodeID) outcome {
	v, err := d.prog.LookupValue(n)
	if err != nil {
		t, err := d.prog.TypeOf(n)
		if err == nil {
			d.typeRefs[n] = NewTypeSet(t)
		}
		return recovered
	}
	if v.Kind == resolver.ValueType {
		// A type name is a static receiver, not a variable.
		d.typeRefs[n] = NewTypeSet(d.prog.SelfType(v.Type))
		return resolved
	}
	if v.Field != nil && d.a.Is(v.Declarator, "variable_declarator") {
		d.visitDeclarator(v.Declarator, v.TypeNode)
	}
	d.useToDef[n] = v.NameNode
	if set, ok := d.typeRefs[v.NameNode]; ok {
		d.typeRefs[n] = set
	}
	return resolved
}

func (d *DataFlow) visitCreation(n syntax.NodeID) outcome {
	a := d.a
	for _, c := range a.NamedChildren(n) {
		if a.Node(c).Field == "" && !a.Is(c, "class_body", "type_arguments") {
			d.visit(c)
		}
	}
	for _, arg := range a.NamedChildren(a.Field(n, "arguments")) {
		d.visit(arg)
	}
	t, err := d.prog.TypeOf(n)
	if err != nil {
		return recovered
	}
	d.typeRefs[n] = NewTypeSet(t)
	return resolved
}

func (d *DataFlow) visitArrayCreation(n syntax.NodeID) outcome {
	if !d.isReferenceTypeNode(d.a.Field(n, "type")) {
		return resolved
	}
	if init := d.a.Field(n, "value"); init != syntax.NoNode {
		d.visit(init)
		if set, ok := d.typeRefs[init]; ok {
			d.typeRefs[n] = set
		}
	}
	return resolved
}

func (d *DataFlow) visitArrayInit(n syntax.NodeID) {
	output := NewTypeSet()
	for _, v := range d.a.NamedChildren(n) {
		d.visit(v)
		output.Merge(d.typeRefs[v])
	}
	if !output.IsEmpty() {
		d.typeRefs[n] = output
	}
}

func (d *DataFlow) visitArrayAccess(n syntax.NodeID) outcome {
	array, index := d.a.Field(n, "array"), d.a.Field(n, "index")
	d.visit(array)
	d.visit(index)
	if def, ok := d.useToDef[array]; ok {
		d.useToDef[n] = def
		if set, ok := d.typeRefs[def]; ok {
			d.typeRefs[n] = set
		}
		return resolved
	}
	t, err := d.prog.TypeOf(n)
	if err != nil {
		return recovered
	}
	if base := t.Base(); base.IsReference() {
		d.typeRefs[n] = NewTypeSet(base)
	}
	return resolved
}

// visitAssign merges the right-hand types into the assigned declaration.
// Earlier candidates are kept. A write into an array element leaves the
// array's set alone when the element is itself an array.
func (d *DataFlow) visitAssign(n syntax.NodeID) outcome {
	lhs, rhs := unparen(d.a, d.a.Field(n, "left")), d.a.Field(n, "right")
	d.visit(lhs)
	d.visit(rhs)
	set, ok := d.typeRefs[rhs]
	if !ok {
		return resolved
	}
	out := resolved
	if def, ok := d.useToDef[lhs]; ok {
		widen := true
		if d.a.Is(lhs, "array_access") {
			t, err := d.prog.TypeOf(lhs)
			if err != nil {
				out = recovered
			}
			widen = err == nil && !t.IsArray()
		}
		if widen {
			if cur, ok := d.typeRefs[def]; ok {
				cur.Merge(set)
			} else {
				d.typeRefs[def] = set.Copy()
			}
		}
	}
	d.typeRefs[n] = set.Copy()
	return out
}

func (d *DataFlow) visitFieldAccess(n syntax.NodeID) outcome {
	a := d.a
	object, field := a.Field(n, "object"), a.Text(a.Field(n, "field"))
	if a.Is(object, "this") {
		v, err := d.prog.ResolveField(n)
		if err != nil {
			return d.fallbackType(n)
		}
		t, err := d.prog.ValueType(v)
		if err != nil {
			return recovered
		}
		if !t.Base().IsReference() {
			return resolved
		}
		if a.Is(v.Declarator, "variable_declarator") {
			d.visitDeclarator(v.Declarator, v.TypeNode)
		}
		d.useToDef[n] = v.NameNode
		if set, ok := d.typeRefs[v.NameNode]; ok {
			d.typeRefs[n] = set
			return resolved
		}
		return d.fallbackType(n)
	}

	d.visit(object)
	if v, err := d.prog.ResolveField(n); err == nil {
		d.useToDef[n] = v.NameNode
	}
	if set, ok := d.typeRefs[object]; ok {
		if a.Is(object, "array_access") {
			if t, err := d.prog.TypeOf(object); err == nil && t.IsArray() {
				return resolved
			}
		}
		output := NewTypeSet()
		for _, elem := range set.Items() {
			if !elem.IsReference() {
				continue
			}
			ft, err := d.prog.FieldType(elem, field)
			if err != nil {
				continue
			}
			if base := ft.Base(); base.IsReference() {
				output.Add(base)
			}
		}
		if !output.IsEmpty() {
			d.typeRefs[n] = output
			return resolved
		}
	}
	return d.fallbackType(n)
}

// fallbackType records the static type of n when it is a reference type.
func (d *DataFlow) fallbackType(n syntax.NodeID) outcome {
	t, err := d.prog.TypeOf(n)
	if err != nil {
		return recovered
	}
	if base := t.Base(); base.IsReference() {
		d.typeRefs[n] = NewTypeSet(base)
	}
	return resolved
}

// visitCall resolves a call through every candidate type of its receiver.
// Arguments are checked against the candidate parameters with their own
// candidate sets when known. Without a typed receiver the call is resolved
// statically.
func (d *DataFlow) visitCall(n syntax.NodeID) outcome {
	a := d.a
	args := a.NamedChildren(a.Field(n, "arguments"))
	for _, arg := range args {
		d.visit(arg)
	}
	name := a.Text(a.Field(n, "name"))

	found := false
	if object := a.Field(n, "object"); object != syntax.NoNode {
		d.visit(object)
		if set, ok := d.typeRefs[object]; ok {
			var callees []syntax.NodeID
			output := NewTypeSet()
			for _, elem := range set.Items() {
				for _, b := range d.prog.VisibleMethods(elem) {
					if b.Method.Name != name || len(b.Method.Params) != len(args) {
						continue
					}
					if !d.adapts(b, args) {
						continue
					}
					found = true
					callees = appendUnique(callees, b.Method.Node)
					if ret, err := d.prog.ReturnType(b); err == nil {
						if base := ret.Base(); base.IsReference() {
							output.Add(base)
						}
					}
				}
			}
			if len(callees) > 0 {
				d.callFact[n] = callees
			}
			if !output.IsEmpty() {
				d.typeRefs[n] = output
			}
		}
	}
	if found {
		return resolved
	}

	b, err := d.prog.ResolveCall(n)
	if err != nil {
		return recovered
	}
	d.callFact[n] = []syntax.NodeID{b.Method.Node}
	ret, err := d.prog.ReturnType(b)
	if err != nil {
		return recovered
	}
	if base := ret.Base(); base.IsReference() {
		d.typeRefs[n] = NewTypeSet(base)
	}
	return resolved
}

// adapts checks every argument whose parameter type is known. An argument
// with a candidate set adapts when any candidate is assignable.
func (d *DataFlow) adapts(b resolver.Bound, args []syntax.NodeID) bool {
	for i, arg := range args {
		pt, err := d.prog.ParamType(b, i)
		if err != nil {
			continue
		}
		if set, ok := d.typeRefs[arg]; ok {
			if !slices.ContainsFunc(set.Items(), func(t resolver.Type) bool { return d.prog.Assignable(pt, t) }) {
				return false
			}
			continue
		}
		at, err := d.prog.TypeOf(arg)
		if err != nil {
			continue
		}
		if !d.prog.Assignable(pt, at) {
			return false
		}
	}
	return true
}

func (d *DataFlow) visitMethodRef(n syntax.NodeID) outcome {
	a := d.a
	parts := a.NamedChildren(n)
	if len(parts) < 2 {
		return resolved
	}
	recv, name := parts[0], a.Text(parts[len(parts)-1])
	if syntax.IsTypeNode(a.Type(recv)) {
		if t, err := d.prog.ResolveType(recv); err == nil {
			d.typeRefs[recv] = NewTypeSet(t)
		}
	} else {
		d.visit(recv)
	}

	if set, ok := d.typeRefs[recv]; ok {
		var callees []syntax.NodeID
		for _, elem := range set.Items() {
			for _, b := range d.prog.VisibleMethods(elem) {
				if b.Method.Mods.Static && b.Method.Name == name {
					callees = appendUnique(callees, b.Method.Node)
				}
			}
		}
		if len(callees) > 0 {
			d.callFact[n] = callees
			return resolved
		}
	}
	b, err := d.prog.ResolveMethodRef(n)
	if err != nil {
		return recovered
	}
	d.callFact[n] = []syntax.NodeID{b.Method.Node}
	return resolved
}

func (d *DataFlow) visitInstanceOf(n syntax.NodeID) outcome {
	a := d.a
	d.visit(a.Field(n, "left"))
	typ := a.Field(n, "right")
	if !d.isReferenceTypeNode(typ) {
		return resolved
	}
	t, err := d.prog.ResolveType(baseTypeNode(a, typ))
	if err != nil {
		return recovered
	}
	d.typeRefs[n] = NewTypeSet(t)
	if name := a.Field(n, "name"); name != syntax.NoNode {
		d.typeRefs[name] = NewTypeSet(t)
	}
	return resolved
}

// visitTry links every catch clause to the guarded block.
func (d *DataFlow) visitTry(n syntax.NodeID) outcome {
	a := d.a
	out := resolved
	for _, r := range a.NamedChildren(a.Field(n, "resources")) {
		if !a.Is(r, "resource") {
			d.visit(r)
			continue
		}
		d.visit(a.Field(r, "value"))
		if name := a.Field(r, "name"); name != syntax.NoNode {
			out = worst(out, d.seed(name, a.Field(r, "type")))
		}
	}
	block := a.Field(n, "body")
	d.visit(block)
	for _, c := range a.ChildrenOfType(n, "catch_clause") {
		d.control[c] = block
		d.visit(a.ChildOfType(c, "catch_formal_parameter"))
		d.visit(a.Field(c, "body"))
	}
	if fin := a.ChildOfType(n, "finally_clause"); fin != syntax.NoNode {
		d.visit(fin)
	}
	return out
}

func appendUnique(ids []syntax.NodeID, id syntax.NodeID) []syntax.NodeID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
