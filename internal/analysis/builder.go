package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"untangle/internal/crawler"
	"untangle/internal/graph"
	"untangle/internal/model"
	"untangle/internal/resolver"
	"untangle/internal/syntax"
)

// StructureGraph is the typed multigraph over syntax nodes of one snapshot.
type StructureGraph = graph.Graph[model.TreeNode, model.Edge]

var jrePrefixes = []string{"java.", "javax.", "javafx.", "jdk.", "sun."}

// Options configures a Builder.
type Options struct {
	// StrictParse fails the build on any syntax error.
	StrictParse bool
	Logger      *slog.Logger
}

// Builder builds the structural graph of a snapshot. Only declarations and
// expressions whose lines overlap a region of their file view are analysed.
type Builder struct {
	opts    Options
	crawler *crawler.Crawler
	logger  *slog.Logger
}

func NewBuilder(opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{opts: opts, crawler: crawler.NewCrawler(), logger: logger}
}

// Build parses every file view of snap and returns its structural graph. Any
// file that cannot be read or parsed fails the whole build with an error
// wrapping syntax.ErrParse.
func (b *Builder) Build(ctx context.Context, snap *model.Snapshot) (*StructureGraph, error) {
	parser, err := syntax.NewParser(syntax.NewArena(), b.opts.StrictParse)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	roots, err := b.crawler.SourceRoots(snap.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to find source roots of %s: %w", snap.Root(), err)
	}
	prog := resolver.NewProgram(ctx, parser, snap.Root(), resolver.Options{SourceRoots: roots, Logger: b.logger})
	g := graph.New[model.TreeNode, model.Edge]()

	for _, view := range snap.Views() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := prog.Load(view.Path())
		if err != nil {
			if !errors.Is(err, syntax.ErrParse) {
				err = fmt.Errorf("%w: %v", syntax.ErrParse, err)
			}
			return nil, err
		}
		w := &walker{
			prog:    prog,
			a:       prog.Arena(),
			file:    f,
			logger:  b.logger,
			visited: make(map[syntax.NodeID]bool),
		}
		w.walk(f.Root, fileScope(prog.Arena(), view), edgeSink(prog.Arena(), g))
	}

	stats := prog.Stats()
	b.logger.Debug("structure graph built",
		"root", snap.Root(),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"lookups", stats.Lookups,
		"unsolved", stats.Unsolved,
		"files", stats.Loaded)
	return g, nil
}

// scope reports whether a node lies in the analysed part of its file.
type scope func(syntax.NodeID) bool

func fileScope(a *syntax.Arena, view *model.FileView) scope {
	return func(n syntax.NodeID) bool {
		begin, end := a.Lines(n)
		return view.InScope(begin, end)
	}
}

// sink receives structural edges.
type sink func(from, to syntax.NodeID, kind model.EdgeKind)

func edgeSink(a *syntax.Arena, g *StructureGraph) sink {
	return func(from, to syntax.NodeID, kind model.EdgeKind) {
		g.AddEdge(model.Edge{From: a.TreeNode(from), To: a.TreeNode(to), Kind: kind})
	}
}

// walker traverses one file.
type walker struct {
	prog    *resolver.Program
	a       *syntax.Arena
	file    *syntax.File
	logger  *slog.Logger
	visited map[syntax.NodeID]bool
}

func (w *walker) walk(n syntax.NodeID, in scope, out sink) {
	a := w.a
	switch t := a.Type(n); t {
	case "import_declaration":
		if in(n) {
			w.importEdges(n, out)
		}
		return
	case syntax.TypeClass, syntax.TypeInterface, syntax.TypeRecord, syntax.TypeEnum:
		if !in(n) {
			return
		}
		d := w.prog.TypeDeclOf(n)
		if d != nil {
			w.superEdges(n, d, out)
		}
		for _, m := range a.NamedChildren(a.Body(n)) {
			w.walk(m, in, out)
		}
		w.annotations(n, in, out)
		if d != nil {
			w.overloads(d, out)
		}
		return
	case "enum_body_declarations":
		for _, m := range a.NamedChildren(n) {
			w.walk(m, in, out)
		}
		return
	case syntax.TypeField, syntax.TypeConstant:
		if !in(n) {
			return
		}
		w.analyzeType(a.Field(n, "type"), out)
		for _, v := range a.Declarators(n) {
			if value := a.Field(v, "value"); value != syntax.NoNode {
				w.walk(value, in, out)
			}
		}
		w.annotations(n, in, out)
		return
	case syntax.TypeMethod:
		if in(n) {
			w.method(n, in, out)
		}
		return
	case syntax.TypeCtor, syntax.TypeCompactCtor:
		if !in(n) {
			return
		}
		w.throws(n, out)
		for _, p := range a.Parameters(n) {
			w.analyzeType(a.ParamType(p), out)
		}
		if body := a.Field(n, "body"); body != syntax.NoNode {
			w.walk(body, in, out)
			w.dataFlow(a.Parameters(n), a.Statements(body), out)
		}
		return
	case "type_identifier", "scoped_type_identifier", "generic_type", "array_type", "annotated_type":
		w.analyzeType(n, out)
		return
	case "method_invocation":
		if !in(n) {
			return
		}
		if object := a.Field(n, "object"); object != syntax.NoNode {
			w.walk(object, in, out)
		}
		w.createRef(n, a.Text(a.Field(n, "name")), staticOnly, out)
		for _, arg := range a.NamedChildren(a.Field(n, "arguments")) {
			w.walk(arg, in, out)
		}
		return
	case "method_reference":
		parts := a.NamedChildren(n)
		if len(parts) == 0 {
			return
		}
		w.walk(parts[0], in, out)
		if len(parts) > 1 && a.Is(parts[len(parts)-1], "identifier") {
			w.createRef(n, a.Text(parts[len(parts)-1]), staticOnly, out)
		}
		for _, ta := range a.ChildrenOfType(n, "type_arguments") {
			for _, arg := range a.NamedChildren(ta) {
				w.analyzeType(arg, out)
			}
		}
		return
	case "marker_annotation", "annotation":
		if in(n) {
			w.createRef(n, a.AnnotationName(n), plainOnly, out)
		}
		return
	case "identifier":
		if isNameUse(a, n) {
			w.createRef(n, a.Text(n), anyImport, out)
		}
		return
	case "class_literal":
		for _, c := range a.NamedChildren(n) {
			w.analyzeType(c, out)
		}
		return
	}
	for _, c := range a.NamedChildren(n) {
		w.walk(c, in, out)
	}
}

func (w *walker) annotations(decl syntax.NodeID, in scope, out sink) {
	for _, ann := range w.a.Modifiers(decl).Annotations {
		w.walk(ann, in, out)
	}
}

func (w *walker) throws(callable syntax.NodeID, out sink) {
	for _, t := range w.a.NamedChildren(w.a.ChildOfType(callable, "throws")) {
		w.analyzeType(t, out)
	}
}

func (w *walker) method(n syntax.NodeID, in scope, out sink) {
	a := w.a
	if body := a.Field(n, "body"); body != syntax.NoNode {
		w.walk(body, in, out)
		if a.HasAnnotation(n, "Override") {
			if target := w.overridden(n); target != nil {
				out(n, target.Node, model.EdgeOverride)
			}
		}
		w.dataFlow(a.Parameters(n), a.Statements(body), out)
	}
	w.analyzeType(a.Field(n, "type"), out)
	w.throws(n, out)
	for _, p := range a.Parameters(n) {
		w.analyzeType(a.ParamType(p), out)
	}
	w.annotations(n, in, out)
}

// dataFlow copies the facts of one body into the graph.
func (w *walker) dataFlow(params, statements []syntax.NodeID, out sink) {
	df := NewDataFlow(w.prog, params, statements, w.logger)
	df.Analyze()
	for _, use := range sortedKeys(df.UseToDef()) {
		out(use, df.UseToDef()[use], model.EdgeDefUse)
	}
	for _, guarded := range sortedKeys(df.Control()) {
		out(guarded, df.Control()[guarded], model.EdgeControl)
	}
	for _, site := range sortedKeys(df.CallFact()) {
		for _, callee := range df.CallFact()[site] {
			out(site, callee, model.EdgeMethodCall)
		}
	}
}

// Import kinds a reference may resolve through.
const (
	anyImport  = 0
	staticOnly = 1
	plainOnly  = -1
)

// createRef links a simple name to the single-name imports it may come
// from. Calls match static imports only and annotations plain ones.
func (w *walker) createRef(n syntax.NodeID, name string, kind int, out sink) {
	for _, imp := range w.file.Imports {
		if imp.Asterisk {
			continue
		}
		if (kind == staticOnly && !imp.Static) || (kind == plainOnly && imp.Static) {
			continue
		}
		if imp.SimpleName() == name {
			out(n, imp.Node, model.EdgeReference)
		}
	}
}

func isJRELibrary(name string) bool {
	for _, prefix := range jrePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// importEdges links an import to the local declarations it brings into
// scope.
func (w *walker) importEdges(n syntax.NodeID, out sink) {
	var imp syntax.Import
	for _, i := range w.file.Imports {
		if i.Node == n {
			imp = i
			break
		}
	}
	if imp.Name == "" || isJRELibrary(imp.Name) {
		return
	}
	owner := imp.Name
	if imp.Static && !imp.Asterisk {
		owner = strings.TrimSuffix(imp.Name, "."+imp.SimpleName())
	}
	target := w.prog.FindType(owner)
	if target == nil {
		return
	}
	common := target.Package == w.file.Package
	access := func(m syntax.Modifiers) bool {
		return m.Public || (!m.Private && common)
	}

	switch {
	case imp.Asterisk && imp.Static:
		for _, f := range target.Fields {
			if f.EnumConstant {
				out(n, f.Node, model.EdgeImport)
			}
		}
		for _, m := range target.Methods {
			if m.Mods.Static && access(m.Mods) {
				out(n, m.Node, model.EdgeImport)
			}
		}
		for _, f := range target.Fields {
			if !f.EnumConstant && f.Mods.Static && access(f.Mods) {
				out(n, f.Node, model.EdgeImport)
			}
		}
	case imp.Asterisk:
		for _, m := range target.Members {
			if access(m.Mods) {
				out(n, m.Node, model.EdgeImport)
			}
		}
	case imp.Static:
		name := imp.SimpleName()
		if target.Kind == resolver.KindEnum {
			for _, f := range target.Fields {
				if f.EnumConstant && f.Name == name {
					out(n, f.Node, model.EdgeImport)
					break
				}
			}
		}
		for _, m := range target.MethodsNamed(name) {
			if m.Mods.Static && access(m.Mods) {
				out(n, m.Node, model.EdgeImport)
			}
		}
		if f := target.FieldNamed(name); f != nil && !f.EnumConstant {
			out(n, f.Node, model.EdgeImport)
		}
	default:
		out(n, target.Node, model.EdgeImport)
	}
}

// classOrInterface resolves a type node to a local class or interface.
func (w *walker) classOrInterface(typ syntax.NodeID) *resolver.TypeDecl {
	t, err := w.prog.ResolveType(typ)
	if err != nil || t.Decl == nil {
		return nil
	}
	if t.Decl.Kind != resolver.KindClass && t.Decl.Kind != resolver.KindInterface {
		return nil
	}
	return t.Decl
}

func (w *walker) superEdges(n syntax.NodeID, d *resolver.TypeDecl, out sink) {
	extends, implements := w.a.SuperTypes(n)
	for _, t := range extends {
		w.analyzeType(t, out)
		if target := w.classOrInterface(t); target != nil {
			out(n, target.Node, model.EdgeExtend)
		}
	}
	for _, t := range implements {
		w.analyzeType(t, out)
		if target := w.classOrInterface(t); target != nil {
			out(n, target.Node, model.EdgeImplement)
		}
	}
}

// overloads links same-named methods of one type, pairwise along the
// name-sorted method list.
func (w *walker) overloads(d *resolver.TypeDecl, out sink) {
	methods := append([]*resolver.MethodDecl(nil), d.Methods...)
	sort.SliceStable(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })
	for i := 1; i < len(methods); i++ {
		cur, prev := methods[i], methods[i-1]
		if cur.Name == prev.Name {
			out(cur.Node, prev.Node, model.EdgeOverload)
		}
	}
}

// analyzeType links a type usage to the plain import its outermost name
// comes from, or to the on-demand import of its package.
func (w *walker) analyzeType(typ syntax.NodeID, out sink) {
	a := w.a
	typ = baseTypeNode(a, typ)
	if typ == syntax.NoNode || syntax.IsPrimitiveType(a.Type(typ)) || w.visited[typ] {
		return
	}
	if !a.Is(typ, "type_identifier", "scoped_type_identifier", "generic_type") {
		return
	}
	w.visited[typ] = true

	named := typ
	if a.Is(typ, "generic_type") {
		named = a.ChildOfType(typ, "type_identifier", "scoped_type_identifier")
		for _, arg := range a.NamedChildren(a.ChildOfType(typ, "type_arguments")) {
			w.analyzeType(arg, out)
		}
	}
	nameWithScope := stripTypeArgs(a.CompactText(named))
	outer := syntax.FirstSegment(nameWithScope)

	pkg := ""
	if t, err := w.prog.ResolveType(typ); err == nil && t.IsReference() && len(t.Name) > len(nameWithScope) {
		pkg = t.Name[:len(t.Name)-len(nameWithScope)-1]
	}
	for _, imp := range w.file.Imports {
		if imp.Static {
			continue
		}
		match := imp.SimpleName() == outer
		if imp.Asterisk {
			match = imp.Name == pkg
		}
		if match {
			out(typ, imp.Node, model.EdgeReference)
		}
	}
}

func stripTypeArgs(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// overridden finds the declaration an @Override method replaces: the
// superclass chain first, then the interfaces. Methods of enum constant
// bodies look at the enum itself before its interfaces.
func (w *walker) overridden(n syntax.NodeID) *resolver.MethodDecl {
	md := w.prog.MethodDeclOf(n)
	if md == nil {
		return nil
	}
	sig := md.Signature
	owner := w.a.Ancestor(n, "enum_constant", "object_creation_expression",
		syntax.TypeClass, syntax.TypeInterface, syntax.TypeEnum, syntax.TypeRecord, syntax.TypeAnnotation)

	switch w.a.Type(owner) {
	case syntax.TypeClass, syntax.TypeInterface:
		if d := w.prog.TypeDeclOf(owner); d != nil {
			return w.resolveOverride(d, sig)
		}
	case "enum_constant":
		e := w.prog.TypeDeclOf(w.a.EnclosingType(owner))
		if e == nil {
			return nil
		}
		if m := e.MethodBySignature(sig); m != nil {
			return m
		}
		return w.enumInterfaces(e, sig)
	case syntax.TypeEnum:
		if e := w.prog.TypeDeclOf(owner); e != nil {
			return w.enumInterfaces(e, sig)
		}
	}
	return nil
}

func (w *walker) enumInterfaces(e *resolver.TypeDecl, sig string) *resolver.MethodDecl {
	for _, it := range w.prog.Implements(e) {
		if it.Decl == nil || it.Decl.Kind != resolver.KindInterface {
			continue
		}
		if m := w.lookupInterface(it.Decl, sig, nil); m != nil {
			return m
		}
	}
	return nil
}

// superOf follows the first extends clause, which is the superclass of a
// class and the first extended interface of an interface.
func (w *walker) superOf(d *resolver.TypeDecl) *resolver.TypeDecl {
	ext := w.prog.Extends(d)
	if len(ext) == 0 || ext[0].Decl == nil {
		return nil
	}
	if k := ext[0].Decl.Kind; k != resolver.KindClass && k != resolver.KindInterface {
		return nil
	}
	return ext[0].Decl
}

func (w *walker) resolveOverride(d *resolver.TypeDecl, sig string) *resolver.MethodDecl {
	seen := map[*resolver.TypeDecl]bool{d: true}
	for c := w.superOf(d); c != nil && !seen[c]; c = w.superOf(c) {
		seen[c] = true
		if m := c.MethodBySignature(sig); m != nil && w.visibleForOverride(m) {
			return m
		}
	}
	clear(seen)
	for c := d; c != nil && !seen[c]; c = w.superOf(c) {
		seen[c] = true
		for _, it := range w.prog.Implements(c) {
			if it.Decl == nil || it.Decl.Kind != resolver.KindInterface {
				continue
			}
			if m := w.lookupInterface(it.Decl, sig, nil); m != nil {
				return m
			}
		}
	}
	return nil
}

func (w *walker) lookupInterface(d *resolver.TypeDecl, sig string, seen map[*resolver.TypeDecl]bool) *resolver.MethodDecl {
	if seen == nil {
		seen = make(map[*resolver.TypeDecl]bool)
	}
	if seen[d] {
		return nil
	}
	seen[d] = true
	if m := d.MethodBySignature(sig); m != nil && w.visibleForOverride(m) {
		return m
	}
	for _, ext := range w.prog.Extends(d) {
		if ext.Decl == nil {
			continue
		}
		if m := w.lookupInterface(ext.Decl, sig, seen); m != nil {
			return m
		}
	}
	return nil
}

func (w *walker) visibleForOverride(m *resolver.MethodDecl) bool {
	if m.Mods.Static || m.Mods.Private || m.Mods.Final {
		return false
	}
	return !m.Mods.Default || m.Owner.Package == w.file.Package
}
