package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"untangle/internal/syntax"
)

// ErrUnsolved marks a name, type or call that could not be resolved.
var ErrUnsolved = errors.New("unsolved symbol")

func unsolved(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsolved, fmt.Sprintf(format, args...))
}

// Stats counts symbol lookups of one Program.
type Stats struct {
	Lookups  int
	Unsolved int
	Loaded   int
}

// Options configures a Program.
type Options struct {
	// SourceRoots are searched for files declaring a qualified type name.
	// Empty means the program root.
	SourceRoots []string
	Logger      *slog.Logger
}

// Program is the set of Java files known to one structural build, indexed by
// type, method and field declaration. Files outside the analysed snapshot
// are loaded on demand when a qualified name is looked up.
type Program struct {
	// ctx bounds lazy parses triggered by lookups.
	ctx    context.Context
	arena  *syntax.Arena
	parser *syntax.Parser
	root   string
	roots  []string
	logger *slog.Logger

	files   map[string]*syntax.File
	missing map[string]bool
	types   map[string]*TypeDecl
	decls   map[syntax.NodeID]*TypeDecl
	methods map[syntax.NodeID]*MethodDecl
	fields  map[syntax.NodeID]*FieldDecl
	stats   Stats
}

func NewProgram(ctx context.Context, parser *syntax.Parser, root string, opts Options) *Program {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	roots := opts.SourceRoots
	if len(roots) == 0 {
		roots = []string{root}
	}
	return &Program{
		ctx:     ctx,
		arena:   parser.Arena(),
		parser:  parser,
		root:    root,
		roots:   roots,
		logger:  logger,
		files:   make(map[string]*syntax.File),
		missing: make(map[string]bool),
		types:   make(map[string]*TypeDecl),
		decls:   make(map[syntax.NodeID]*TypeDecl),
		methods: make(map[syntax.NodeID]*MethodDecl),
		fields:  make(map[syntax.NodeID]*FieldDecl),
	}
}

func (p *Program) Arena() *syntax.Arena { return p.arena }

func (p *Program) Stats() Stats { return p.stats }

// Load parses the file at rel (relative to the program root) and indexes its
// declarations. A file already loaded is returned as is.
func (p *Program) Load(rel string) (*syntax.File, error) {
	abs := filepath.Join(p.root, filepath.FromSlash(rel))
	if f, ok := p.files[abs]; ok {
		return f, nil
	}
	f, err := p.parser.ParseFile(p.ctx, p.root, rel)
	if err != nil {
		return nil, err
	}
	p.add(abs, f)
	return f, nil
}

func (p *Program) add(abs string, f *syntax.File) {
	p.files[abs] = f
	p.stats.Loaded++
	p.index(f)
}

// loadQuiet parses abs if it exists. Failures only leave a debug record.
func (p *Program) loadQuiet(abs string) bool {
	if _, ok := p.files[abs]; ok {
		return true
	}
	if p.missing[abs] {
		return false
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		p.missing[abs] = true
		return false
	}
	rel, err := filepath.Rel(p.root, abs)
	if err != nil {
		rel = abs
	}
	f, err := p.parser.Parse(p.ctx, rel, abs, src)
	if err != nil {
		p.logger.Debug("skipping unparsable dependency", "path", rel, "err", err)
		p.missing[abs] = true
		return false
	}
	p.add(abs, f)
	return true
}

// FindType returns the declaration of a qualified type name, loading the
// file that should declare it from the source roots when needed. Member
// types are found through the file of their outermost type.
func (p *Program) FindType(qualified string) *TypeDecl {
	if qualified == "" {
		return nil
	}
	if d, ok := p.types[qualified]; ok {
		return d
	}
	parts := strings.Split(qualified, ".")
	for i := len(parts); i >= 1; i-- {
		rel := filepath.Join(parts[:i]...) + ".java"
		for _, root := range p.roots {
			if !p.loadQuiet(filepath.Join(root, rel)) {
				continue
			}
			if d, ok := p.types[qualified]; ok {
				return d
			}
		}
	}
	return nil
}

// TypeDeclOf returns the declaration indexed for a type declaration node.
func (p *Program) TypeDeclOf(id syntax.NodeID) *TypeDecl { return p.decls[id] }

// MethodDeclOf returns the declaration indexed for a method or constructor
// node.
func (p *Program) MethodDeclOf(id syntax.NodeID) *MethodDecl { return p.methods[id] }

// FieldDeclOf returns the field indexed for a declarator node.
func (p *Program) FieldDeclOf(declarator syntax.NodeID) *FieldDecl { return p.fields[declarator] }

// EnclosingDecl returns the innermost declared type around id.
func (p *Program) EnclosingDecl(id syntax.NodeID) *TypeDecl {
	for n := p.arena.EnclosingType(id); n != syntax.NoNode; n = p.arena.EnclosingType(n) {
		if d := p.decls[n]; d != nil {
			return d
		}
	}
	return nil
}

// SelfType is the type of this inside d, with its type parameters unbound.
func (p *Program) SelfType(d *TypeDecl) Type {
	args := make([]Type, len(d.TypeParams))
	for i, tp := range d.TypeParams {
		args[i] = TypeVar(tp)
	}
	return Ref(d, args...)
}

// Extends returns the resolved extends clause of d. For interfaces these are
// the extended interfaces.
func (p *Program) Extends(d *TypeDecl) []Type {
	p.resolveSupers(d)
	return d.extends
}

// Implements returns the resolved implements clause of d.
func (p *Program) Implements(d *TypeDecl) []Type {
	p.resolveSupers(d)
	return d.implements
}

// Supertypes returns every direct supertype of d.
func (p *Program) Supertypes(d *TypeDecl) []Type {
	p.resolveSupers(d)
	out := make([]Type, 0, len(d.extends)+len(d.implements))
	out = append(out, d.extends...)
	return append(out, d.implements...)
}

// Superclass returns the declared superclass of a class, if it is declared
// in the loaded sources.
func (p *Program) Superclass(d *TypeDecl) *TypeDecl {
	if d.Kind != KindClass {
		return nil
	}
	ext := p.Extends(d)
	if len(ext) == 0 {
		return nil
	}
	return ext[0].Decl
}

func (p *Program) resolveSupers(d *TypeDecl) {
	if d.supersDone || d.resolving {
		return
	}
	d.resolving = true
	defer func() { d.resolving = false }()
	resolve := func(nodes []syntax.NodeID) []Type {
		var out []Type
		for _, n := range nodes {
			t, err := p.ResolveType(n)
			if err != nil || t.Kind != KindRef {
				continue
			}
			out = append(out, t)
		}
		return out
	}
	d.extends = resolve(d.extendNodes)
	d.implements = resolve(d.implementNodes)
	d.supersDone = true
}

// IsSubtype reports whether d is qualified or inherits from it.
func (p *Program) IsSubtype(d *TypeDecl, qualified string) bool {
	seen := make(map[*TypeDecl]bool)
	var walk func(d *TypeDecl) bool
	walk = func(d *TypeDecl) bool {
		if d == nil || seen[d] {
			return false
		}
		seen[d] = true
		if d.Qualified == qualified {
			return true
		}
		for _, st := range p.Supertypes(d) {
			if st.Name == qualified || walk(st.Decl) {
				return true
			}
		}
		return false
	}
	return walk(d)
}
