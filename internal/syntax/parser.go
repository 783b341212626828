package syntax

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// ErrParse marks a file the parser could not turn into a valid tree.
var ErrParse = errors.New("parse failure")

const headerQuery = `
(package_declaration) @package
(import_declaration) @import
`

// File is one parsed compilation unit.
type File struct {
	Path    string // slash separated, relative to the snapshot root
	Abs     string
	Source  []byte
	Root    NodeID
	Package string
	Imports []Import
}

// Import is one import declaration of a file.
type Import struct {
	Node     NodeID
	Name     string // dotted name without ".*"
	Static   bool
	Asterisk bool
}

// SimpleName is the last segment of the imported name.
func (i Import) SimpleName() string {
	if idx := strings.LastIndexByte(i.Name, '.'); idx >= 0 {
		return i.Name[idx+1:]
	}
	return i.Name
}

// Parser turns Java sources into arena nodes.
type Parser struct {
	arena  *Arena
	strict bool
	lang   *sitter.Language
	parser *sitter.Parser
	query  *sitter.Query
}

// NewParser creates a parser writing into arena. In strict mode any syntax
// error in a file is reported as ErrParse.
func NewParser(arena *Arena, strict bool) (*Parser, error) {
	lang := java.GetLanguage()
	query, err := sitter.NewQuery([]byte(headerQuery), lang)
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return &Parser{arena: arena, strict: strict, lang: lang, parser: parser, query: query}, nil
}

func (p *Parser) Arena() *Arena { return p.arena }

func (p *Parser) Close() {
	p.query.Close()
	p.parser.Close()
}

// ParseFile reads root/rel from disk and parses it.
func (p *Parser) ParseFile(ctx context.Context, root, rel string) (*File, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", rel, err)
	}
	return p.Parse(ctx, rel, abs, src)
}

// Parse parses src and copies the tree into the arena.
func (p *Parser) Parse(ctx context.Context, path, abs string, src []byte) (*File, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if p.strict && root.HasError() {
		return nil, fmt.Errorf("%w: %s: syntax error near line %d", ErrParse, path, firstError(root)+1)
	}

	f := &File{Path: filepath.ToSlash(path), Abs: abs, Source: src}
	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()
	f.Root = p.copy(cursor, NoNode, f)

	p.readHeader(root, f)
	return f, nil
}

func (p *Parser) copy(c *sitter.TreeCursor, parent NodeID, f *File) NodeID {
	n := c.CurrentNode()
	id := p.arena.add(Node{
		Type:      n.Type(),
		Named:     n.IsNamed(),
		Field:     c.CurrentFieldName(),
		Parent:    parent,
		File:      f,
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		Start:     Point{Row: n.StartPoint().Row, Column: n.StartPoint().Column},
		End:       Point{Row: n.EndPoint().Row, Column: n.EndPoint().Column},
	})
	if c.GoToFirstChild() {
		for {
			if !isComment(c.CurrentNode().Type()) {
				child := p.copy(c, id, f)
				p.arena.nodes[id].Children = append(p.arena.nodes[id].Children, child)
			}
			if !c.GoToNextSibling() {
				break
			}
		}
		c.GoToParent()
	}
	return id
}

func (p *Parser) readHeader(root *sitter.Node, f *File) {
	top := make(map[uint32]NodeID)
	for _, c := range p.arena.Children(f.Root) {
		top[p.arena.nodes[c].StartByte] = c
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(p.query, root)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, capture := range m.Captures {
			id, ok := top[capture.Node.StartByte()]
			if !ok {
				continue
			}
			switch p.query.CaptureNameForId(capture.Index) {
			case "package":
				f.Package = qualifiedName(p.arena, id)
			case "import":
				f.Imports = append(f.Imports, Import{
					Node:     id,
					Name:     qualifiedName(p.arena, id),
					Static:   p.arena.HasToken(id, "static"),
					Asterisk: p.arena.ChildOfType(id, "asterisk") != NoNode,
				})
			}
		}
	}
}

// qualifiedName returns the dotted name child of a package or import
// declaration.
func qualifiedName(a *Arena, decl NodeID) string {
	name := a.ChildOfType(decl, "scoped_identifier", "identifier")
	return strings.Join(strings.Fields(a.Text(name)), "")
}

func isComment(nodeType string) bool {
	return strings.HasSuffix(nodeType, "comment")
}

func firstError(n *sitter.Node) uint32 {
	if n.IsError() || n.IsMissing() {
		return n.StartPoint().Row
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			return firstError(child)
		}
	}
	return n.StartPoint().Row
}
