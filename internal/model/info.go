package model

import "fmt"

// Position is a 1-based (line, column) location inside one file.
type Position struct {
	Line   int
	Column int
}

func (p Position) Before(o Position) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Column < o.Column)
}

func (p Position) After(o Position) bool {
	return o.Before(p)
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Info is a token span inside one file. A span ending at column 0 of a line
// covers everything up to the end of the previous line.
type Info struct {
	Begin Position
	End   Position
}

func NewInfo(beginLine, beginCol, endLine, endCol int) Info {
	return Info{Begin: Position{beginLine, beginCol}, End: Position{endLine, endCol}}
}

// Intersects reports whether the two spans share at least one position.
func (i Info) Intersects(o Info) bool {
	return !(i.Begin.After(o.End) || i.End.Before(o.Begin))
}

// RowOffset shifts both ends of the span by n lines.
func (i Info) RowOffset(n int) Info {
	return Info{
		Begin: Position{i.Begin.Line + n, i.Begin.Column},
		End:   Position{i.End.Line + n, i.End.Column},
	}
}

func (i Info) String() string {
	return fmt.Sprintf("[%s-%s]", i.Begin, i.End)
}
