package worddiff

import (
	"context"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"

	"untangle/internal/model"
)

// Builtin matches whitespace-separated words of both sides in process. Its
// words are the ones git uses by default.
type Builtin struct{}

type word struct {
	text string
	row  int
	col  int
}

func words(lines []string) []word {
	var out []word
	for row, line := range lines {
		start := -1
		for col, r := range line {
			switch {
			case unicode.IsSpace(r) && start >= 0:
				out = append(out, word{line[start:col], row, start})
				start = -1
			case !unicode.IsSpace(r) && start < 0:
				start = col
			}
		}
		if start >= 0 {
			out = append(out, word{line[start:], row, start})
		}
	}
	return out
}

func texts(ws []word) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.text
	}
	return out
}

func spans(ws []word) []model.Info {
	out := make([]model.Info, 0, len(ws))
	for _, w := range ws {
		out = append(out, span(w.row, w.col, len(w.text)))
	}
	return out
}

func (Builtin) Diff(ctx context.Context, before, after []string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	a, b := words(before), words(after)
	m := difflib.NewMatcherWithJunk(texts(a), texts(b), false, nil)

	var res Result
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			res.Removed = append(res.Removed, spans(a[op.I1:op.I2])...)
			res.Inserted = append(res.Inserted, spans(b[op.J1:op.J2])...)
		case 'd':
			res.Removed = append(res.Removed, spans(a[op.I1:op.I2])...)
		case 'i':
			res.Inserted = append(res.Inserted, spans(b[op.J1:op.J2])...)
		}
	}
	return res, nil
}
