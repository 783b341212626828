package worddiff

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// cursor tracks one side of the diff.
type cursor struct {
	lines []string
	row   int
	col   int
}

// newline moves to the next line once the current one is consumed. A '~'
// entry stands for a line end on either side, so the side that is still
// inside its line stays put.
func (c *cursor) newline() {
	if c.row < len(c.lines) && c.col == len(c.lines[c.row]) {
		c.row++
		c.col = 0
	}
}

// ParsePorcelain reads the output of git diff --word-diff=porcelain for the
// texts before and after.
func ParsePorcelain(output string, before, after []string) (Result, error) {
	var res Result
	old, cur := &cursor{lines: before}, &cursor{lines: after}
	inHunk := false

	sc := bufio.NewScanner(strings.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if m := hunkHeader.FindStringSubmatch(line); m != nil {
			oldStart, _ := strconv.Atoi(m[1])
			newStart, _ := strconv.Atoi(m[2])
			old.row, old.col = max(oldStart-1, 0), 0
			cur.row, cur.col = max(newStart-1, 0), 0
			inHunk = true
			continue
		}
		if !inHunk || line == "" {
			continue
		}
		text := line[1:]
		switch line[0] {
		case ' ':
			old.col += len(text)
			cur.col += len(text)
		case '-':
			res.Removed = append(res.Removed, span(old.row, old.col, len(text)))
			old.col += len(text)
		case '+':
			res.Inserted = append(res.Inserted, span(cur.row, cur.col, len(text)))
			cur.col += len(text)
		case '~':
			old.newline()
			cur.newline()
		case '\\':
			// "\ No newline at end of file"
		default:
			return Result{}, fmt.Errorf("%w: unexpected porcelain line %q", ErrProcess, line)
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrProcess, err)
	}
	return res, nil
}
