package sections

import (
	"regexp"
	"strings"
)

// Table is a materialized table body: rows of trimmed cells.
type Table struct {
	Rows [][]string
}

// Columns returns the width of the widest row.
func (t Table) Columns() int {
	n := 0
	for _, r := range t.Rows {
		n = max(n, len(r))
	}
	return n
}

var separatorRe = regexp.MustCompile(`^[|\-+\s]+$`)

// Materialize turns a pipe-delimited table body into rows. Separator lines
// such as "|---|---|" are skipped. ok is false when no row survives, in which
// case the caller renders the raw body instead.
func Materialize(body string) (t Table, ok bool) {
	for line := range strings.SplitSeq(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || separatorRe.MatchString(line) {
			continue
		}
		if !strings.Contains(line, "|") {
			continue
		}

		cells := strings.Split(line, "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if len(cells) > 0 && cells[0] == "" {
			cells = cells[1:]
		}
		if len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		if len(cells) == 0 {
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, len(t.Rows) > 0
}

// Lines returns the non-empty trimmed lines of a body, used for the raw
// fallback rendering and for previews.
func Lines(body string) []string {
	var out []string
	for line := range strings.SplitSeq(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
