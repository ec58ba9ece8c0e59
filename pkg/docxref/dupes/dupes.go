// Package dupes surfaces literal duplicate rows inside one tabular document.
// Rows are compared cell by cell after trimming surrounding whitespace; there
// is no fuzzy matching.
package dupes

import "strings"

// Group is a set of row indices (0-based, data rows only) that are identical.
type Group struct {
	Rows   []int    `json:"rows"`
	Values []string `json:"values"`
}

// Find returns one Group per distinct row that appears more than once, in
// order of first appearance. Blank rows are ignored.
func Find(rows [][]string) []Group {
	var order []string
	groups := make(map[string]*Group)

	for i, row := range rows {
		cells := make([]string, len(row))
		blank := true
		for j, c := range row {
			cells[j] = strings.TrimSpace(c)
			if cells[j] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		key := strings.Join(cells, "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &Group{Values: cells}
			groups[key] = g
			order = append(order, key)
		}
		g.Rows = append(g.Rows, i)
	}

	var out []Group
	for _, key := range order {
		if g := groups[key]; len(g.Rows) > 1 {
			out = append(out, *g)
		}
	}
	return out
}

// Count returns the number of surplus rows: rows that repeat an earlier row.
func Count(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Rows) - 1
	}
	return n
}
