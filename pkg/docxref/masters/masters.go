// Package masters resolves join relationships between curated master tables
// on their declared key columns.
package masters

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cognicore/docxref/pkg/docxref/index"
)

// Default join keys used when a table declares none.
const (
	KeyStoreID   = "Store_ID"
	KeyProductID = "Product_ID"
	KeyRegion    = "Region"
	KeyCity      = "City"
)

// DefaultKeyColumns lists the join keys considered for undeclared tables.
var DefaultKeyColumns = []string{KeyStoreID, KeyProductID, KeyRegion, KeyCity}

// Table is a named master table.
type Table struct {
	Name       string              `json:"name" yaml:"name"`
	Rows       []map[string]string `json:"rows" yaml:"rows"`
	KeyColumns []string            `json:"key_columns" yaml:"key_columns"`
}

// Keys returns the declared key columns, or the default keys present in
// any row when none are declared.
func (t Table) Keys() []string {
	if len(t.KeyColumns) > 0 {
		return t.KeyColumns
	}
	var keys []string
	for _, k := range DefaultKeyColumns {
		for _, row := range t.Rows {
			if _, ok := row[k]; ok {
				keys = append(keys, k)
				break
			}
		}
	}
	return keys
}

// Join says that Left and Right connect on JoinKey. MatchedRowCount counts
// rows of Left, duplicates included, whose key value also appears in Right;
// it is at least 1 and never more than the number of rows in Left.
type Join struct {
	Left            string   `json:"left"`
	Right           string   `json:"right"`
	JoinKey         string   `json:"join_key"`
	MatchedRowCount int      `json:"matched_row_count"`
	SharedValues    []string `json:"shared_values"`
}

func cell(row map[string]string, col string) string {
	return strings.TrimSpace(row[col])
}

// Resolve finds every join between pairs of tables. Pairs without a common
// key column or without overlapping values are skipped.
func Resolve(tables []Table) []Join {
	// sources are table positions so tables sharing a name stay apart
	b := index.NewBuilder()
	for i, t := range tables {
		src := source(i)
		for _, key := range t.Keys() {
			for _, row := range t.Rows {
				b.Add(src, key, cell(row, key))
			}
		}
	}
	idx := b.Build()

	var joins []Join
	for i := 0; i < len(tables); i++ {
		for j := i + 1; j < len(tables); j++ {
			left, right := tables[i], tables[j]
			if left.Name == right.Name {
				continue
			}
			for _, key := range commonKeys(left.Keys(), right.Keys()) {
				shared := idx.Shared(key, source(i), source(j))
				if len(shared) == 0 {
					continue
				}
				values := make(map[string]struct{}, len(shared))
				names := make([]string, 0, len(shared))
				for _, e := range shared {
					values[e.Value] = struct{}{}
					names = append(names, e.Value)
				}
				sort.Strings(names)

				matched := 0
				for _, row := range left.Rows {
					if _, ok := values[cell(row, key)]; ok {
						matched++
					}
				}
				if matched == 0 {
					continue
				}
				joins = append(joins, Join{
					Left:            left.Name,
					Right:           right.Name,
					JoinKey:         key,
					MatchedRowCount: matched,
					SharedValues:    names,
				})
			}
		}
	}

	sort.SliceStable(joins, func(i, j int) bool {
		a, b := joins[i], joins[j]
		if a.MatchedRowCount != b.MatchedRowCount {
			return a.MatchedRowCount > b.MatchedRowCount
		}
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		if a.Right != b.Right {
			return a.Right < b.Right
		}
		return a.JoinKey < b.JoinKey
	})
	return joins
}

func source(i int) string {
	return "#" + strconv.Itoa(i)
}

func commonKeys(left, right []string) []string {
	in := make(map[string]struct{}, len(right))
	for _, k := range right {
		in[k] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{})
	for _, k := range left {
		if _, ok := in[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
