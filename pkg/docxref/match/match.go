// Package match turns an inverted index into cross references: groups of
// documents that share values of the same pattern type.
package match

import (
	"sort"
	"strings"

	"github.com/cognicore/docxref/pkg/docxref/index"
)

// CrossReference records that DocumentIDs all contain SharedValues.
type CrossReference struct {
	PatternType  string   `json:"pattern_type"`
	DocumentIDs  []string `json:"document_ids"`
	SharedValues []string `json:"shared_values"`
	SharedCount  int      `json:"shared_count"`
}

// group is the (pattern type, document set) key.
type group struct {
	patternType string
	docs        string
}

const sep = "\x00"

// CrossReferences groups every index entry found in two or more documents
// by pattern type and exact document set. Sorted by SharedCount desc, then
// PatternType asc, then document ids.
func CrossReferences(idx *index.Index) []CrossReference {
	var order []group
	byGroup := make(map[group]*CrossReference)

	for _, e := range idx.Entries() {
		if len(e.Sources) < 2 {
			continue
		}
		g := group{patternType: e.PatternType, docs: strings.Join(e.Sources, sep)}
		ref, ok := byGroup[g]
		if !ok {
			ids := make([]string, len(e.Sources))
			copy(ids, e.Sources)
			ref = &CrossReference{PatternType: e.PatternType, DocumentIDs: ids}
			byGroup[g] = ref
			order = append(order, g)
		}
		ref.SharedValues = append(ref.SharedValues, e.Value)
	}

	out := make([]CrossReference, 0, len(order))
	for _, g := range order {
		ref := byGroup[g]
		sort.Strings(ref.SharedValues)
		ref.SharedCount = len(ref.SharedValues)
		out = append(out, *ref)
	}

	Sort(out)
	return out
}

// Sort orders refs by SharedCount desc, PatternType asc, then document ids asc.
func Sort(refs []CrossReference) {
	sort.SliceStable(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.SharedCount != b.SharedCount {
			return a.SharedCount > b.SharedCount
		}
		if a.PatternType != b.PatternType {
			return a.PatternType < b.PatternType
		}
		return strings.Join(a.DocumentIDs, sep) < strings.Join(b.DocumentIDs, sep)
	})
}
