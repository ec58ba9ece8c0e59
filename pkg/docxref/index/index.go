// Package index builds the inverted index pattern type → value → sources
// shared by cross-document matching and master-table joins.
package index

import (
	"sort"

	"github.com/cognicore/docxref/pkg/docxref/extract"
)

// Entry is one (pattern type, value) key with every source containing it.
// Sources is sorted and never empty.
type Entry struct {
	PatternType string   `json:"pattern_type"`
	Value       string   `json:"value"`
	Sources     []string `json:"document_ids"`
}

type key struct {
	patternType string
	value       string
}

// Builder accumulates entries. A source is a document id or, for master
// tables, a table name.
type Builder struct {
	keys    []key
	sources map[key]map[string]struct{}
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{sources: make(map[key]map[string]struct{})}
}

// Add records that source contains value for patternType. Empty values are ignored.
func (b *Builder) Add(source, patternType, value string) {
	if value == "" {
		return
	}
	k := key{patternType: patternType, value: value}
	set, ok := b.sources[k]
	if !ok {
		set = make(map[string]struct{})
		b.sources[k] = set
		b.keys = append(b.keys, k)
	}
	set[source] = struct{}{}
}

// AddResult adds every value of one extraction result.
func (b *Builder) AddResult(r extract.Result) {
	for _, v := range r.Values {
		b.Add(r.DocumentID, v.PatternType, v.Value)
	}
}

// Build freezes the builder into an Index.
func (b *Builder) Build() *Index {
	idx := &Index{
		entries: make([]Entry, 0, len(b.keys)),
		lookup:  make(map[key]int, len(b.keys)),
	}
	for _, k := range b.keys {
		set := b.sources[k]
		srcs := make([]string, 0, len(set))
		for s := range set {
			srcs = append(srcs, s)
		}
		sort.Strings(srcs)
		idx.lookup[k] = len(idx.entries)
		idx.entries = append(idx.entries, Entry{
			PatternType: k.patternType,
			Value:       k.value,
			Sources:     srcs,
		})
	}
	return idx
}

// Index is a read-only inverted index.
type Index struct {
	entries []Entry
	lookup  map[key]int
}

// FromExtractions indexes a batch of extraction results.
func FromExtractions(results []extract.Result) *Index {
	b := NewBuilder()
	for _, r := range results {
		b.AddResult(r)
	}
	return b.Build()
}

// Entries returns all entries in first-seen key order.
func (idx *Index) Entries() []Entry {
	return idx.entries
}

// Len returns the number of distinct (pattern type, value) keys.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Lookup returns the entry for a pattern type and value.
func (idx *Index) Lookup(patternType, value string) (Entry, bool) {
	i, ok := idx.lookup[key{patternType: patternType, value: value}]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[i], true
}

// Shared returns the entries of patternType whose sources include every one of srcs.
func (idx *Index) Shared(patternType string, srcs ...string) []Entry {
	var out []Entry
	for _, e := range idx.entries {
		if e.PatternType != patternType || len(e.Sources) < len(srcs) {
			continue
		}
		if containsAll(e.Sources, srcs) {
			out = append(out, e)
		}
	}
	return out
}

func containsAll(sorted []string, want []string) bool {
	for _, w := range want {
		i := sort.SearchStrings(sorted, w)
		if i == len(sorted) || sorted[i] != w {
			return false
		}
	}
	return true
}
