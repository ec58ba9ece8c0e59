// Package extract scans document text against a pattern registry and folds
// the matches into distinct values with occurrence counts.
package extract

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/docxref/pkg/docxref/patterns"
)

// DefaultWorkers bounds parallel extraction when the caller passes 0.
const DefaultWorkers = 4

// Value is one distinct match of one pattern type within one document.
type Value struct {
	PatternType string `json:"pattern_type"`
	Value       string `json:"value"`
	Occurrences int    `json:"occurrence_count"`
}

// Input is the slice of a document the extractor needs.
type Input struct {
	DocumentID string
	Text       string
}

// Result is the immutable extraction output for one document.
type Result struct {
	DocumentID string  `json:"document_id"`
	Values     []Value `json:"values"`
}

// ByType groups the values of a result by pattern type, preserving order.
func (r Result) ByType() map[string][]Value {
	out := make(map[string][]Value)
	for _, v := range r.Values {
		out[v.PatternType] = append(out[v.PatternType], v)
	}
	return out
}

// Extractor applies every pattern of a registry to text.
type Extractor struct {
	registry *patterns.Registry
}

// New creates an extractor over reg.
func New(reg *patterns.Registry) *Extractor {
	return &Extractor{registry: reg}
}

// Extract returns the distinct values in text, in registry order and then
// first-seen order within a type. Empty text yields nil.
func (e *Extractor) Extract(text string) []Value {
	if text == "" {
		return nil
	}

	var out []Value
	for _, p := range e.registry.Patterns() {
		matches := p.FindAll(text)
		if len(matches) == 0 {
			continue
		}
		pos := make(map[string]int, len(matches))
		for _, m := range matches {
			if i, ok := pos[m]; ok {
				out[i].Occurrences++
				continue
			}
			pos[m] = len(out)
			out = append(out, Value{PatternType: p.TypeName, Value: m, Occurrences: 1})
		}
	}
	return out
}

// ExtractAll runs Extract over docs concurrently with at most workers
// goroutines. Results keep the order of docs. The only error is ctx's.
func (e *Extractor) ExtractAll(ctx context.Context, docs []Input, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]Result, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Result{
				DocumentID: doc.DocumentID,
				Values:     e.Extract(doc.Text),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
