// Package rank aggregates cross references into the summary insights of a
// correlation report.
package rank

import (
	"sort"

	"github.com/cognicore/docxref/pkg/docxref/match"
)

// OrderFunc reports the registry position of a pattern type.
type OrderFunc func(patternType string) (int, bool)

// DocumentScore is the total shared count of one document across every
// cross reference it takes part in.
type DocumentScore struct {
	DocumentID      string `json:"document_id"`
	SharedTotal     int    `json:"shared_total"`
	CrossReferences int    `json:"cross_references"`
}

// PatternCount is the number of cross references of one pattern type.
type PatternCount struct {
	PatternType     string `json:"pattern_type"`
	CrossReferences int    `json:"cross_references"`
}

// Summary holds the ranked insights. A nil *Summary means there was
// nothing to rank.
type Summary struct {
	MostConnectedDocumentID string          `json:"most_connected_document_id"`
	MostCommonPatternType   string          `json:"most_common_pattern_type"`
	TotalCrossReferences    int             `json:"total_cross_references"`
	DocumentScores          []DocumentScore `json:"document_scores"`
	PatternCounts           []PatternCount  `json:"pattern_counts"`
}

// Ranker computes summaries. The order func breaks ties between pattern types.
type Ranker struct {
	order OrderFunc
}

// New creates a ranker. A nil order falls back to pattern type name order.
func New(order OrderFunc) *Ranker {
	if order == nil {
		order = func(string) (int, bool) { return 0, false }
	}
	return &Ranker{order: order}
}

// Summarize ranks refs. It returns nil for an empty list.
func (r *Ranker) Summarize(refs []match.CrossReference) *Summary {
	if len(refs) == 0 {
		return nil
	}

	docTotals := make(map[string]*DocumentScore)
	typeCounts := make(map[string]int)
	for _, ref := range refs {
		typeCounts[ref.PatternType]++
		for _, id := range ref.DocumentIDs {
			score, ok := docTotals[id]
			if !ok {
				score = &DocumentScore{DocumentID: id}
				docTotals[id] = score
			}
			score.SharedTotal += ref.SharedCount
			score.CrossReferences++
		}
	}

	scores := make([]DocumentScore, 0, len(docTotals))
	for _, s := range docTotals {
		scores = append(scores, *s)
	}
	// Highest total first; ties go to the lexicographically lowest id.
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].SharedTotal != scores[j].SharedTotal {
			return scores[i].SharedTotal > scores[j].SharedTotal
		}
		return scores[i].DocumentID < scores[j].DocumentID
	})

	counts := make([]PatternCount, 0, len(typeCounts))
	for typ, n := range typeCounts {
		counts = append(counts, PatternCount{PatternType: typ, CrossReferences: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].CrossReferences != counts[j].CrossReferences {
			return counts[i].CrossReferences > counts[j].CrossReferences
		}
		return r.before(counts[i].PatternType, counts[j].PatternType)
	})

	return &Summary{
		MostConnectedDocumentID: scores[0].DocumentID,
		MostCommonPatternType:   counts[0].PatternType,
		TotalCrossReferences:    len(refs),
		DocumentScores:          scores,
		PatternCounts:           counts,
	}
}

// before orders registered types by registry position, unregistered types
// after them by name.
func (r *Ranker) before(a, b string) bool {
	ia, okA := r.order(a)
	ib, okB := r.order(b)
	switch {
	case okA && okB:
		if ia != ib {
			return ia < ib
		}
	case okA:
		return true
	case okB:
		return false
	}
	return a < b
}
