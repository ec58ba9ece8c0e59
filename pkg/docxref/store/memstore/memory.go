package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/docxref/pkg/docxref/internalerr"
	"github.com/cognicore/docxref/pkg/docxref/store"
)

// Store is an in-memory implementation of store.Store for tests and
// one-shot CLI runs.
type Store struct {
	mu      sync.RWMutex
	reports map[string]store.Report
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{reports: make(map[string]store.Report)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveReport inserts or replaces a report, keyed by ID.
func (s *Store) SaveReport(ctx context.Context, r store.Report) error {
	if r.ID == "" {
		return fmt.Errorf("save report: %w: empty id", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = copyReport(r)
	return nil
}

// GetReport returns a report by ID.
func (s *Store) GetReport(ctx context.Context, id string) (store.Report, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return store.Report{}, false, nil
	}
	return copyReport(r), true, nil
}

// ListReports returns the newest reports first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]store.Report, error) {
	return s.filter(limit, func(store.Report) bool { return true }), nil
}

// ReportsForDocument returns the newest reports that include name.
func (s *Store) ReportsForDocument(ctx context.Context, name string, limit int) ([]store.Report, error) {
	return s.filter(limit, func(r store.Report) bool {
		for _, d := range r.Documents {
			if d == name {
				return true
			}
		}
		return false
	}), nil
}

func (s *Store) filter(limit int, keep func(store.Report) bool) []store.Report {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Report
	for _, r := range s.reports {
		if keep(r) {
			out = append(out, copyReport(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func copyReport(r store.Report) store.Report {
	r.Documents = append([]string(nil), r.Documents...)
	if len(r.CrossReferences) == 0 {
		r.CrossReferences = nil
		return r
	}
	refs := make([]store.CrossReference, len(r.CrossReferences))
	for i, ref := range r.CrossReferences {
		refs[i] = store.CrossReference{
			PatternType:  ref.PatternType,
			DocumentIDs:  append([]string(nil), ref.DocumentIDs...),
			SharedValues: append([]string(nil), ref.SharedValues...),
		}
	}
	r.CrossReferences = refs
	return r
}
