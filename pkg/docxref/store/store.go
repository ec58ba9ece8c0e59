package store

import (
	"context"
	"time"
)

// Store persists finished correlation reports so earlier analyses can be
// listed and reopened. Uploaded document content is never stored.
type Store interface {
	Close() error

	SaveReport(ctx context.Context, r Report) error
	GetReport(ctx context.Context, id string) (Report, bool, error)
	// ListReports returns the newest reports first.
	ListReports(ctx context.Context, limit int) ([]Report, error)
	// ReportsForDocument returns the newest reports that analysed a document
	// with the given display name.
	ReportsForDocument(ctx context.Context, name string, limit int) ([]Report, error)
}

// Report is a stored correlation report.
type Report struct {
	ID                      string
	CreatedAt               time.Time
	Documents               []string // display names, in analysis order
	TotalCrossReferences    int
	MostConnectedDocumentID string
	MostCommonPatternType   string
	CrossReferences         []CrossReference
	Text                    string // rendered report
	JSON                    string // full report encoding
}

// CrossReference is the stored form of one cross reference.
type CrossReference struct {
	PatternType  string
	DocumentIDs  []string
	SharedValues []string
}

// DefaultListLimit applies when a caller passes limit <= 0.
const DefaultListLimit = 20
