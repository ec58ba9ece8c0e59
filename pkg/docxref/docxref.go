// Package docxref correlates independently uploaded business documents and
// master tables: which values recur across files, which files are most
// connected, and which master tables join on shared keys.
package docxref

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/docxref/pkg/docxref/dupes"
	"github.com/cognicore/docxref/pkg/docxref/extract"
	"github.com/cognicore/docxref/pkg/docxref/index"
	"github.com/cognicore/docxref/pkg/docxref/masters"
	"github.com/cognicore/docxref/pkg/docxref/match"
	"github.com/cognicore/docxref/pkg/docxref/metrics"
	"github.com/cognicore/docxref/pkg/docxref/patterns"
	"github.com/cognicore/docxref/pkg/docxref/rank"
	"github.com/cognicore/docxref/pkg/docxref/report"
	"github.com/cognicore/docxref/pkg/docxref/store"
)

// Engine is the correlation engine facade
type Engine struct {
	registry  *patterns.Registry
	extractor *extract.Extractor
	ranker    *rank.Ranker
	logger    *zap.Logger
	metrics   *metrics.Metrics
	store     store.Store
	workers   int
	reportOpt report.Options
}

// Options configures an Engine
type Options struct {
	// Registry defaults to patterns.Default().
	Registry *patterns.Registry
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	// Store, when set, receives every finished report.
	Store   store.Store
	Workers int
	// Report bounds the rendered report saved to Store.
	Report report.Options
}

// New creates an Engine with the given dependencies
func New(opts Options) *Engine {
	reg := opts.Registry
	if reg == nil {
		reg = patterns.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = extract.DefaultWorkers
	}
	return &Engine{
		registry:  reg,
		extractor: extract.New(reg),
		ranker:    rank.New(reg.Order),
		logger:    logger,
		metrics:   opts.Metrics,
		store:     opts.Store,
		workers:   workers,
		reportOpt: opts.Report,
	}
}

// Close cleanly shuts down the engine and its store
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Registry returns the pattern registry in use.
func (e *Engine) Registry() *patterns.Registry {
	return e.registry
}

// Document is one decoded upload. RowCount, Columns and Rows are only set
// for tabular sources.
type Document struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	RawText     string     `json:"-"`
	RowCount    int        `json:"row_count,omitempty"`
	Columns     []string   `json:"columns,omitempty"`
	Rows        [][]string `json:"-"`
}

// Request is one analysis.
type Request struct {
	Documents []Document
	Masters   []masters.Table
	// Now fixes the report timestamp; zero means time.Now().
	Now time.Time
}

// CorrelationReport is the structured outcome of one analysis.
type CorrelationReport struct {
	ID              string                   `json:"id"`
	GeneratedAt     time.Time                `json:"generated_at"`
	Documents       []Document               `json:"documents"`
	Extractions     []extract.Result         `json:"extractions"`
	CrossReferences []match.CrossReference   `json:"cross_references"`
	MasterJoins     []masters.Join           `json:"master_joins"`
	Duplicates      map[string][]dupes.Group `json:"duplicates,omitempty"`
	// Summary is nil when no value recurs across documents.
	Summary *rank.Summary `json:"summary,omitempty"`

	registry *patterns.Registry
}

// Analyze runs extraction, indexing, matching, ranking and master join
// resolution over req. Malformed or empty input yields a reduced report;
// the only runtime error is context cancellation or a failing store.
func (e *Engine) Analyze(ctx context.Context, req Request) (*CorrelationReport, error) {
	start := time.Now()
	now := req.Now
	if now.IsZero() {
		now = start
	}

	docs := normalizeDocuments(req.Documents)
	inputs := make([]extract.Input, len(docs))
	for i, d := range docs {
		inputs[i] = extract.Input{DocumentID: d.ID, Text: d.RawText}
	}

	results, err := e.extractor.ExtractAll(ctx, inputs, e.workers)
	if err != nil {
		e.metrics.ObserveAnalysis(metrics.OutcomeCancelled, time.Since(start))
		return nil, fmt.Errorf("extract: %w", err)
	}
	for _, r := range results {
		byType := r.ByType()
		counts := make(map[string]int, len(byType))
		for typ, vals := range byType {
			counts[typ] = len(vals)
		}
		e.metrics.ObserveDocument(counts)
		e.logger.Debug("extracted document",
			zap.String("document_id", r.DocumentID),
			zap.Int("distinct_values", len(r.Values)))
	}

	idx := index.FromExtractions(results)
	refs := match.CrossReferences(idx)
	for _, ref := range refs {
		e.metrics.ObserveCrossReference(ref.PatternType)
	}
	e.logger.Debug("matched documents",
		zap.Int("index_entries", idx.Len()),
		zap.Int("cross_references", len(refs)))

	joins := masters.Resolve(req.Masters)
	e.metrics.ObserveJoins(len(joins))
	if len(req.Masters) > 0 {
		e.logger.Debug("resolved master joins",
			zap.Int("tables", len(req.Masters)),
			zap.Int("joins", len(joins)))
	}

	var dup map[string][]dupes.Group
	for _, d := range docs {
		if len(d.Rows) == 0 {
			continue
		}
		if groups := dupes.Find(d.Rows); len(groups) > 0 {
			if dup == nil {
				dup = make(map[string][]dupes.Group)
			}
			dup[d.ID] = groups
		}
	}

	out := &CorrelationReport{
		ID:              ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		GeneratedAt:     now.UTC(),
		Documents:       docs,
		Extractions:     results,
		CrossReferences: refs,
		MasterJoins:     joins,
		Duplicates:      dup,
		Summary:         e.ranker.Summarize(refs),
		registry:        e.registry,
	}

	outcome := metrics.OutcomeOK
	if out.Summary == nil && len(joins) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	e.metrics.ObserveAnalysis(outcome, time.Since(start))

	fields := []zap.Field{
		zap.String("report_id", out.ID),
		zap.Int("documents", len(docs)),
		zap.Int("cross_references", len(refs)),
		zap.Int("master_joins", len(joins)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if out.Summary != nil {
		fields = append(fields,
			zap.String("most_connected", out.Summary.MostConnectedDocumentID),
			zap.String("most_common_type", out.Summary.MostCommonPatternType))
	}
	e.logger.Info("analysis complete", fields...)

	if e.store != nil {
		if err := e.save(ctx, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// Format renders the report with the given bounds.
func (r *CorrelationReport) Format(opts report.Options) report.Report {
	in := report.Input{
		ID:              r.ID,
		GeneratedAt:     r.GeneratedAt,
		CrossReferences: r.CrossReferences,
		MasterJoins:     r.MasterJoins,
		Summary:         r.Summary,
		Registry:        r.registry,
	}
	values := make(map[string][]extract.Value, len(r.Extractions))
	for _, x := range r.Extractions {
		values[x.DocumentID] = x.Values
	}
	for _, d := range r.Documents {
		in.Documents = append(in.Documents, report.DocumentInfo{
			ID:            d.ID,
			DisplayName:   d.DisplayName,
			RowCount:      d.RowCount,
			Columns:       d.Columns,
			Values:        values[d.ID],
			DuplicateRows: dupes.Count(r.Duplicates[d.ID]),
		})
	}
	return report.NewBuilder(opts).Build(in)
}

// DocumentName returns the display name of a document id.
func (r *CorrelationReport) DocumentName(id string) string {
	for _, d := range r.Documents {
		if d.ID == id {
			return d.DisplayName
		}
	}
	return id
}

func (e *Engine) save(ctx context.Context, r *CorrelationReport) error {
	rendered := r.Format(e.reportOpt)
	body, err := json.Marshal(struct {
		*CorrelationReport
		Rendered report.Report `json:"rendered"`
	}{r, rendered})
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	rec := store.Report{
		ID:                   r.ID,
		CreatedAt:            r.GeneratedAt,
		TotalCrossReferences: len(r.CrossReferences),
		Text:                 rendered.String(),
		JSON:                 string(body),
	}
	for _, d := range r.Documents {
		rec.Documents = append(rec.Documents, d.DisplayName)
	}
	if r.Summary != nil {
		rec.MostConnectedDocumentID = r.Summary.MostConnectedDocumentID
		rec.MostCommonPatternType = r.Summary.MostCommonPatternType
	}
	for _, ref := range r.CrossReferences {
		rec.CrossReferences = append(rec.CrossReferences, store.CrossReference{
			PatternType:  ref.PatternType,
			DocumentIDs:  ref.DocumentIDs,
			SharedValues: ref.SharedValues,
		})
	}

	if err := e.store.SaveReport(ctx, rec); err != nil {
		return fmt.Errorf("save report %s: %w", r.ID, err)
	}
	e.logger.Debug("saved report", zap.String("report_id", r.ID))
	return nil
}

// normalizeDocuments fills missing ids and display names and makes ids
// unique. The input slice is not modified.
func normalizeDocuments(in []Document) []Document {
	out := make([]Document, len(in))
	taken := make(map[string]struct{}, len(in))
	next := make(map[string]int)
	for i, d := range in {
		if d.ID == "" {
			d.ID = d.DisplayName
		}
		if d.ID == "" {
			d.ID = "document-" + strconv.Itoa(i+1)
		}
		if _, dup := taken[d.ID]; dup {
			base := d.ID
			n := max(next[base], 2)
			for {
				d.ID = base + "#" + strconv.Itoa(n)
				if _, used := taken[d.ID]; !used {
					break
				}
				n++
			}
			next[base] = n + 1
		}
		taken[d.ID] = struct{}{}
		if d.DisplayName == "" {
			d.DisplayName = d.ID
		}
		if d.RowCount == 0 && len(d.Rows) > 0 {
			d.RowCount = len(d.Rows)
		}
		out[i] = d
	}
	return out
}
