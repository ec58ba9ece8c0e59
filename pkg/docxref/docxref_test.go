package docxref

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cognicore/docxref/pkg/docxref/masters"
	"github.com/cognicore/docxref/pkg/docxref/metrics"
	"github.com/cognicore/docxref/pkg/docxref/patterns"
	"github.com/cognicore/docxref/pkg/docxref/report"
	"github.com/cognicore/docxref/pkg/docxref/store/memstore"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func analyze(t *testing.T, e *Engine, docs []Document, tables ...masters.Table) *CorrelationReport {
	t.Helper()
	out, err := e.Analyze(context.Background(), Request{Documents: docs, Masters: tables, Now: fixedNow})
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestSharedStoreAcrossTwoDocuments(t *testing.T) {
	e := New(Options{})
	out := analyze(t, e, []Document{
		{ID: "doc_A", RawText: "Store VM_DL_001 sold 45 units"},
		{ID: "doc_B", RawText: "VM_DL_001 restocked"},
	})

	require.Len(t, out.CrossReferences, 1)
	ref := out.CrossReferences[0]
	assert.Equal(t, patterns.StoreID, ref.PatternType)
	assert.Equal(t, []string{"doc_A", "doc_B"}, ref.DocumentIDs)
	assert.Equal(t, []string{"VM_DL_001"}, ref.SharedValues)
	assert.Equal(t, 1, ref.SharedCount)
}

func TestPairwiseOverlapsStaySeparate(t *testing.T) {
	e := New(Options{})
	out := analyze(t, e, []Document{
		{ID: "doc_A", RawText: "Order for PRD1234 placed"},
		{ID: "doc_B", RawText: "PRD1234 and PRD5678 in stock"},
		{ID: "doc_C", RawText: "PRD5678 shipped"},
	})

	require.Len(t, out.CrossReferences, 2)
	for _, ref := range out.CrossReferences {
		assert.Equal(t, patterns.ProductID, ref.PatternType)
		assert.Len(t, ref.DocumentIDs, 2)
		assert.Contains(t, ref.DocumentIDs, "doc_B")
	}
	require.NotNil(t, out.Summary)
	assert.Equal(t, "doc_B", out.Summary.MostConnectedDocumentID)
	assert.Equal(t, patterns.ProductID, out.Summary.MostCommonPatternType)
	assert.Equal(t, 2, out.Summary.TotalCrossReferences)
}

func TestDocumentWithoutPatterns(t *testing.T) {
	e := New(Options{})
	out := analyze(t, e, []Document{{ID: "notes", RawText: "nothing worth noting here"}})

	require.Len(t, out.Extractions, 1)
	assert.Empty(t, out.Extractions[0].Values)
	assert.Empty(t, out.CrossReferences)
	assert.Nil(t, out.Summary)

	rep := out.Format(report.DefaultOptions())
	assert.Contains(t, rep.String(), "No values recur across the analysed files.")
}

func TestMastersWithoutCommonKey(t *testing.T) {
	e := New(Options{})
	out := analyze(t, e, nil,
		masters.Table{
			Name:       "ItemMaster",
			KeyColumns: []string{masters.KeyProductID},
			Rows:       []map[string]string{{"Product_ID": "PRD1001"}},
		},
		masters.Table{
			Name:       "StoreMaster",
			KeyColumns: []string{masters.KeyStoreID},
			Rows:       []map[string]string{{"Store_ID": "VM_DL_001"}},
		},
	)
	assert.Empty(t, out.MasterJoins)
	assert.Empty(t, out.CrossReferences)
}

func TestRepeatedValueCollapses(t *testing.T) {
	e := New(Options{})
	out := analyze(t, e, []Document{{
		ID:      "log",
		RawText: "VM_DL_001 VM_DL_001 VM_DL_001 VM_DL_001 VM_DL_001",
	}})

	require.Len(t, out.Extractions, 1)
	vals := out.Extractions[0].Values
	require.Len(t, vals, 1)
	assert.Equal(t, "VM_DL_001", vals[0].Value)
	assert.Equal(t, 5, vals[0].Occurrences)
}

func sampleDocs() []Document {
	return []Document{
		{ID: "sales.csv", RawText: "VM_DL_001,PRD1234,2024-01-05,\"12,500\"\nVM_MH_002,PRD5678,2024-01-06,\"8,000\""},
		{ID: "returns.txt", RawText: "Return at VM_DL_001 of PRD1234 on 2024-01-05"},
		{ID: "audit.html", RawText: "Audit VM_MH_002 and VM_DL_001, contact ops@example.com"},
		{ID: "mail.txt", RawText: "ops@example.com reported PRD5678 shortfall"},
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	e := New(Options{})
	first := analyze(t, e, sampleDocs())
	second := analyze(t, e, sampleDocs())

	assert.Equal(t, first.Extractions, second.Extractions)
	assert.Equal(t, first.CrossReferences, second.CrossReferences)
	assert.Equal(t, first.Summary, second.Summary)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAnalyzeIgnoresDocumentOrder(t *testing.T) {
	e := New(Options{})
	docs := sampleDocs()
	forward := analyze(t, e, docs)

	reversed := make([]Document, len(docs))
	for i, d := range docs {
		reversed[len(docs)-1-i] = d
	}
	backward := analyze(t, e, reversed)

	require.NotEmpty(t, forward.CrossReferences)
	assert.Equal(t, forward.CrossReferences, backward.CrossReferences)
	assert.Equal(t, forward.Summary, backward.Summary)
}

func TestCrossReferencesNeverSingleDocument(t *testing.T) {
	e := New(Options{})
	out := analyze(t, e, sampleDocs())
	for _, ref := range out.CrossReferences {
		assert.GreaterOrEqual(t, len(ref.DocumentIDs), 2)
		assert.NotEmpty(t, ref.SharedValues)
		assert.Equal(t, len(ref.SharedValues), ref.SharedCount)
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(Options{})
	_, err := e.Analyze(ctx, Request{Documents: sampleDocs()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeSavesToStore(t *testing.T) {
	st := memstore.New()
	e := New(Options{Store: st})
	defer e.Close()

	out := analyze(t, e, []Document{
		{ID: "a", DisplayName: "a.txt", RawText: "Store VM_DL_001"},
		{ID: "b", DisplayName: "b.txt", RawText: "VM_DL_001 again"},
	})

	got, ok, err := st.GetReport(context.Background(), out.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a.txt", "b.txt"}, got.Documents)
	assert.Equal(t, 1, got.TotalCrossReferences)
	assert.Equal(t, "a", got.MostConnectedDocumentID)
	assert.Equal(t, patterns.StoreID, got.MostCommonPatternType)
	assert.Contains(t, got.Text, "a.txt + b.txt share 1 Store ID values (VM_DL_001)")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(got.JSON), &decoded))
	assert.Equal(t, out.ID, decoded["id"])
	assert.Contains(t, decoded, "rendered")
	assert.NotContains(t, got.JSON, "again")
}

func TestAnalyzeRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := New(Options{Metrics: metrics.New(reg)})
	analyze(t, e, sampleDocs())

	families, err := reg.Gather()
	require.NoError(t, err)
	found := make(map[string]bool)
	for _, f := range families {
		found[f.GetName()] = true
	}
	assert.True(t, found["docxref_documents_total"])
	assert.True(t, found["docxref_cross_references_total"])
	assert.True(t, found["docxref_analysis_duration_seconds"])

	stores := 0.0
	for _, f := range families {
		if f.GetName() != "docxref_extracted_values_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			if m.GetLabel()[0].GetValue() == patterns.StoreID {
				stores = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 5.0, stores)

	n, err := testutil.GatherAndCount(reg, "docxref_analyses_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAnalyzeLogsSummary(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := New(Options{Logger: zap.New(core)})
	out := analyze(t, e, sampleDocs())

	entries := logs.FilterMessage("analysis complete").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, out.ID, fields["report_id"])
	assert.EqualValues(t, 4, fields["documents"])
	assert.Equal(t, out.Summary.MostConnectedDocumentID, fields["most_connected"])
}

func TestFormatUsesDisplayNamesAndDuplicates(t *testing.T) {
	e := New(Options{})
	rows := [][]string{
		{"VM_DL_001", "PRD1234", "10"},
		{"VM_DL_001", "PRD1234", "10"},
		{"VM_MH_002", "PRD5678", "4"},
	}
	out := analyze(t, e, []Document{
		{ID: "1", DisplayName: "sales.csv", RawText: "VM_DL_001 PRD1234 VM_DL_001 PRD1234 VM_MH_002 PRD5678", Columns: []string{"Store_ID", "Product_ID", "Qty"}, Rows: rows},
		{ID: "2", DisplayName: "notes.txt", RawText: "PRD5678 low"},
	})

	require.Contains(t, out.Duplicates, "1")
	assert.Equal(t, 3, out.Documents[0].RowCount)

	rep := out.Format(report.Options{MaxExamples: 1, MaxValuesPerType: 1})
	assert.Equal(t, out.ID, rep.ID)
	assert.Equal(t, []string{"sales.csv", "notes.txt"}, rep.Files)
	assert.Equal(t, 1, rep.Summaries[0].DuplicateRows)
	require.Len(t, rep.Links, 1)
	assert.Equal(t, []string{"sales.csv", "notes.txt"}, rep.Links[0].Sources)
	assert.Equal(t, "sales.csv", out.DocumentName("1"))
	assert.Equal(t, "missing", out.DocumentName("missing"))
}

func TestCustomRegistry(t *testing.T) {
	reg := patterns.MustNew([]patterns.Definition{{TypeName: "ticket", Regex: `T-\d+`}})
	e := New(Options{Registry: reg})
	assert.Same(t, reg, e.Registry())

	out := analyze(t, e, []Document{
		{ID: "a", RawText: "T-1 and VM_DL_001"},
		{ID: "b", RawText: "T-1 and VM_DL_001"},
	})
	require.Len(t, out.CrossReferences, 1)
	assert.Equal(t, "ticket", out.CrossReferences[0].PatternType)
}

func TestNormalizeDocuments(t *testing.T) {
	in := []Document{
		{DisplayName: "a.txt"},
		{},
		{ID: "x"},
		{ID: "x"},
	}
	out := normalizeDocuments(in)

	assert.Equal(t, "a.txt", out[0].ID)
	assert.Equal(t, "document-2", out[1].ID)
	assert.Equal(t, "document-2", out[1].DisplayName)
	assert.Equal(t, "x", out[2].ID)
	assert.Equal(t, "x#2", out[3].ID)
	assert.Empty(t, in[1].ID)
}

func TestNormalizeDocumentsSuffixCollision(t *testing.T) {
	out := normalizeDocuments([]Document{{ID: "a"}, {ID: "a"}, {ID: "a#2"}, {ID: "a"}})

	ids := make([]string, len(out))
	for i, d := range out {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"a", "a#2", "a#2#2", "a#3"}, ids)

	out = normalizeDocuments([]Document{{ID: "a"}, {ID: "a#2"}, {ID: "a"}})
	assert.Equal(t, "a#3", out[2].ID)
}

func TestCollidingIDsStayDistinctSources(t *testing.T) {
	e := New(Options{})
	out := analyze(t, e, []Document{
		{ID: "a", RawText: "VM_DL_001"},
		{ID: "a", RawText: "VM_DL_001"},
		{ID: "a#2", RawText: "VM_DL_001"},
	})

	require.Len(t, out.CrossReferences, 1)
	assert.Equal(t, []string{"a", "a#2", "a#2#2"}, out.CrossReferences[0].DocumentIDs)
}
