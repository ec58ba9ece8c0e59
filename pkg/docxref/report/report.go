// Package report formats a correlation analysis into fixed, ordered sections
// that can be shown directly or embedded into an LLM prompt.
package report

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"

	"github.com/cognicore/docxref/pkg/docxref/extract"
	"github.com/cognicore/docxref/pkg/docxref/masters"
	"github.com/cognicore/docxref/pkg/docxref/match"
	"github.com/cognicore/docxref/pkg/docxref/patterns"
	"github.com/cognicore/docxref/pkg/docxref/rank"
)

// Options bounds the size of a report.
type Options struct {
	// MaxExamples caps shared values listed per cross reference or join.
	MaxExamples int
	// MaxValuesPerType caps values listed per pattern type in a file summary.
	MaxValuesPerType int
}

// DefaultOptions returns the standard bounds.
func DefaultOptions() Options {
	return Options{MaxExamples: 5, MaxValuesPerType: 5}
}

// DocumentInfo is what the formatter may know about one analysed document.
// Raw text is deliberately absent.
type DocumentInfo struct {
	ID            string
	DisplayName   string
	RowCount      int
	Columns       []string
	Values        []extract.Value
	DuplicateRows int
}

// Input carries everything a report is built from.
type Input struct {
	// ID is kept when set; otherwise a new ULID is assigned.
	ID              string
	GeneratedAt     time.Time
	Documents       []DocumentInfo
	CrossReferences []match.CrossReference
	MasterJoins     []masters.Join
	Summary         *rank.Summary
	// Registry supplies pattern labels; nil falls back to type names.
	Registry *patterns.Registry
}

// ValueCount is one example value with its occurrence count.
type ValueCount struct {
	Value       string `json:"value"`
	Occurrences int    `json:"occurrences"`
}

// EntityGroup summarises one pattern type within one document.
type EntityGroup struct {
	PatternType string       `json:"pattern_type"`
	Label       string       `json:"label"`
	Distinct    int          `json:"distinct"`
	Total       int          `json:"total"`
	Examples    []ValueCount `json:"examples"`
}

// DocumentSummary is section 2 for one document.
type DocumentSummary struct {
	DocumentID    string        `json:"document_id"`
	DisplayName   string        `json:"display_name"`
	RowCount      int           `json:"row_count,omitempty"`
	Columns       []string      `json:"columns,omitempty"`
	DuplicateRows int           `json:"duplicate_rows,omitempty"`
	Entities      []EntityGroup `json:"entities"`
}

// Link kinds.
const (
	KindCrossReference = "cross_reference"
	KindMasterJoin     = "master_join"
)

// Link is one rendered cross reference or master join.
type Link struct {
	Kind     string   `json:"kind"`
	Sources  []string `json:"sources"`
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
	More     int      `json:"more,omitempty"`
}

// Report is the formatted output.
type Report struct {
	ID          string            `json:"id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Files       []string          `json:"files"`
	Summaries   []DocumentSummary `json:"summaries"`
	Links       []Link            `json:"links"`
	Insights    []string          `json:"insights"`
}

// Builder constructs reports.
type Builder struct {
	opts    Options
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewBuilder creates a builder. Zero option fields take their defaults.
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if opts.MaxExamples <= 0 {
		opts.MaxExamples = def.MaxExamples
	}
	if opts.MaxValuesPerType <= 0 {
		opts.MaxValuesPerType = def.MaxValuesPerType
	}
	return &Builder{
		opts:    opts,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (b *Builder) newID(at time.Time) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), b.entropy).String()
}

// Build assembles the report sections in their fixed order.
func (b *Builder) Build(in Input) Report {
	at := in.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	label := func(typ string) string {
		if in.Registry == nil {
			return typ
		}
		return in.Registry.Label(typ)
	}

	id := in.ID
	if id == "" {
		id = b.newID(at)
	}

	names := make(map[string]string, len(in.Documents))
	rep := Report{
		ID:          id,
		GeneratedAt: at.UTC(),
		Files:       make([]string, 0, len(in.Documents)),
		Summaries:   make([]DocumentSummary, 0, len(in.Documents)),
	}

	// 1. Files analysed
	for _, doc := range in.Documents {
		name := doc.DisplayName
		if name == "" {
			name = doc.ID
		}
		names[doc.ID] = name
		rep.Files = append(rep.Files, name)
	}

	// 2. Per-document entity summaries
	for _, doc := range in.Documents {
		rep.Summaries = append(rep.Summaries, b.summarise(doc, names[doc.ID], label))
	}

	// 3. Cross references, then master joins
	for _, ref := range in.CrossReferences {
		srcs := make([]string, len(ref.DocumentIDs))
		for i, id := range ref.DocumentIDs {
			srcs[i] = displayName(names, id)
		}
		examples, more := b.bound(ref.SharedValues)
		rep.Links = append(rep.Links, Link{
			Kind:     KindCrossReference,
			Sources:  srcs,
			Type:     ref.PatternType,
			Label:    label(ref.PatternType),
			Count:    ref.SharedCount,
			Examples: examples,
			More:     more,
		})
	}
	for _, j := range in.MasterJoins {
		examples, more := b.bound(j.SharedValues)
		rep.Links = append(rep.Links, Link{
			Kind:     KindMasterJoin,
			Sources:  []string{j.Left, j.Right},
			Type:     j.JoinKey,
			Label:    j.JoinKey,
			Count:    j.MatchedRowCount,
			Examples: examples,
			More:     more,
		})
	}

	// 4. Ranked insights
	rep.Insights = insights(in, names, label)
	return rep
}

func (b *Builder) summarise(doc DocumentInfo, name string, label func(string) string) DocumentSummary {
	sum := DocumentSummary{
		DocumentID:    doc.ID,
		DisplayName:   name,
		RowCount:      doc.RowCount,
		Columns:       doc.Columns,
		DuplicateRows: doc.DuplicateRows,
	}
	var order []string
	groups := make(map[string]*EntityGroup)
	for _, v := range doc.Values {
		g, ok := groups[v.PatternType]
		if !ok {
			g = &EntityGroup{PatternType: v.PatternType, Label: label(v.PatternType)}
			groups[v.PatternType] = g
			order = append(order, v.PatternType)
		}
		g.Distinct++
		g.Total += v.Occurrences
		if len(g.Examples) < b.opts.MaxValuesPerType {
			g.Examples = append(g.Examples, ValueCount{Value: v.Value, Occurrences: v.Occurrences})
		}
	}
	for _, typ := range order {
		sum.Entities = append(sum.Entities, *groups[typ])
	}
	return sum
}

func (b *Builder) bound(values []string) ([]string, int) {
	if len(values) <= b.opts.MaxExamples {
		return values, 0
	}
	return values[:b.opts.MaxExamples], len(values) - b.opts.MaxExamples
}

func insights(in Input, names map[string]string, label func(string) string) []string {
	var out []string
	if s := in.Summary; s != nil {
		top := s.DocumentScores[0]
		out = append(out,
			fmt.Sprintf("Most connected file: %s (%d shared values across %d cross references)",
				displayName(names, s.MostConnectedDocumentID), top.SharedTotal, top.CrossReferences),
			fmt.Sprintf("Most common correlation: %s (%d cross references)",
				label(s.MostCommonPatternType), s.PatternCounts[0].CrossReferences),
			fmt.Sprintf("Total cross references: %d", s.TotalCrossReferences),
		)
	} else {
		out = append(out, "No values recur across the analysed files.")
	}
	if n := len(in.MasterJoins); n > 0 {
		out = append(out, fmt.Sprintf("Master table joins: %d", n))
	}
	return out
}

func displayName(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id
}

// Render writes the report as plain text.
func (r Report) Render(w io.Writer) error {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Files analysed (%d):\n", len(r.Files))
	for i, f := range r.Files {
		fmt.Fprintf(&buf, "  %d. %s\n", i+1, f)
	}

	buf.WriteString("\nData summary:\n")
	for _, s := range r.Summaries {
		fmt.Fprintf(&buf, "  %s", s.DisplayName)
		var facts []string
		if s.RowCount > 0 {
			facts = append(facts, humanize.Comma(int64(s.RowCount))+" rows")
		}
		if len(s.Columns) > 0 {
			facts = append(facts, "columns: "+strings.Join(s.Columns, ", "))
		}
		if s.DuplicateRows > 0 {
			facts = append(facts, humanize.Comma(int64(s.DuplicateRows))+" duplicate rows")
		}
		if len(facts) > 0 {
			fmt.Fprintf(&buf, ": %s", strings.Join(facts, "; "))
		}
		buf.WriteString("\n")
		if len(s.Entities) == 0 {
			buf.WriteString("    no recognised entities\n")
		}
		for _, g := range s.Entities {
			ex := make([]string, len(g.Examples))
			for i, v := range g.Examples {
				ex[i] = fmt.Sprintf("%s x%s", display(g.PatternType, v.Value), humanize.Comma(int64(v.Occurrences)))
			}
			if more := g.Distinct - len(g.Examples); more > 0 {
				ex = append(ex, fmt.Sprintf("+%d more", more))
			}
			fmt.Fprintf(&buf, "    %s: %d distinct, %s occurrences (%s)\n",
				g.Label, g.Distinct, humanize.Comma(int64(g.Total)), strings.Join(ex, ", "))
		}
	}

	buf.WriteString("\nCross references:\n")
	if len(r.Links) == 0 {
		buf.WriteString("  none\n")
	}
	for i, l := range r.Links {
		ex := make([]string, len(l.Examples))
		for k, v := range l.Examples {
			ex[k] = display(l.Type, v)
		}
		if l.More > 0 {
			ex = append(ex, fmt.Sprintf("+%d more", l.More))
		}
		switch l.Kind {
		case KindMasterJoin:
			fmt.Fprintf(&buf, "  %d. %s joins %s on %s: %s matching rows (%s)\n",
				i+1, l.Sources[0], l.Sources[1], l.Label, humanize.Comma(int64(l.Count)), strings.Join(ex, ", "))
		default:
			fmt.Fprintf(&buf, "  %d. %s share %d %s values (%s)\n",
				i+1, strings.Join(l.Sources, " + "), l.Count, l.Label, strings.Join(ex, ", "))
		}
	}

	buf.WriteString("\nInsights:\n")
	for _, s := range r.Insights {
		fmt.Fprintf(&buf, "  - %s\n", s)
	}

	_, err := io.WriteString(w, buf.String())
	return err
}

// String renders the report as text.
func (r Report) String() string {
	var sb strings.Builder
	_ = r.Render(&sb)
	return sb.String()
}

func display(patternType, value string) string {
	if patternType == patterns.CurrencyAmount {
		return FormatINR(value)
	}
	return value
}
