// Package textsrc decodes uploaded files into documents and master tables.
package textsrc

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/cognicore/docxref/pkg/docxref"
	"github.com/cognicore/docxref/pkg/docxref/config"
	"github.com/cognicore/docxref/pkg/docxref/masters"
)

// Limits caps how much of one upload reaches the engine. Zero means no cap.
type Limits struct {
	MaxTextBytes int
	MaxRows      int
}

// LimitsFrom takes the input caps out of settings.
func LimitsFrom(s config.Settings) Limits {
	return Limits{MaxTextBytes: s.MaxTextBytes, MaxRows: s.MaxRows}
}

// Loader reads documents from disk.
type Loader struct {
	Limits Limits
	Logger *zap.Logger
}

func (l Loader) log() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

// Record is one line of a JSONL document batch
type Record struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Text    string     `json:"text"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// LoadFromJSONL loads documents from a JSONL file. Malformed lines are
// skipped with a warning; records without an id get a random one.
func (l Loader) LoadFromJSONL(path string) ([]docxref.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var docs []docxref.Document
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			l.log().Warn("skipping malformed record",
				zap.String("path", path), zap.Int("line", line), zap.Error(err))
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.Name == "" {
			rec.Name = rec.ID
		}

		doc := docxref.Document{
			ID:          rec.ID,
			DisplayName: rec.Name,
			Columns:     rec.Columns,
		}
		rows := l.capRows(rec.Rows, rec.Name)
		if len(rows) > 0 {
			doc.Rows = rows
			doc.RowCount = len(rows)
		}
		text := rec.Text
		if text == "" && len(rows) > 0 {
			text = rowsText(rows)
		}
		doc.RawText = l.capText(text, rec.Name)
		docs = append(docs, doc)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no valid documents found in %s", path)
	}
	return docs, nil
}

// LoadFile decodes one upload by extension: .csv and .tsv become tabular
// documents, .html and .htm are reduced to their text, anything else is
// read as plain text.
func (l Loader) LoadFile(path string) (docxref.Document, error) {
	name := filepath.Base(path)
	doc := docxref.Document{ID: name, DisplayName: name}

	f, err := os.Open(path)
	if err != nil {
		return doc, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		header, rows, err := readTable(f, filepath.Ext(path))
		if err != nil {
			return doc, fmt.Errorf("parse %s: %w", path, err)
		}
		rows = l.capRows(rows, name)
		doc.Columns = header
		doc.Rows = rows
		doc.RowCount = len(rows)
		doc.RawText = l.capText(rowsText(rows), name)
	case ".html", ".htm":
		text, err := StripHTML(f)
		if err != nil {
			return doc, fmt.Errorf("parse %s: %w", path, err)
		}
		doc.RawText = l.capText(text, name)
	default:
		data, err := io.ReadAll(f)
		if err != nil {
			return doc, fmt.Errorf("read %s: %w", path, err)
		}
		doc.RawText = l.capText(string(data), name)
	}

	l.log().Debug("loaded file",
		zap.String("name", name),
		zap.Int("bytes", len(doc.RawText)),
		zap.Int("rows", doc.RowCount))
	return doc, nil
}

// LoadMasterCSV reads a master table. The first row names the columns.
func (l Loader) LoadMasterCSV(name, path string, keyColumns []string) (masters.Table, error) {
	t := masters.Table{Name: name, KeyColumns: keyColumns}

	f, err := os.Open(path)
	if err != nil {
		return t, fmt.Errorf("open master %s: %w", name, err)
	}
	defer f.Close()

	header, rows, err := readTable(f, filepath.Ext(path))
	if err != nil {
		return t, fmt.Errorf("parse master %s: %w", name, err)
	}
	rows = l.capRows(rows, name)

	t.Rows = make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		t.Rows = append(t.Rows, m)
	}
	return t, nil
}

// LoadMasters reads every table listed in a catalog.
func (l Loader) LoadMasters(cat *config.Catalog) ([]masters.Table, error) {
	if cat == nil {
		return nil, nil
	}
	tables := make([]masters.Table, 0, len(cat.Masters))
	for _, src := range cat.Masters {
		t, err := l.LoadMasterCSV(src.Name, src.Path, src.KeyColumns)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func readTable(r io.Reader, ext string) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	if strings.EqualFold(ext, ".tsv") {
		cr.Comma = '\t'
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}

// StripHTML returns the visible text of an HTML document, one text node
// per line. Script and style content is dropped.
func StripHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var parts []string
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return strings.Join(parts, "\n"), nil
}

// cellSep separates cells in flattened rows. Amount patterns never span it,
// so adjacent numeric cells stay separate values.
const cellSep = " | "

func rowsText(rows [][]string) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(strings.Join(row, cellSep))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (l Loader) capRows(rows [][]string, name string) [][]string {
	if l.Limits.MaxRows <= 0 || len(rows) <= l.Limits.MaxRows {
		return rows
	}
	l.log().Warn("truncating rows",
		zap.String("name", name),
		zap.Int("rows", len(rows)),
		zap.Int("max_rows", l.Limits.MaxRows))
	return rows[:l.Limits.MaxRows]
}

func (l Loader) capText(s, name string) string {
	if l.Limits.MaxTextBytes <= 0 || len(s) <= l.Limits.MaxTextBytes {
		return s
	}
	l.log().Warn("truncating text",
		zap.String("name", name),
		zap.Int("bytes", len(s)),
		zap.Int("max_text_bytes", l.Limits.MaxTextBytes))
	return Truncate(s, l.Limits.MaxTextBytes)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
