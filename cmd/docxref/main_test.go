package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/docxref/internal/llm"
	"github.com/cognicore/docxref/pkg/docxref/internalerr"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func twoFiles(t *testing.T) (string, string) {
	dir := t.TempDir()
	return writeFile(t, dir, "a.txt", "Store VM_DL_001 sold 45 units"),
		writeFile(t, dir, "b.html", "<html><body><p>VM_DL_001 restocked</p></body></html>")
}

func TestAnalyzeText(t *testing.T) {
	a, b := twoFiles(t)
	out, err := run(t, "", "analyze", "--file", a, "--file", b)
	require.NoError(t, err)

	assert.Contains(t, out, "Files analysed (2):")
	assert.Contains(t, out, "a.txt + b.html share 1 Store ID values (VM_DL_001)")
	assert.Contains(t, out, "Most connected file: a.txt")
	assert.Contains(t, out, "Total cross references: 1")
}

func TestAnalyzeJSON(t *testing.T) {
	a, b := twoFiles(t)
	out, err := run(t, "", "analyze", "--file", a, "--file", b, "--format", "json")
	require.NoError(t, err)

	var decoded struct {
		ID              string            `json:"id"`
		CrossReferences []json.RawMessage `json:"cross_references"`
		Rendered        struct {
			ID    string   `json:"id"`
			Files []string `json:"files"`
		} `json:"rendered"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.NotEmpty(t, decoded.ID)
	assert.Equal(t, decoded.ID, decoded.Rendered.ID)
	assert.Len(t, decoded.CrossReferences, 1)
	assert.Equal(t, []string{"a.txt", "b.html"}, decoded.Rendered.Files)
	assert.NotContains(t, out, "sold 45 units")
}

func TestAnalyzeMasterCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "items.csv", "Product_ID,Name\nPRD1001,Soap\nPRD1002,Oil\nPRD1003,Rice\n")
	writeFile(t, dir, "sales.csv", "Product_ID,Qty\nPRD1001,2\nPRD1002,1\nPRD1001,5\n")
	writeFile(t, dir, "stores.csv", "Store_ID,City\nVM_DL_001,Delhi\n")
	catalog := writeFile(t, dir, "masters.yaml", `
masters:
  - name: ItemMaster
    path: items.csv
    key_columns: [Product_ID]
  - name: SalesMaster
    path: sales.csv
    key_columns: [Product_ID]
  - name: StoreMaster
    path: stores.csv
    key_columns: [Store_ID]
`)

	out, err := run(t, "", "analyze", "--catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "ItemMaster joins SalesMaster on Product_ID: 2 matching rows (PRD1001, PRD1002)")
	assert.NotContains(t, out, "StoreMaster joins")
	assert.Contains(t, out, "Master table joins: 1")
}

func TestAnalyzeRequiresInput(t *testing.T) {
	_, err := run(t, "", "analyze")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestAnalyzeRejectsFormat(t *testing.T) {
	a, _ := twoFiles(t)
	_, err := run(t, "", "analyze", "--file", a, "--format", "xml")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestAnalyzeBadPatterns(t *testing.T) {
	a, _ := twoFiles(t)
	bad := writeFile(t, t.TempDir(), "patterns.yaml", "patterns:\n  - {type: x, regex: '(['}\n")
	_, err := run(t, "", "analyze", "--file", a, "--patterns", bad)
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestAnalyzeGreetingNeedsNoModel(t *testing.T) {
	a, b := twoFiles(t)
	out, err := run(t, "", "analyze", "--file", a, "--file", b, "--question", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Answer (greeting):")
	assert.Contains(t, out, llm.GreetingReply)
}

func TestAnalyzeQuestionWithoutModel(t *testing.T) {
	a, b := twoFiles(t)
	_, err := run(t, "", "analyze", "--file", a, "--file", b, "--question", "compare these files")
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestAnalyzeQuestionWithModel(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) == 2 {
			prompt = req.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Both files mention VM_DL_001."}}]}`))
	}))
	defer srv.Close()

	a, b := twoFiles(t)
	out, err := run(t, "", "analyze", "--file", a, "--file", b,
		"--question", "compare these files", "--llm-base", srv.URL, "--llm-model", "test")
	require.NoError(t, err)
	assert.Contains(t, out, "Answer (comparison_request):\nBoth files mention VM_DL_001.")
	assert.Contains(t, prompt, "a.txt + b.html share 1 Store ID values")
}

func TestAnalyzeMetricsFile(t *testing.T) {
	a, b := twoFiles(t)
	path := filepath.Join(t.TempDir(), "metrics.prom")
	_, err := run(t, "", "analyze", "--file", a, "--file", b, "--metrics-file", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "docxref_documents_total 2")
	assert.Contains(t, string(data), `docxref_cross_references_total{pattern_type="store_id"} 1`)
}

func TestHistory(t *testing.T) {
	a, b := twoFiles(t)
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := run(t, "", "analyze", "--file", a, "--file", b, "--db", db, "--format", "json")
	require.NoError(t, err)
	var first struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &first))

	list, err := run(t, "", "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, list, "MOST CONNECTED")
	assert.Contains(t, list, first.ID)
	assert.Contains(t, list, "a.txt, b.html")

	byDoc, err := run(t, "", "history", "--db", db, "--document", "b.html")
	require.NoError(t, err)
	assert.Contains(t, byDoc, first.ID)

	none, err := run(t, "", "history", "--db", db, "--document", "other.csv")
	require.NoError(t, err)
	assert.Contains(t, none, "No saved reports.")

	shown, err := run(t, "", "history", "--db", db, "--id", first.ID)
	require.NoError(t, err)
	assert.Contains(t, shown, "Report "+first.ID)
	assert.Contains(t, shown, "a.txt + b.html share 1 Store ID values (VM_DL_001)")

	_, err = run(t, "", "history", "--db", db, "--id", "missing")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)

	_, err = run(t, "", "history")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestChatWithoutModel(t *testing.T) {
	a, b := twoFiles(t)
	out, err := run(t, "hello\n\ncompare the files\nreport\nwhat is the weather\n", "chat", "--file", a, "--file", b)
	require.NoError(t, err)

	assert.Contains(t, out, "Loaded 2 files.")
	assert.Contains(t, out, llm.GreetingReply)
	assert.Contains(t, out, "Total cross references: 1")
	assert.Contains(t, out, "Files analysed (2):")
	assert.Contains(t, out, "Error: ")
}

func TestPatterns(t *testing.T) {
	out, err := run(t, "", "patterns")
	require.NoError(t, err)
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "store_id")
	assert.Contains(t, out, "Store ID")
	assert.Contains(t, out, "upper")
	assert.Contains(t, out, "email")
}

func TestPatternsCustomFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "patterns.yaml", "patterns:\n  - {type: ticket, regex: 'T-\\d+', label: Ticket}\n")
	out, err := run(t, "", "patterns", "--patterns", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ticket")
	assert.Contains(t, out, "Ticket")
	assert.NotContains(t, out, "store_id")
}

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		l, err := newLogger(lvl)
		require.NoError(t, err, lvl)
		assert.NotNil(t, l)
	}
	_, err := newLogger("loud")
	assert.Error(t, err)
}
