// Package intent classifies a chat message so the orchestration layer can
// decide whether a correlation report is needed at all.
package intent

import (
	"strings"
	"unicode"
)

// Intent is the kind of request a user message carries.
type Intent int

const (
	GeneralQuestion Intent = iota
	Greeting
	FileQuestion
	ComparisonRequest
)

func (i Intent) String() string {
	switch i {
	case Greeting:
		return "greeting"
	case FileQuestion:
		return "file_question"
	case ComparisonRequest:
		return "comparison_request"
	default:
		return "general_question"
	}
}

// NeedsReport reports whether answering requires the correlation report.
func (i Intent) NeedsReport() bool {
	return i == FileQuestion || i == ComparisonRequest
}

var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "hii": {}, "namaste": {},
	"thanks": {}, "thank": {}, "good morning": {}, "good evening": {}, "good afternoon": {},
}

// substrings; "correlat" covers correlate/correlation
var comparisonKeywords = []string{
	"compare", "comparison", "correlat", "cross-ref", "cross ref", "relationship",
	"in common", "common between", "overlap", "match", "versus", " vs ", "difference",
	"connect", "link between", "join",
}

var fileKeywords = []string{
	"file", "document", "sheet", "upload", "report", "data", "csv", "excel", "pdf",
	"row", "column", "store", "product", "invoice", "sales",
}

// Classify tags message. hasDocuments says whether documents are attached to
// the conversation; file questions require them.
func Classify(message string, hasDocuments bool) Intent {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return GeneralQuestion
	}
	padded := " " + strings.Join(strings.FieldsFunc(msg, isSeparator), " ") + " "

	if hasDocuments {
		for _, kw := range comparisonKeywords {
			if strings.Contains(padded, kw) {
				return ComparisonRequest
			}
		}
	}

	if isGreeting(padded) {
		return Greeting
	}

	if hasDocuments {
		for _, kw := range fileKeywords {
			if strings.Contains(padded, kw) {
				return FileQuestion
			}
		}
	}
	return GeneralQuestion
}

// isGreeting accepts short messages made of a greeting and little else.
func isGreeting(padded string) bool {
	words := strings.Fields(padded)
	if len(words) == 0 || len(words) > 4 {
		return false
	}
	if _, ok := greetings[words[0]]; ok {
		return true
	}
	if len(words) >= 2 {
		if _, ok := greetings[words[0]+" "+words[1]]; ok {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '_')
}
