package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		msg     string
		hasDocs bool
		want    Intent
	}{
		{"Hi!", false, Greeting},
		{"good morning team", true, Greeting},
		{"hello, compare these two files", true, ComparisonRequest},
		{"What do the sales and stock files have in common?", true, ComparisonRequest},
		{"compare the weather in Delhi and Pune", false, GeneralQuestion},
		{"How many rows are in the sales sheet?", true, FileQuestion},
		{"How many rows are in the sales sheet?", false, GeneralQuestion},
		{"what is GST?", true, GeneralQuestion},
		{"", true, GeneralQuestion},
		{"Hi, can you explain in detail how the quarterly numbers moved", false, GeneralQuestion},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.msg, tc.hasDocs), tc.msg)
	}
}

func TestNeedsReport(t *testing.T) {
	assert.True(t, ComparisonRequest.NeedsReport())
	assert.True(t, FileQuestion.NeedsReport())
	assert.False(t, Greeting.NeedsReport())
	assert.False(t, GeneralQuestion.NeedsReport())
	assert.Equal(t, "comparison_request", ComparisonRequest.String())
}
