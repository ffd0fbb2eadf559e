package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Grow gently.", "Grow gently."},
		{"**Grow** _gently_.", "Grow gently."},
		{"# Summary\n\nGrow\ngently.", "Summary Grow gently."},
		{"- one\n- two", "one two"},
		{"See [the plan](https://example.com) now", "See the plan now"},
		{"Use `rest` daily", "Use rest daily"},
		{"<div>hidden</div>\n\nVisible", "Visible"},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}

func TestSummarize_StripsQuotes(t *testing.T) {
	assert.Equal(t, "Grow gently.", Summarize(`"Grow gently."`, MaxSummaryRunes))
	assert.Equal(t, "Grow gently.", Summarize("“Grow gently.”", MaxSummaryRunes))
}

func TestSummarize_ShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "A quiet year.", Summarize("A quiet year.", MaxSummaryRunes))
}

func TestSummarize_CutsAtWordBoundary(t *testing.T) {
	long := strings.Repeat("steady ", 40)
	got := Summarize(long, 50)

	assert.LessOrEqual(t, utf8.RuneCountInString(got), 50)
	assert.True(t, strings.HasSuffix(got, "…"))
	for _, word := range strings.Fields(strings.TrimSuffix(got, "…")) {
		assert.Equal(t, "steady", word)
	}
}

func TestSummarize_CountsRunes(t *testing.T) {
	got := Summarize(strings.Repeat("é", 300), 10)
	assert.Equal(t, 10, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("é", 9)+"…", got)
}

func TestTruncateWords_NoLimit(t *testing.T) {
	assert.Equal(t, "abc", truncateWords("abc", 0))
}
