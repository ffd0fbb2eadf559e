package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MaxSummaryRunes caps the intention summary. Clients lay it out as a single line.
const MaxSummaryRunes = 160

var markdownParser = goldmark.DefaultParser()

// Summarize reduces model output to one line of plain prose of at most limit runes.
// Markdown is rendered to its text content and longer text is cut at a word boundary.
func Summarize(s string, limit int) string {
	plain := PlainText(s)
	plain = strings.Trim(plain, "\"'“”‘’ ")
	return truncateWords(plain, limit)
}

// PlainText strips markdown markup and collapses all whitespace to single spaces.
func PlainText(s string) string {
	source := []byte(s)
	doc := markdownParser.Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
				b.WriteByte(' ')
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(b.String()), " ")
}

// truncateWords cuts s to at most limit runes, preferring the last word boundary,
// and marks the cut with an ellipsis.
func truncateWords(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit-1])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	cut = strings.TrimRight(cut, " ,;:-")
	return cut + "…"
}
