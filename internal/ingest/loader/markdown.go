package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// loadMarkdown parses a Markdown file through the goldmark AST and collects
// its plain text, dropping formatting syntax while keeping code block
// contents.
func (*Loader) loadMarkdown(path string) ([]RawTextUnit, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading markdown file: %w", err)
	}

	text, err := extractMarkdownText(source)
	if err != nil {
		return nil, fmt.Errorf("parsing markdown: %w", err)
	}

	return []RawTextUnit{{Text: text}}, nil
}

// extractMarkdownText walks the goldmark AST and concatenates text segments,
// separating blocks with blank lines so paragraph structure survives for the
// language profiler.
func extractMarkdownText(source []byte) (string, error) {
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(source))

	var b strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && b.Len() > 0 {
				b.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}

		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			writeBlockLines(&b, t, source)
		case *ast.CodeBlock:
			writeBlockLines(&b, t, source)
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(b.String()), nil
}

// writeBlockLines copies the raw lines of a code block node.
func writeBlockLines(b *strings.Builder, n ast.Node, source []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
}
