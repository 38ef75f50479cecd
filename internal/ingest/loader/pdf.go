package loader

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts plain text from every page of a PDF. Pages that fail
// text extraction are skipped rather than failing the whole document; a PDF
// where no page yields text is reported as empty by the caller.
func (l *Loader) loadPDF(path string) ([]RawTextUnit, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var b strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			l.logger.Warn("skipping unreadable pdf page", "path", path, "page", i, "error", err)
			continue
		}

		b.WriteString(text)
		b.WriteString("\n\n")
	}

	return []RawTextUnit{{Text: b.String()}}, nil
}
