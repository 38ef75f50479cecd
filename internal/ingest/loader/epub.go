package loader

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// loadEPUB extracts text from an EPUB archive. EPUB is a zip of XHTML
// content documents; each one becomes its own RawTextUnit, in archive order,
// so chapter-level provenance survives into chunk metadata. Navigation and
// metadata entries are skipped.
func (l *Loader) loadEPUB(filePath string) ([]RawTextUnit, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening epub archive: %w", err)
	}
	defer func() {
		_ = zr.Close()
	}()

	var units []RawTextUnit
	for _, entry := range zr.File {
		if !isEPUBContentEntry(entry.Name) {
			continue
		}

		text, err := extractXHTMLText(entry)
		if err != nil {
			l.logger.Warn("skipping unreadable epub entry", "path", filePath, "entry", entry.Name, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		units = append(units, RawTextUnit{
			Text:    text,
			Section: entry.Name,
		})
	}

	if len(units) == 0 {
		return nil, fmt.Errorf("%w: no readable content documents in epub", ErrEmptyDocument)
	}

	return units, nil
}

// isEPUBContentEntry reports whether an archive entry is a content document
// rather than packaging metadata or navigation.
func isEPUBContentEntry(name string) bool {
	lower := strings.ToLower(name)

	switch path.Ext(lower) {
	case ".xhtml", ".html", ".htm":
	default:
		return false
	}

	// nav.xhtml / toc.xhtml are navigation, not content.
	base := path.Base(lower)
	return base != "nav.xhtml" && base != "toc.xhtml"
}

// extractXHTMLText parses one XHTML entry and returns the body text.
func extractXHTMLText(entry *zip.File) (string, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("opening entry: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()

	doc, err := goquery.NewDocumentFromReader(rc)
	if err != nil {
		return "", fmt.Errorf("parsing xhtml: %w", err)
	}

	// Inline scripts and styles are noise, not content.
	doc.Find("script, style").Remove()

	return doc.Find("body").Text(), nil
}
