// Package loader turns document files into raw text units.
//
// One loader exists per supported format: plain text, Markdown (goldmark
// AST), PDF (ledongthuc/pdf), and EPUB (zip + goquery over the XHTML spine).
// A single file may yield multiple units: each EPUB content document becomes
// its own unit so chapter provenance survives chunking.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors. Check with errors.Is().
var (
	// ErrUnsupportedFormat indicates no parser exists for the file extension.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument indicates parsing succeeded but produced no text.
	ErrEmptyDocument = errors.New("no text content extracted")
)

// RawTextUnit is the ephemeral product of loading one source file (or one
// section of it). It exists only within an ingestion call and is never
// persisted.
type RawTextUnit struct {
	Text       string // Raw extracted text, not yet normalized
	SourcePath string // Absolute path of the source file
	FileName   string // Base name of the source file
	Extension  string // Lowercase extension including the dot
	ByteSize   int64  // Size of the source file in bytes
	Section    string // Optional sub-document name (EPUB spine entry)
}

// Loader dispatches files to format-specific parsers.
type Loader struct {
	logger *slog.Logger
}

// New creates a document loader. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load parses one file into raw text units. The path should already be
// validated (existing regular file with a supported extension); Load still
// returns ErrUnsupportedFormat for unknown extensions so it is safe to call
// directly.
func (l *Loader) Load(path string) ([]RawTextUnit, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", abs, err)
	}

	ext := strings.ToLower(filepath.Ext(abs))

	var units []RawTextUnit
	switch ext {
	case ".txt":
		units, err = l.loadText(abs)
	case ".md":
		units, err = l.loadMarkdown(abs)
	case ".pdf":
		units, err = l.loadPDF(abs)
	case ".epub":
		units, err = l.loadEPUB(abs)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	// Attach provenance shared by all units of this file.
	name := filepath.Base(abs)
	out := units[:0]
	for _, u := range units {
		if strings.TrimSpace(u.Text) == "" {
			continue
		}
		u.SourcePath = abs
		u.FileName = name
		u.Extension = ext
		u.ByteSize = info.Size()
		out = append(out, u)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, abs)
	}

	l.logger.Debug("document loaded", "path", abs, "units", len(out), "bytes", info.Size())
	return out, nil
}

// loadText reads a plain text file as a single unit.
func (*Loader) loadText(path string) ([]RawTextUnit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	return []RawTextUnit{{Text: string(content)}}, nil
}
