package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for file validation. Check with errors.Is().
var (
	// ErrFileNotFound indicates a candidate path does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrNotRegularFile indicates the path is a directory, symlink target,
	// or device rather than a regular file.
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrUnsupportedType indicates the file extension is outside the
	// supported set.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrFileTooLarge indicates the file exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFiles indicates an empty candidate list.
	ErrNoFiles = errors.New("no input files")
)

// defaultExtensions are the document formats the loaders can parse.
var defaultExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".epub": true,
}

// Validator checks candidate input files before any I/O-heavy work begins.
type Validator struct {
	maxSize    int64
	extensions map[string]bool
}

// NewValidator creates a file validator.
//
// extensions is an optional list of supported file extensions (e.g.
// [".txt", ".md"]). If empty/nil, the default document set is used. The map
// is copied so validator instances never share mutable state.
func NewValidator(maxSize int64, extensions []string) *Validator {
	extMap := make(map[string]bool)

	if len(extensions) > 0 {
		for _, ext := range extensions {
			extMap[strings.ToLower(ext)] = true
		}
	} else {
		for k, v := range defaultExtensions {
			extMap[strings.ToLower(k)] = v
		}
	}

	return &Validator{
		maxSize:    maxSize,
		extensions: extMap,
	}
}

// ValidateAll verifies every candidate path and returns the resolved
// absolute paths in input order.
//
// Validation is all-or-nothing and fails fast on the first violation: a bad
// fifth file in a batch of fifty never triggers wasted parsing of the first
// four. The returned error names the offending path and wraps one of the
// sentinel errors above.
func (v *Validator) ValidateAll(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	resolved := make([]string, 0, len(paths))
	for _, path := range paths {
		abs, err := v.validateOne(path)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, abs)
	}

	return resolved, nil
}

func (v *Validator) validateOne(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, abs)
		}
		return "", fmt.Errorf("stat %q: %w", abs, err)
	}

	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotRegularFile, abs)
	}

	ext := strings.ToLower(filepath.Ext(abs))
	if !v.extensions[ext] {
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, abs, ext)
	}

	if info.Size() > v.maxSize {
		return "", fmt.Errorf("%w: %s (%d bytes, limit %d)", ErrFileTooLarge, abs, info.Size(), v.maxSize)
	}

	return abs, nil
}
