package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeTempFile creates a file with the given name and content under a
// test-scoped temp directory and returns its path.
func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestValidateAll_Success(t *testing.T) {
	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.txt", "hello")
	b := writeTempFile(t, dir, "b.md", "# title")

	v := NewValidator(1024, nil)
	got, err := v.ValidateAll([]string{a, b})
	if err != nil {
		t.Fatalf("ValidateAll: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 resolved paths, got %d", len(got))
	}
	for _, p := range got {
		if !filepath.IsAbs(p) {
			t.Errorf("path not absolute: %s", p)
		}
	}
}

func TestValidateAll_Failures(t *testing.T) {
	dir := t.TempDir()
	valid := writeTempFile(t, dir, "ok.txt", "content")

	tests := []struct {
		name    string
		paths   []string
		maxSize int64
		wantErr error
	}{
		{
			name:    "empty list",
			paths:   nil,
			maxSize: 1024,
			wantErr: ErrNoFiles,
		},
		{
			name:    "missing file",
			paths:   []string{filepath.Join(dir, "absent.txt")},
			maxSize: 1024,
			wantErr: ErrFileNotFound,
		},
		{
			name:    "directory rejected",
			paths:   []string{dir},
			maxSize: 1024,
			wantErr: ErrNotRegularFile,
		},
		{
			name:    "unsupported extension",
			paths:   []string{writeTempFile(t, dir, "img.png", "fake")},
			maxSize: 1024,
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "file too large",
			paths:   []string{valid},
			maxSize: 3,
			wantErr: ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.maxSize, nil)
			_, err := v.ValidateAll(tt.paths)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateAll() error = %v, want errors.Is(err, %v)", err, tt.wantErr)
			}
		})
	}
}

// A bad file later in the batch fails the whole batch: all-or-nothing.
func TestValidateAll_FailFast(t *testing.T) {
	dir := t.TempDir()
	good := writeTempFile(t, dir, "good.txt", "fine")
	bad := filepath.Join(dir, "missing.pdf")

	v := NewValidator(1024, nil)
	resolved, err := v.ValidateAll([]string{good, bad})
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if resolved != nil {
		t.Errorf("expected nil result on failure, got %v", resolved)
	}
}

func TestNewValidator_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	goFile := writeTempFile(t, dir, "main.go", "package main")

	v := NewValidator(1024, []string{".GO"}) // case-insensitive
	if _, err := v.ValidateAll([]string{goFile}); err != nil {
		t.Errorf("custom extension rejected: %v", err)
	}

	txt := writeTempFile(t, dir, "note.txt", "text")
	if _, err := v.ValidateAll([]string{txt}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("default extension should not apply with custom list, got %v", err)
	}
}
