package kb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liuzhen0/recall/internal/ingest"
	"github.com/liuzhen0/recall/internal/ingest/loader"
	"github.com/liuzhen0/recall/internal/log"
)

type fakeRepo struct {
	records map[string]*KnowledgeBase

	createErr  error
	updateErr  error
	calls      []string
	deletedKBs []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*KnowledgeBase)}
}

func (f *fakeRepo) Create(_ context.Context, record *KnowledgeBase) error {
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.records[record.Name]; ok {
		return Validationf("knowledge base %q already exists", record.Name)
	}
	cp := *record
	f.records[record.Name] = &cp
	return nil
}

func (f *fakeRepo) Exists(_ context.Context, name string) (bool, error) {
	_, ok := f.records[name]
	return ok, nil
}

func (f *fakeRepo) Get(_ context.Context, name string) (*KnowledgeBase, error) {
	record, ok := f.records[name]
	if !ok {
		return nil, NotFoundf("knowledge base %q does not exist", name)
	}
	cp := *record
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context) ([]KnowledgeBase, error) {
	out := make([]KnowledgeBase, 0, len(f.records))
	for _, record := range f.records {
		out = append(out, *record)
	}
	return out, nil
}

func (f *fakeRepo) UpdateCounts(_ context.Context, name string, fileDelta, documentDelta int) error {
	f.calls = append(f.calls, "update_counts")
	if f.updateErr != nil {
		return f.updateErr
	}
	record, ok := f.records[name]
	if !ok {
		return NotFoundf("knowledge base %q does not exist", name)
	}
	record.FileCount += fileDelta
	record.DocumentCount += documentDelta
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, name string) (bool, error) {
	f.deletedKBs = append(f.deletedKBs, name)
	if _, ok := f.records[name]; !ok {
		return false, nil
	}
	delete(f.records, name)
	return true, nil
}

func (f *fakeRepo) DeleteAttempts(_ context.Context, name string) (int64, error) {
	f.calls = append(f.calls, "delete_attempts")
	return 0, nil
}

type fakeVectors struct {
	collections map[string][]ingest.Chunk

	createErr   error
	addErr      error
	calls       []string
	deletedCols []string
	deletedDocs []string
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{collections: make(map[string][]ingest.Chunk)}
}

func (f *fakeVectors) CreateCollection(_ context.Context, name string, resetIfExists bool) error {
	f.calls = append(f.calls, "create_collection")
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.collections[name]; ok && !resetIfExists {
		return errors.New("collection exists")
	}
	f.collections[name] = nil
	return nil
}

func (f *fakeVectors) AddDocuments(_ context.Context, name string, chunks []ingest.Chunk) error {
	f.calls = append(f.calls, "add_documents")
	if f.addErr != nil {
		return f.addErr
	}
	f.collections[name] = append(f.collections[name], chunks...)
	return nil
}

func (f *fakeVectors) DeleteDocuments(_ context.Context, name string, ids []string) error {
	f.deletedDocs = append(f.deletedDocs, ids...)
	return nil
}

func (f *fakeVectors) DeleteCollection(_ context.Context, name string) (bool, error) {
	f.deletedCols = append(f.deletedCols, name)
	if _, ok := f.collections[name]; !ok {
		return false, nil
	}
	delete(f.collections, name)
	return true, nil
}

func (f *fakeVectors) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeVectors) Count(_ context.Context, name string) (int, error) {
	return len(f.collections[name]), nil
}

type fakeLoader struct {
	failOn map[string]bool
}

func (f *fakeLoader) Load(path string) ([]loader.RawTextUnit, error) {
	if f.failOn[filepath.Base(path)] {
		return nil, errors.New("parse failure")
	}
	return []loader.RawTextUnit{{
		Text:       "这是第一句。这是第二句。这是第三句。",
		SourcePath: path,
		FileName:   filepath.Base(path),
		Extension:  filepath.Ext(path),
		ByteSize:   64,
	}}, nil
}

func writeTestFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

func testRegistry(repo *fakeRepo, vectors *fakeVectors, docs DocumentLoader) *Registry {
	return NewRegistry(repo, vectors, docs, RegistryConfig{
		ChunkSize:         100,
		ChunkOverlap:      10,
		MaxFileSize:       1 << 20,
		ParallelThreshold: 5,
		ParseWorkers:      4,
	}, log.NewNop())
}

func TestRegistryCreate(t *testing.T) {
	repo := newFakeRepo()
	vectors := newFakeVectors()
	reg := testRegistry(repo, vectors, &fakeLoader{})

	files := writeTestFiles(t, "a.txt", "b.txt")
	record, err := reg.Create(context.Background(), "notes", "test kb", files)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if record.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", record.FileCount)
	}
	if record.DocumentCount == 0 {
		t.Error("DocumentCount = 0, want > 0")
	}
	if len(vectors.collections["notes"]) != record.DocumentCount {
		t.Errorf("vector store holds %d documents, record says %d",
			len(vectors.collections["notes"]), record.DocumentCount)
	}
	if _, ok := repo.records["notes"]; !ok {
		t.Error("relational record missing after commit")
	}
}

func TestRegistryCreateDuplicateName(t *testing.T) {
	repo := newFakeRepo()
	vectors := newFakeVectors()
	reg := testRegistry(repo, vectors, &fakeLoader{})

	files := writeTestFiles(t, "a.txt")
	if _, err := reg.Create(context.Background(), "notes", "", files); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	_, err := reg.Create(context.Background(), "notes", "", files)
	if !IsKind(err, KindValidation) {
		t.Fatalf("duplicate Create() kind = %v, want validation", KindOf(err))
	}
}

func TestRegistryCreateCompensatesOnInsertFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = Validationf("knowledge base %q already exists", "notes")
	vectors := newFakeVectors()
	reg := testRegistry(repo, vectors, &fakeLoader{})

	files := writeTestFiles(t, "a.txt")
	_, err := reg.Create(context.Background(), "notes", "", files)
	if !IsKind(err, KindValidation) {
		t.Fatalf("Create() kind = %v, want validation", KindOf(err))
	}
	if len(vectors.deletedCols) == 0 || vectors.deletedCols[0] != "notes" {
		t.Errorf("expected vector collection compensation, got deletions %v", vectors.deletedCols)
	}
	if _, ok := vectors.collections["notes"]; ok {
		t.Error("vector collection still present after compensation")
	}
}

func TestRegistryCreateVectorWriteFailure(t *testing.T) {
	repo := newFakeRepo()
	vectors := newFakeVectors()
	vectors.addErr = errors.New("embedding backend down")
	reg := testRegistry(repo, vectors, &fakeLoader{})

	files := writeTestFiles(t, "a.txt")
	_, err := reg.Create(context.Background(), "notes", "", files)
	if !IsKind(err, KindVectorStore) {
		t.Fatalf("Create() kind = %v, want vector_store", KindOf(err))
	}
	if len(repo.records) != 0 {
		t.Error("relational record written despite vector failure")
	}
	if len(vectors.deletedCols) == 0 {
		t.Error("expected collection compensation after failed write")
	}
}

func TestRegistryCreateInvalidName(t *testing.T) {
	reg := testRegistry(newFakeRepo(), newFakeVectors(), &fakeLoader{})

	tests := []struct {
		name   string
		kbName string
	}{
		{name: "empty", kbName: ""},
		{name: "whitespace only", kbName: "   "},
		{name: "leading space", kbName: " notes"},
		{name: "path separator", kbName: "a/b"},
		{name: "too long", kbName: strings.Repeat("字", MaxNameLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Create(context.Background(), tt.kbName, "", []string{"x.txt"})
			if !IsKind(err, KindValidation) {
				t.Errorf("Create(%q) kind = %v, want validation", tt.kbName, KindOf(err))
			}
		})
	}
}

func TestRegistryPartialParseFailure(t *testing.T) {
	repo := newFakeRepo()
	vectors := newFakeVectors()
	docs := &fakeLoader{failOn: map[string]bool{"bad.txt": true}}
	reg := testRegistry(repo, vectors, docs)

	files := writeTestFiles(t, "good.txt", "bad.txt")
	record, err := reg.Create(context.Background(), "notes", "", files)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if record.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1 (unparseable file skipped)", record.FileCount)
	}
}

func TestRegistryAllFilesFailParse(t *testing.T) {
	docs := &fakeLoader{failOn: map[string]bool{"a.txt": true, "b.txt": true}}
	reg := testRegistry(newFakeRepo(), newFakeVectors(), docs)

	files := writeTestFiles(t, "a.txt", "b.txt")
	_, err := reg.Create(context.Background(), "notes", "", files)
	if !IsKind(err, KindFileProcessing) {
		t.Fatalf("Create() kind = %v, want file_processing", KindOf(err))
	}
}

func TestRegistryParallelParsePreservesOrder(t *testing.T) {
	repo := newFakeRepo()
	vectors := newFakeVectors()
	reg := testRegistry(repo, vectors, &fakeLoader{})

	names := []string{"f0.txt", "f1.txt", "f2.txt", "f3.txt", "f4.txt", "f5.txt", "f6.txt"}
	files := writeTestFiles(t, names...)
	record, err := reg.Create(context.Background(), "ordered", "", files)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if record.FileCount != len(names) {
		t.Fatalf("FileCount = %d, want %d", record.FileCount, len(names))
	}

	chunks := vectors.collections["ordered"]
	seen := make([]string, 0, len(names))
	for _, ch := range chunks {
		name := ch.Metadata["file_name"]
		if len(seen) == 0 || seen[len(seen)-1] != name {
			seen = append(seen, name)
		}
	}
	for i, name := range seen {
		if name != names[i] {
			t.Fatalf("chunk file order %v, want %v", seen, names)
		}
	}
}

func TestRegistryAddDocuments(t *testing.T) {
	repo := newFakeRepo()
	vectors := newFakeVectors()
	reg := testRegistry(repo, vectors, &fakeLoader{})

	files := writeTestFiles(t, "a.txt")
	if _, err := reg.Create(context.Background(), "notes", "", files); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	before := repo.records["notes"].DocumentCount

	more := writeTestFiles(t, "b.txt")
	n, err := reg.AddDocuments(context.Background(), "notes", more)
	if err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}
	if n == 0 {
		t.Fatal("AddDocuments() wrote 0 chunks")
	}
	if got := repo.records["notes"].DocumentCount; got != before+n {
		t.Errorf("DocumentCount = %d, want %d", got, before+n)
	}
	if got := repo.records["notes"].FileCount; got != 2 {
		t.Errorf("FileCount = %d, want 2", got)
	}
}

func TestRegistryAddDocumentsUnknownKB(t *testing.T) {
	reg := testRegistry(newFakeRepo(), newFakeVectors(), &fakeLoader{})
	_, err := reg.AddDocuments(context.Background(), "missing", []string{"a.txt"})
	if !IsKind(err, KindNotFound) {
		t.Fatalf("AddDocuments() kind = %v, want not_found", KindOf(err))
	}
}

func TestRegistryAddDocumentsCompensatesOnCountFailure(t *testing.T) {
	repo := newFakeRepo()
	vectors := newFakeVectors()
	reg := testRegistry(repo, vectors, &fakeLoader{})

	files := writeTestFiles(t, "a.txt")
	if _, err := reg.Create(context.Background(), "notes", "", files); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	repo.updateErr = errors.New("disk full")

	more := writeTestFiles(t, "b.txt")
	_, err := reg.AddDocuments(context.Background(), "notes", more)
	if !IsKind(err, KindDatabase) {
		t.Fatalf("AddDocuments() kind = %v, want database", KindOf(err))
	}
	if len(vectors.deletedDocs) == 0 {
		t.Error("expected appended documents to be removed after count failure")
	}
}

func TestRegistryDelete(t *testing.T) {
	repo := newFakeRepo()
	vectors := newFakeVectors()
	reg := testRegistry(repo, vectors, &fakeLoader{})

	files := writeTestFiles(t, "a.txt")
	if _, err := reg.Create(context.Background(), "notes", "", files); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	clean, err := reg.Delete(context.Background(), "notes")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !clean {
		t.Error("Delete() clean = false, want true")
	}
	if len(repo.records) != 0 {
		t.Error("relational record survives delete")
	}
	if _, ok := vectors.collections["notes"]; ok {
		t.Error("vector collection survives delete")
	}
}

func TestRegistryDeleteNotFound(t *testing.T) {
	reg := testRegistry(newFakeRepo(), newFakeVectors(), &fakeLoader{})
	_, err := reg.Delete(context.Background(), "missing")
	if !IsKind(err, KindNotFound) {
		t.Fatalf("Delete() kind = %v, want not_found", KindOf(err))
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil-ish plain error", err: errors.New("boom"), want: KindUnknown},
		{name: "direct", err: Validationf("bad"), want: KindValidation},
		{name: "wrapped once", err: classify(Databasef("down"), KindUnknown, "op"), want: KindDatabase},
		{name: "wrapped plain", err: classify(errors.New("boom"), KindVectorStore, "op"), want: KindVectorStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
