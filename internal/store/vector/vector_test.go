package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"testing"

	chromem "github.com/philippgille/chromem-go"

	"github.com/liuzhen0/recall/internal/ingest"
	"github.com/liuzhen0/recall/internal/kb"
	"github.com/liuzhen0/recall/internal/log"
)

// stubEmbedding maps text deterministically onto the unit circle so similar
// strings are not meaningfully similar, but results are stable and normalized.
func stubEmbedding(_ context.Context, text string) ([]float32, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	angle := float64(h.Sum32()) / float64(math.MaxUint32) * 2 * math.Pi
	return []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), chromem.EmbeddingFunc(stubEmbedding), log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store
}

func sampleChunks(n int) []ingest.Chunk {
	chunks := make([]ingest.Chunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, ingest.Chunk{
			ID:      fmt.Sprintf("chunk-%d", i),
			Content: fmt.Sprintf("第 %d 段内容。", i),
			Metadata: map[string]string{
				"chunk_index": fmt.Sprint(i),
			},
		})
	}
	return chunks
}

func TestCreateCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateCollection(ctx, "kb1", false); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	ok, err := store.CollectionExists(ctx, "kb1")
	if err != nil || !ok {
		t.Fatalf("CollectionExists() = (%v, %v), want (true, nil)", ok, err)
	}

	// Without reset a second create must fail.
	err = store.CreateCollection(ctx, "kb1", false)
	if !kb.IsKind(err, kb.KindVectorStore) {
		t.Fatalf("second CreateCollection() kind = %v, want vector_store", kb.KindOf(err))
	}

	// With reset it succeeds and empties the collection.
	if err := store.AddDocuments(ctx, "kb1", sampleChunks(3)); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateCollection(ctx, "kb1", true); err != nil {
		t.Fatalf("CreateCollection(reset) error = %v", err)
	}
	n, err := store.Count(ctx, "kb1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Count() after reset = %d, want 0", n)
	}
}

func TestAddDocumentsAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateCollection(ctx, "kb1", false); err != nil {
		t.Fatal(err)
	}
	if err := store.AddDocuments(ctx, "kb1", sampleChunks(5)); err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}

	n, err := store.Count(ctx, "kb1")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Count() = %d, want 5", n)
	}
}

func TestAddDocumentsMissingCollection(t *testing.T) {
	store := newTestStore(t)
	err := store.AddDocuments(context.Background(), "absent", sampleChunks(1))
	if !kb.IsKind(err, kb.KindVectorStore) {
		t.Fatalf("AddDocuments() kind = %v, want vector_store", kb.KindOf(err))
	}
}

func TestDeleteDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateCollection(ctx, "kb1", false); err != nil {
		t.Fatal(err)
	}
	chunks := sampleChunks(4)
	if err := store.AddDocuments(ctx, "kb1", chunks); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteDocuments(ctx, "kb1", []string{chunks[0].ID, chunks[1].ID}); err != nil {
		t.Fatalf("DeleteDocuments() error = %v", err)
	}
	n, err := store.Count(ctx, "kb1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count() after delete = %d, want 2", n)
	}

	// Unknown collections and empty id lists are no-ops.
	if err := store.DeleteDocuments(ctx, "absent", []string{"x"}); err != nil {
		t.Errorf("DeleteDocuments(absent) error = %v", err)
	}
	if err := store.DeleteDocuments(ctx, "kb1", nil); err != nil {
		t.Errorf("DeleteDocuments(no ids) error = %v", err)
	}
}

func TestDeleteCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	deleted, err := store.DeleteCollection(ctx, "absent")
	if err != nil {
		t.Fatalf("DeleteCollection(absent) error = %v", err)
	}
	if deleted {
		t.Error("DeleteCollection(absent) = true, want false")
	}

	if err := store.CreateCollection(ctx, "kb1", false); err != nil {
		t.Fatal(err)
	}
	deleted, err = store.DeleteCollection(ctx, "kb1")
	if err != nil {
		t.Fatalf("DeleteCollection() error = %v", err)
	}
	if !deleted {
		t.Error("DeleteCollection() = false, want true")
	}
	ok, err := store.CollectionExists(ctx, "kb1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("collection still exists after delete")
	}
}

func TestQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateCollection(ctx, "kb1", false); err != nil {
		t.Fatal(err)
	}
	if err := store.AddDocuments(ctx, "kb1", sampleChunks(3)); err != nil {
		t.Fatal(err)
	}

	// topK larger than the collection is clamped, not an error.
	results, err := store.Query(ctx, "kb1", "内容", 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Query() returned %d results, want 3", len(results))
	}
	for _, r := range results {
		if r.ID == "" || r.Content == "" {
			t.Errorf("Query() result missing fields: %+v", r)
		}
	}
}

func TestQueryEmptyCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateCollection(ctx, "kb1", false); err != nil {
		t.Fatal(err)
	}
	results, err := store.Query(ctx, "kb1", "anything", 5)
	if err != nil {
		t.Fatalf("Query() on empty collection error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Query() on empty collection returned %d results, want 0", len(results))
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(dir, chromem.EmbeddingFunc(stubEmbedding), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CreateCollection(ctx, "kb1", false); err != nil {
		t.Fatal(err)
	}
	if err := store.AddDocuments(ctx, "kb1", sampleChunks(2)); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(dir, chromem.EmbeddingFunc(stubEmbedding), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	n, err := reopened.Count(ctx, "kb1")
	if err != nil {
		t.Fatalf("Count() after reopen error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() after reopen = %d, want 2", n)
	}
}
