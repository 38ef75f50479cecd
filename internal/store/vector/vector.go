// Package vector persists document chunks and their embeddings in a local
// chromem-go database, one collection per knowledge base.
package vector

import (
	"context"
	"log/slog"
	"runtime"

	chromem "github.com/philippgille/chromem-go"

	"github.com/liuzhen0/recall/internal/ingest"
	"github.com/liuzhen0/recall/internal/kb"
)

// Result is one retrieved chunk with its similarity to the query.
type Result struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float32           `json:"similarity"`
}

// Store wraps a persistent chromem database. Embeddings are produced by the
// configured EmbeddingFunc; chromem normalizes vectors itself.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     *chromem.DB
	embed  chromem.EmbeddingFunc
	logger *slog.Logger
}

// New opens (or creates) the vector database under dir.
func New(dir string, embed chromem.EmbeddingFunc, logger *slog.Logger) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, true)
	if err != nil {
		return nil, kb.VectorStoref("open vector database at %s: %v", dir, err)
	}
	return &Store{db: db, embed: embed, logger: logger}, nil
}

var _ kb.VectorStore = (*Store)(nil)

// CreateCollection creates the named collection. An existing collection is
// dropped first when resetIfExists is set, otherwise creation fails.
func (s *Store) CreateCollection(ctx context.Context, name string, resetIfExists bool) error {
	if err := ctx.Err(); err != nil {
		return kb.VectorStoref("create collection %q: %v", name, err)
	}
	if existing := s.db.GetCollection(name, s.embed); existing != nil {
		if !resetIfExists {
			return kb.VectorStoref("collection %q already exists", name)
		}
		if err := s.db.DeleteCollection(name); err != nil {
			return kb.VectorStoref("reset collection %q: %v", name, err)
		}
		s.logger.Debug("dropped stale vector collection", "name", name)
	}
	if _, err := s.db.CreateCollection(name, nil, s.embed); err != nil {
		return kb.VectorStoref("create collection %q: %v", name, err)
	}
	return nil
}

// AddDocuments embeds and writes all chunks into the collection in one
// batched call, fanning the embedding requests out across CPUs.
func (s *Store) AddDocuments(ctx context.Context, name string, chunks []ingest.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	col := s.db.GetCollection(name, s.embed)
	if col == nil {
		return kb.VectorStoref("collection %q does not exist", name)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		docs = append(docs, chromem.Document{
			ID:       ch.ID,
			Content:  ch.Content,
			Metadata: ch.Metadata,
		})
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return kb.VectorStoref("add %d documents to %q: %v", len(docs), name, err)
	}
	s.logger.Debug("documents written", "collection", name, "count", len(docs))
	return nil
}

// DeleteDocuments removes the identified documents from the collection.
// Unknown collections and empty id lists are no-ops.
func (s *Store) DeleteDocuments(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	col := s.db.GetCollection(name, s.embed)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return kb.VectorStoref("delete %d documents from %q: %v", len(ids), name, err)
	}
	return nil
}

// DeleteCollection drops the collection, reporting whether it existed.
func (s *Store) DeleteCollection(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, kb.VectorStoref("delete collection %q: %v", name, err)
	}
	if s.db.GetCollection(name, s.embed) == nil {
		return false, nil
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return false, kb.VectorStoref("delete collection %q: %v", name, err)
	}
	return true, nil
}

// CollectionExists reports whether the named collection is present.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, kb.VectorStoref("check collection %q: %v", name, err)
	}
	return s.db.GetCollection(name, s.embed) != nil, nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, kb.VectorStoref("count collection %q: %v", name, err)
	}
	col := s.db.GetCollection(name, s.embed)
	if col == nil {
		return 0, kb.VectorStoref("collection %q does not exist", name)
	}
	return col.Count(), nil
}

// Query retrieves the topK most similar chunks for the query text. topK is
// clamped to the collection size; an empty collection yields no results.
func (s *Store) Query(ctx context.Context, name, query string, topK int) ([]Result, error) {
	col := s.db.GetCollection(name, s.embed)
	if col == nil {
		return nil, kb.VectorStoref("collection %q does not exist", name)
	}
	if n := col.Count(); topK > n {
		topK = n
	}
	if topK <= 0 {
		return nil, nil
	}

	hits, err := col.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, kb.VectorStoref("query collection %q: %v", name, err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:         h.ID,
			Content:    h.Content,
			Metadata:   h.Metadata,
			Similarity: h.Similarity,
		})
	}
	return results, nil
}
