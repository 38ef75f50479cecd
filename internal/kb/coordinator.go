package kb

import (
	"context"
	"log/slog"

	"github.com/liuzhen0/recall/internal/ingest"
)

// Repository is the relational store the knowledge-base layer depends on.
// Implementations map duplicate-name violations to a KindValidation error;
// the coordinator treats the constraint as the authoritative duplicate guard.
type Repository interface {
	// Create inserts the record, failing with KindValidation when the name
	// is already taken.
	Create(ctx context.Context, record *KnowledgeBase) error
	// Exists reports whether a record with the given name is present.
	Exists(ctx context.Context, name string) (bool, error)
	// Get returns the record or a KindNotFound error.
	Get(ctx context.Context, name string) (*KnowledgeBase, error)
	// List returns all records ordered by creation time, newest first.
	List(ctx context.Context) ([]KnowledgeBase, error)
	// UpdateCounts adds the deltas to the stored file and document counts.
	UpdateCounts(ctx context.Context, name string, fileDelta, documentDelta int) error
	// Delete removes the record, reporting whether a row was deleted.
	Delete(ctx context.Context, name string) (bool, error)
	// DeleteAttempts removes history records referencing the knowledge base.
	DeleteAttempts(ctx context.Context, name string) (int64, error)
}

// VectorStore is the collection-based vector store the knowledge-base layer
// depends on.
type VectorStore interface {
	// CreateCollection creates the named collection. With resetIfExists an
	// existing collection is dropped first; otherwise creation of an
	// existing collection is an error.
	CreateCollection(ctx context.Context, name string, resetIfExists bool) error
	// AddDocuments embeds and persists the chunks into the collection.
	AddDocuments(ctx context.Context, name string, chunks []ingest.Chunk) error
	// DeleteDocuments removes the identified documents from the collection.
	DeleteDocuments(ctx context.Context, name string, ids []string) error
	// DeleteCollection drops the collection, reporting whether it existed.
	DeleteCollection(ctx context.Context, name string) (bool, error)
	// CollectionExists reports whether the named collection is present.
	CollectionExists(ctx context.Context, name string) (bool, error)
	// Count returns the number of documents in the collection.
	Count(ctx context.Context, name string) (int, error)
}

// sagaState tracks how far a commit progressed, so compensation can undo
// exactly the steps that completed.
type sagaState int

const (
	stateValidated sagaState = iota
	stateCollectionCreated
	stateChunksWritten
	stateMetadataCommitted
)

// Coordinator commits a chunked document set to both stores in a fixed
// order, vector side first, and compensates in reverse on any failure.
// The relational insert runs last so that a knowledge base is visible in
// listings only once its vectors are durable.
type Coordinator struct {
	repo    Repository
	vectors VectorStore
	logger  *slog.Logger
}

// NewCoordinator wires a coordinator over the two stores.
func NewCoordinator(repo Repository, vectors VectorStore, logger *slog.Logger) *Coordinator {
	return &Coordinator{repo: repo, vectors: vectors, logger: logger}
}

// Commit creates the vector collection, writes all chunks, then inserts the
// relational record. On failure it rolls back whatever completed and returns
// the original error; compensation failures are logged, never returned.
func (c *Coordinator) Commit(ctx context.Context, record *KnowledgeBase, chunks []ingest.Chunk) error {
	state := stateValidated

	if err := c.vectors.CreateCollection(ctx, record.Name, true); err != nil {
		c.compensate(ctx, record.Name, state)
		return classify(err, KindVectorStore, "create vector collection")
	}
	state = stateCollectionCreated

	if err := c.vectors.AddDocuments(ctx, record.Name, chunks); err != nil {
		c.compensate(ctx, record.Name, state)
		return classify(err, KindVectorStore, "write chunks to vector collection")
	}
	state = stateChunksWritten

	if err := c.repo.Create(ctx, record); err != nil {
		c.compensate(ctx, record.Name, state)
		return classify(err, KindDatabase, "insert knowledge base record")
	}
	state = stateMetadataCommitted

	c.logger.Info("knowledge base committed",
		"name", record.Name,
		"files", record.FileCount,
		"documents", record.DocumentCount,
	)
	return nil
}

// Append writes additional chunks into an existing collection and bumps the
// relational counts. If the count update fails the freshly written documents
// are removed again.
func (c *Coordinator) Append(ctx context.Context, name string, fileCount int, chunks []ingest.Chunk) error {
	if err := c.vectors.AddDocuments(ctx, name, chunks); err != nil {
		return classify(err, KindVectorStore, "write chunks to vector collection")
	}

	if err := c.repo.UpdateCounts(ctx, name, fileCount, len(chunks)); err != nil {
		ids := make([]string, len(chunks))
		for i, ch := range chunks {
			ids[i] = ch.ID
		}
		if delErr := c.vectors.DeleteDocuments(ctx, name, ids); delErr != nil {
			c.logger.Error("compensation failed, orphaned vector documents remain",
				"name", name,
				"documents", len(ids),
				"error", delErr,
			)
		}
		return classify(err, KindDatabase, "update knowledge base counts")
	}
	return nil
}

// compensate undoes completed saga steps in reverse order, best effort.
// A failed compensation leaves residue for the next create with
// resetIfExists to clear; it is logged and otherwise swallowed so the
// original failure stays the one reported.
func (c *Coordinator) compensate(ctx context.Context, name string, reached sagaState) {
	if reached >= stateCollectionCreated {
		if _, err := c.vectors.DeleteCollection(ctx, name); err != nil {
			c.logger.Error("compensation failed to drop vector collection",
				"name", name,
				"error", err,
			)
		}
	}

	// The relational insert is the final step, so normally there is nothing
	// relational to undo. Check anyway in case a later refactor reorders
	// the steps.
	if reached >= stateMetadataCommitted {
		if _, err := c.repo.Delete(ctx, name); err != nil {
			c.logger.Error("compensation failed to delete knowledge base record",
				"name", name,
				"error", err,
			)
		}
	}
}
