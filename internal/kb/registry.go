package kb

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liuzhen0/recall/internal/ingest"
	"github.com/liuzhen0/recall/internal/ingest/loader"
)

// DocumentLoader extracts raw text units from a single file.
type DocumentLoader interface {
	Load(path string) ([]loader.RawTextUnit, error)
}

// RegistryConfig carries the tunables of the ingestion pipeline.
type RegistryConfig struct {
	ChunkSize         int
	ChunkOverlap      int
	MaxFileSize       int64
	ParallelThreshold int
	ParseWorkers      int
}

// Registry is the entry point for knowledge-base lifecycle operations. It
// validates input, runs files through the ingestion pipeline, and hands the
// resulting chunks to the coordinator for the dual-store commit.
type Registry struct {
	cfg       RegistryConfig
	validator *ingest.Validator
	docs      DocumentLoader
	coord     *Coordinator
	repo      Repository
	vectors   VectorStore
	logger    *slog.Logger
}

// NewRegistry wires a registry over the stores and the document loader.
func NewRegistry(repo Repository, vectors VectorStore, docs DocumentLoader, cfg RegistryConfig, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:       cfg,
		validator: ingest.NewValidator(cfg.MaxFileSize, nil),
		docs:      docs,
		coord:     NewCoordinator(repo, vectors, logger),
		repo:      repo,
		vectors:   vectors,
		logger:    logger,
	}
}

// Create builds a new knowledge base from the given files. The duplicate
// check here is advisory for a fast failure; the relational unique
// constraint during commit remains authoritative under concurrency.
func (r *Registry) Create(ctx context.Context, name, description string, files []string) (*KnowledgeBase, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	exists, err := r.repo.Exists(ctx, name)
	if err != nil {
		return nil, classify(err, KindDatabase, "check knowledge base existence")
	}
	if exists {
		return nil, Validationf("knowledge base %q already exists", name)
	}

	paths, err := r.validator.ValidateAll(files)
	if err != nil {
		return nil, classify(err, KindValidation, "validate input files")
	}

	units, parsed, err := r.parseFiles(ctx, paths)
	if err != nil {
		return nil, err
	}

	chunks := r.buildChunks(name, units)
	if len(chunks) == 0 {
		return nil, FileProcessingf("no text content extracted from %d file(s)", len(paths))
	}

	record := &KnowledgeBase{
		Name:          name,
		Description:   description,
		FileCount:     parsed,
		DocumentCount: len(chunks),
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.coord.Commit(ctx, record, chunks); err != nil {
		return nil, err
	}
	return record, nil
}

// AddDocuments ingests additional files into an existing knowledge base and
// returns the number of chunks written.
func (r *Registry) AddDocuments(ctx context.Context, name string, files []string) (int, error) {
	record, err := r.repo.Get(ctx, name)
	if err != nil {
		return 0, classify(err, KindDatabase, "load knowledge base")
	}

	ok, err := r.vectors.CollectionExists(ctx, name)
	if err != nil {
		return 0, classify(err, KindVectorStore, "check vector collection")
	}
	if !ok {
		return 0, VectorStoref("vector collection for %q is missing; recreate the knowledge base", name)
	}

	paths, err := r.validator.ValidateAll(files)
	if err != nil {
		return 0, classify(err, KindValidation, "validate input files")
	}

	units, parsed, err := r.parseFiles(ctx, paths)
	if err != nil {
		return 0, err
	}

	chunks := r.buildChunks(name, units)
	if len(chunks) == 0 {
		return 0, FileProcessingf("no text content extracted from %d file(s)", len(paths))
	}

	if err := r.coord.Append(ctx, record.Name, parsed, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Get returns the relational record for the named knowledge base.
func (r *Registry) Get(ctx context.Context, name string) (*KnowledgeBase, error) {
	record, err := r.repo.Get(ctx, name)
	if err != nil {
		return nil, classify(err, KindDatabase, "load knowledge base")
	}
	return record, nil
}

// List returns all knowledge bases, newest first.
func (r *Registry) List(ctx context.Context) ([]KnowledgeBase, error) {
	records, err := r.repo.List(ctx)
	if err != nil {
		return nil, classify(err, KindDatabase, "list knowledge bases")
	}
	return records, nil
}

// Delete removes the knowledge base from both stores together with its
// history records. Each removal is attempted regardless of earlier
// failures; the result reports whether everything came off cleanly.
func (r *Registry) Delete(ctx context.Context, name string) (bool, error) {
	inRepo, err := r.repo.Exists(ctx, name)
	if err != nil {
		return false, classify(err, KindDatabase, "check knowledge base existence")
	}
	inVectors, err := r.vectors.CollectionExists(ctx, name)
	if err != nil {
		return false, classify(err, KindVectorStore, "check vector collection")
	}
	if !inRepo && !inVectors {
		return false, NotFoundf("knowledge base %q does not exist", name)
	}

	clean := true

	if _, err := r.repo.DeleteAttempts(ctx, name); err != nil {
		clean = false
		r.logger.Error("failed to delete quiz history", "name", name, "error", err)
	}
	if _, err := r.vectors.DeleteCollection(ctx, name); err != nil {
		clean = false
		r.logger.Error("failed to delete vector collection", "name", name, "error", err)
	}
	if _, err := r.repo.Delete(ctx, name); err != nil {
		clean = false
		r.logger.Error("failed to delete knowledge base record", "name", name, "error", err)
	}

	return clean, nil
}

// parseResult pairs one file's extracted units with its input position so
// parallel parsing preserves input order.
type parseResult struct {
	index int
	units []loader.RawTextUnit
}

// parseFiles extracts text from every file, in parallel when the batch
// exceeds the threshold. Files that fail to parse are skipped with a
// warning; the whole batch fails only when no file yields text.
func (r *Registry) parseFiles(ctx context.Context, paths []string) ([]loader.RawTextUnit, int, error) {
	if len(paths) == 0 {
		return nil, 0, Validationf("no files given")
	}

	results := make([]parseResult, 0, len(paths))
	var firstErr error
	failed := 0

	if len(paths) > r.cfg.ParallelThreshold {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.ParseWorkers)

		for i, path := range paths {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				units, err := r.docs.Load(path)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					if firstErr == nil {
						firstErr = err
					}
					r.logger.Warn("skipping unparseable file", "path", path, "error", err)
					return nil
				}
				results = append(results, parseResult{index: i, units: units})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, 0, classify(err, KindFileProcessing, "parse files")
		}
	} else {
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, 0, classify(err, KindFileProcessing, "parse files")
			}
			units, err := r.docs.Load(path)
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				r.logger.Warn("skipping unparseable file", "path", path, "error", err)
				continue
			}
			results = append(results, parseResult{index: i, units: units})
		}
	}

	if len(results) == 0 {
		return nil, 0, classify(firstErr, KindFileProcessing, fmt.Sprintf("all %d file(s) failed to parse", len(paths)))
	}
	if failed > 0 {
		r.logger.Warn("batch partially parsed", "parsed", len(results), "failed", failed)
	}

	// Restore input order so chunk ordinals are deterministic.
	ordered := make([]loader.RawTextUnit, 0, len(results))
	sortParseResults(results)
	for _, res := range results {
		ordered = append(ordered, res.units...)
	}
	return ordered, len(results), nil
}

// sortParseResults orders results by input position. Insertion sort keeps
// this dependency-free for the small batches involved.
func sortParseResults(results []parseResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j-1].index > results[j].index; j-- {
			results[j-1], results[j] = results[j], results[j-1]
		}
	}
}

// buildChunks runs every text unit through profiling, normalization, and
// splitting, stamping file provenance onto each chunk. Chunk ordinals are
// scoped to their unit; identity across the batch comes from the UUIDs.
func (r *Registry) buildChunks(kbName string, units []loader.RawTextUnit) []ingest.Chunk {
	var all []ingest.Chunk
	for _, unit := range units {
		profile := ingest.ProfileText(unit.Text)
		normalized := ingest.Normalize(unit.Text)
		if normalized == "" {
			continue
		}

		provenance := map[string]string{
			"kb_name":   kbName,
			"file_name": unit.FileName,
			"file_path": unit.SourcePath,
			"file_ext":  unit.Extension,
			"file_size": strconv.FormatInt(unit.ByteSize, 10),
		}
		if unit.Section != "" {
			provenance["section"] = unit.Section
		}

		chunks := ingest.BuildChunks(normalized, profile, r.cfg.ChunkSize, r.cfg.ChunkOverlap, provenance)
		if len(chunks) == 0 {
			continue
		}
		r.logger.Debug("chunked document",
			"file", filepath.Base(unit.SourcePath),
			"strategy", chunks[0].Strategy,
			"cjk_ratio", profile.CJKRatio,
			"chunks", len(chunks),
		)
		all = append(all, chunks...)
	}
	return all
}
