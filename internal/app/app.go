// Package app wires the application together. Every component is
// constructed here once and passed down explicitly; nothing reaches for
// package-level state.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	chromem "github.com/philippgille/chromem-go"

	"github.com/liuzhen0/recall/internal/config"
	"github.com/liuzhen0/recall/internal/history"
	"github.com/liuzhen0/recall/internal/ingest/loader"
	"github.com/liuzhen0/recall/internal/kb"
	"github.com/liuzhen0/recall/internal/llm"
	"github.com/liuzhen0/recall/internal/quiz"
	"github.com/liuzhen0/recall/internal/store/sqlite"
	"github.com/liuzhen0/recall/internal/store/vector"
)

// App is the application container. Construct with Setup, release with
// Close.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sql.DB
	Store    *sqlite.Store
	Vectors  *vector.Store
	LLM      *llm.Client
	Registry *kb.Registry
	Quiz     *quiz.Service
	History  *history.Service
}

// Setup builds the full dependency graph. The Gemini client is only
// constructed when an API key is configured; without one the read-only
// commands still work, and embedding-dependent operations fail with a
// pointed error.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.DB = db
	if err := sqlite.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	a.Store = sqlite.NewStore(db, logger)

	embed := missingKeyEmbedding()
	if cfg.GeminiAPIKey != "" {
		client, err := llm.New(ctx, llm.Config{
			APIKey:        cfg.GeminiAPIKey,
			Model:         cfg.ModelName,
			EmbedderModel: cfg.EmbedderModel,
		}, llm.DefaultRetryConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		a.LLM = client
		embed = client.EmbedFunc()
	}

	vectors, err := vector.New(cfg.VectorDir, embed, logger)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	a.Vectors = vectors

	a.Registry = kb.NewRegistry(a.Store, vectors, loader.New(logger), kb.RegistryConfig{
		ChunkSize:         cfg.ChunkSize,
		ChunkOverlap:      cfg.ChunkOverlap,
		MaxFileSize:       cfg.MaxFileSize,
		ParallelThreshold: cfg.ParallelThreshold,
		ParseWorkers:      cfg.ParseWorkers,
	}, logger)

	a.History = history.New(a.Store, logger)
	if a.LLM != nil {
		a.Quiz = quiz.New(a.LLM, vectors, logger)
	}

	return a, nil
}

// Close releases held resources.
func (a *App) Close() error {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
		a.DB = nil
	}
	return nil
}

// missingKeyEmbedding is used when no API key is configured, so any
// operation that actually needs embeddings fails with the real cause
// instead of an opaque HTTP error.
func missingKeyEmbedding() chromem.EmbeddingFunc {
	return func(context.Context, string) ([]float32, error) {
		return nil, config.ErrMissingAPIKey
	}
}
