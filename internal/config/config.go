// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, RECALL_ prefix)
//  2. Config file (~/.recall/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Storage: SQLite database path and vector index directory
//   - Ingestion: chunk size, overlap, file size limit, parse parallelism
//   - AI: Gemini model and embedder model selection
//
// Security: the API key is never logged; the config directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidChunkOverlap indicates the overlap is negative or >= chunk size.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap")

	// ErrInvalidMaxFileSize indicates the maximum file size is not positive.
	ErrInvalidMaxFileSize = errors.New("invalid max file size")

	// ErrInvalidWorkers indicates the parse worker count is out of range.
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is the number of characters shared between
	// adjacent chunks.
	DefaultChunkOverlap = 50

	// MaxChunkSize is the upper bound for configured chunk size. Embedding
	// models truncate long inputs, so larger chunks lose retrieval quality.
	MaxChunkSize = 8192

	// DefaultMaxFileSize is the per-file size limit for ingestion (50 MB).
	DefaultMaxFileSize = 50 * 1024 * 1024

	// DefaultParallelThreshold is the batch size above which file parsing
	// fans out across workers.
	DefaultParallelThreshold = 5

	// DefaultParseWorkers bounds the file parsing worker pool.
	DefaultParseWorkers = 4

	// MaxParseWorkers is the absolute worker ceiling.
	MaxParseWorkers = 32

	// DefaultModelName is the default Gemini generation model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default Gemini embedder model.
	DefaultEmbedderModel = "gemini-embedding-001"
)

// Config stores application configuration.
// SECURITY: GeminiAPIKey is sensitive and must never be logged.
type Config struct {
	// Storage configuration
	DataDir      string `mapstructure:"data_dir" json:"data_dir"`           // Base directory for local state
	DatabasePath string `mapstructure:"database_path" json:"database_path"` // SQLite database file
	VectorDir    string `mapstructure:"vector_dir" json:"vector_dir"`       // chromem-go persistence directory

	// Ingestion configuration
	ChunkSize         int   `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap      int   `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	MaxFileSize       int64 `mapstructure:"max_file_size" json:"max_file_size"`
	ParallelThreshold int   `mapstructure:"parallel_threshold" json:"parallel_threshold"`
	ParseWorkers      int   `mapstructure:"parse_workers" json:"parse_workers"`

	// AI configuration
	GeminiAPIKey  string `mapstructure:"gemini_api_key" json:"-"` // SENSITIVE: excluded from JSON
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Quiz configuration
	QuestionCount int `mapstructure:"question_count" json:"question_count"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"` // debug, info, warn, error
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".recall")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v, configDir)

	// Bind environment variables: RECALL_CHUNK_SIZE, RECALL_GEMINI_API_KEY, ...
	v.SetEnvPrefix("RECALL")
	v.AutomaticEnv()

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// GEMINI_API_KEY without prefix is the conventional variable name for
	// the Gemini SDK; honor it when the prefixed form is unset.
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("data_dir", configDir)
	v.SetDefault("database_path", filepath.Join(configDir, "recall.db"))
	v.SetDefault("vector_dir", filepath.Join(configDir, "vectors"))

	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("max_file_size", DefaultMaxFileSize)
	v.SetDefault("parallel_threshold", DefaultParallelThreshold)
	v.SetDefault("parse_workers", DefaultParseWorkers)

	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("question_count", 5)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate checks configuration values and returns a sentinel error for the
// first violation found. The API key is deliberately not validated here:
// ingestion and quiz commands require it, but read-only commands (list,
// history, delete) work without one. Callers that need the key use RequireAPIKey.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ChunkSize < 1 || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: must be in [1, %d], got %d", ErrInvalidChunkSize, MaxChunkSize, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: must be in [0, chunk_size), got %d", ErrInvalidChunkOverlap, c.ChunkOverlap)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidMaxFileSize, c.MaxFileSize)
	}
	if c.ParseWorkers < 1 || c.ParseWorkers > MaxParseWorkers {
		return fmt.Errorf("%w: must be in [1, %d], got %d", ErrInvalidWorkers, MaxParseWorkers, c.ParseWorkers)
	}
	if c.ParallelThreshold < 1 {
		return fmt.Errorf("%w: parallel_threshold must be positive, got %d", ErrInvalidWorkers, c.ParallelThreshold)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name is empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model is empty", ErrInvalidModelName)
	}

	return nil
}

// RequireAPIKey verifies the Gemini API key is configured.
func (c *Config) RequireAPIKey() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY or gemini_api_key in config.yaml", ErrMissingAPIKey)
	}
	return nil
}
