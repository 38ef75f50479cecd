// Package llm wraps the Gemini API behind the two operations the rest of
// the system needs: JSON-shaped text generation and embeddings.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	chromem "github.com/philippgille/chromem-go"
	"google.golang.org/genai"
)

// Config carries the Gemini connection settings.
type Config struct {
	APIKey        string
	Model         string
	EmbedderModel string
}

// RetryConfig configures backoff for transient API failures.
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryConfig returns sensible defaults for Gemini API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		MaxDelay: 10 * time.Second,
	}
}

// Client is a Gemini API client. Construct once at startup and share; it is
// safe for concurrent use.
type Client struct {
	api        *genai.Client
	model      string
	embedModel string
	retryOpts  []retry.Option
	logger     *slog.Logger
}

// New connects to the Gemini API.
func New(ctx context.Context, cfg Config, rc RetryConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		api:        api,
		model:      cfg.Model,
		embedModel: cfg.EmbedderModel,
		retryOpts: []retry.Option{
			retry.Attempts(rc.Attempts),
			retry.Delay(rc.Delay),
			retry.MaxDelay(rc.MaxDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.RetryIf(retryableError),
			retry.LastErrorOnly(true),
		},
		logger: logger,
	}, nil
}

// GenerateJSON sends the prompt and returns the model's reply, requesting a
// JSON response. Transient failures are retried with exponential backoff;
// the reply is returned as-is, parsing is the caller's concern.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	opts := append([]retry.Option{retry.Context(ctx)}, c.retryOpts...)
	reply, err := retry.DoWithData(func() (string, error) {
		resp, err := c.api.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
		if err != nil {
			return "", err
		}
		text := resp.Text()
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("model returned an empty reply")
		}
		return text, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	c.logger.Debug("model reply received", "model", c.model, "chars", len(reply))
	return reply, nil
}

// EmbedFunc bridges the Gemini embedding API into a chromem EmbeddingFunc.
// chromem normalizes vectors itself, so the values pass through untouched.
func (c *Client) EmbedFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		values, err := retry.DoWithData(func() ([]float32, error) {
			resp, err := c.api.Models.EmbedContent(ctx, c.embedModel,
				genai.Text(text), &genai.EmbedContentConfig{})
			if err != nil {
				return nil, err
			}
			if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
				return nil, fmt.Errorf("empty embedding returned")
			}
			return resp.Embeddings[0].Values, nil
		}, append([]retry.Option{retry.Context(ctx)}, c.retryOpts...)...)
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		return values, nil
	}
}

// retryablePatterns groups error substrings by category, matched
// case-insensitively against err.Error().
//
// String matching is used because the provider SDK does not expose typed
// errors for transient failures.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable", "overloaded"},
	{"connection reset", "timeout", "temporary"},
}

// retryableError reports whether err is transient and worth retrying.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, pattern := range group {
			if strings.Contains(msg, pattern) {
				return true
			}
		}
	}
	return false
}
