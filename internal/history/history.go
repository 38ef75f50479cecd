// Package history records quiz attempts and answers queries over them.
// Persistence is append-only; filtering, sorting, and pagination happen
// in memory over the loaded attempt set.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attempt is one answered quiz question.
type Attempt struct {
	ID        string    `json:"id"`
	KBName    string    `json:"kb_name"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Score     float64   `json:"score"`
	Feedback  string    `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the persistence the history service depends on.
type Repository interface {
	InsertAttempt(ctx context.Context, attempt *Attempt) error
	ListAttempts(ctx context.Context, kbName string) ([]Attempt, error)
	DeleteAttempts(ctx context.Context, kbName string) (int64, error)
}

// SortOrder selects how query results are ordered.
type SortOrder string

const (
	SortByRecency SortOrder = "recency"
	SortByScore   SortOrder = "score"
)

// Query narrows and pages a history listing. A zero KBName matches all
// knowledge bases; Limit <= 0 means no limit.
type Query struct {
	KBName   string
	MinScore float64
	Sort     SortOrder
	Offset   int
	Limit    int
}

// Service provides attempt recording and querying.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// New wires a history service over the repository.
func New(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record persists one attempt, assigning its ID and timestamp.
func (s *Service) Record(ctx context.Context, kbName, question, answer string, score float64, feedback string) (*Attempt, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question must not be empty")
	}
	attempt := &Attempt{
		ID:        uuid.NewString(),
		KBName:    kbName,
		Question:  question,
		Answer:    answer,
		Score:     score,
		Feedback:  feedback,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}
	s.logger.Debug("attempt recorded", "kb", kbName, "score", score)
	return attempt, nil
}

// List returns attempts matching the query, filtered, sorted, and paged.
func (s *Service) List(ctx context.Context, q Query) ([]Attempt, error) {
	attempts, err := s.repo.ListAttempts(ctx, q.KBName)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	filtered := attempts[:0:0]
	for _, a := range attempts {
		if a.Score < q.MinScore {
			continue
		}
		filtered = append(filtered, a)
	}

	switch q.Sort {
	case SortByScore:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Score > filtered[j].Score
		})
	default:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		})
	}

	return page(filtered, q.Offset, q.Limit), nil
}

// Stats summarizes a filtered attempt set.
type Stats struct {
	Count        int     `json:"count"`
	AverageScore float64 `json:"average_score"`
	BestScore    float64 `json:"best_score"`
}

// Summarize computes aggregate statistics for a knowledge base's attempts.
func (s *Service) Summarize(ctx context.Context, kbName string) (Stats, error) {
	attempts, err := s.repo.ListAttempts(ctx, kbName)
	if err != nil {
		return Stats{}, fmt.Errorf("summarize attempts: %w", err)
	}

	stats := Stats{Count: len(attempts)}
	if stats.Count == 0 {
		return stats, nil
	}
	var total float64
	for _, a := range attempts {
		total += a.Score
		if a.Score > stats.BestScore {
			stats.BestScore = a.Score
		}
	}
	stats.AverageScore = total / float64(stats.Count)
	return stats, nil
}

func page(attempts []Attempt, offset, limit int) []Attempt {
	if offset >= len(attempts) {
		return nil
	}
	if offset > 0 {
		attempts = attempts[offset:]
	}
	if limit > 0 && limit < len(attempts) {
		attempts = attempts[:limit]
	}
	return attempts
}
