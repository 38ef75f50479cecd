package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/liuzhen0/recall/internal/history"
	"github.com/liuzhen0/recall/internal/kb"
)

// Store implements the knowledge-base repository and the quiz history
// repository over one SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore wires a store over an opened, migrated database.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

var (
	_ kb.Repository      = (*Store)(nil)
	_ history.Repository = (*Store)(nil)
)

// Create inserts a knowledge-base record. A primary-key collision on the
// name becomes a validation error; the unique constraint is the
// authoritative duplicate guard under concurrent creation.
func (s *Store) Create(ctx context.Context, record *kb.KnowledgeBase) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases (name, description, file_count, document_count, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.Name, record.Description, record.FileCount, record.DocumentCount, record.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return kb.Validationf("knowledge base %q already exists", record.Name)
		}
		return kb.Databasef("insert knowledge base %q: %v", record.Name, err)
	}
	s.logger.Debug("knowledge base row inserted", "name", record.Name)
	return nil
}

// Exists reports whether a record with the given name is present.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM knowledge_bases WHERE name = ?`, name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, kb.Databasef("check knowledge base %q: %v", name, err)
	}
	return true, nil
}

// Get returns the named record.
func (s *Store) Get(ctx context.Context, name string) (*kb.KnowledgeBase, error) {
	var record kb.KnowledgeBase
	err := s.db.QueryRowContext(ctx, `
		SELECT name, description, file_count, document_count, created_at
		FROM knowledge_bases WHERE name = ?`, name,
	).Scan(&record.Name, &record.Description, &record.FileCount, &record.DocumentCount, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kb.NotFoundf("knowledge base %q does not exist", name)
	}
	if err != nil {
		return nil, kb.Databasef("load knowledge base %q: %v", name, err)
	}
	return &record, nil
}

// List returns all records, newest first.
func (s *Store) List(ctx context.Context) ([]kb.KnowledgeBase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, file_count, document_count, created_at
		FROM knowledge_bases ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, kb.Databasef("list knowledge bases: %v", err)
	}
	defer rows.Close()

	var records []kb.KnowledgeBase
	for rows.Next() {
		var record kb.KnowledgeBase
		if err := rows.Scan(&record.Name, &record.Description, &record.FileCount, &record.DocumentCount, &record.CreatedAt); err != nil {
			return nil, kb.Databasef("scan knowledge base row: %v", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, kb.Databasef("iterate knowledge bases: %v", err)
	}
	return records, nil
}

// UpdateCounts adds the deltas to the stored file and document counts.
func (s *Store) UpdateCounts(ctx context.Context, name string, fileDelta, documentDelta int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_bases
		SET file_count = file_count + ?, document_count = document_count + ?
		WHERE name = ?`,
		fileDelta, documentDelta, name,
	)
	if err != nil {
		return kb.Databasef("update counts for %q: %v", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return kb.Databasef("update counts for %q: %v", name, err)
	}
	if n == 0 {
		return kb.NotFoundf("knowledge base %q does not exist", name)
	}
	return nil
}

// Delete removes the record, reporting whether a row was deleted.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE name = ?`, name)
	if err != nil {
		return false, kb.Databasef("delete knowledge base %q: %v", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, kb.Databasef("delete knowledge base %q: %v", name, err)
	}
	return n > 0, nil
}

// InsertAttempt persists one quiz attempt.
func (s *Store) InsertAttempt(ctx context.Context, attempt *history.Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, kb_name, question, answer, score, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.KBName, attempt.Question, attempt.Answer,
		attempt.Score, attempt.Feedback, attempt.CreatedAt.UTC(),
	)
	if err != nil {
		return kb.Databasef("insert attempt for %q: %v", attempt.KBName, err)
	}
	return nil
}

// ListAttempts returns attempts for the knowledge base, or all attempts when
// kbName is empty. Newest first.
func (s *Store) ListAttempts(ctx context.Context, kbName string) ([]history.Attempt, error) {
	query := `
		SELECT id, kb_name, question, answer, score, feedback, created_at
		FROM attempts`
	args := []any{}
	if kbName != "" {
		query += ` WHERE kb_name = ?`
		args = append(args, kbName)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, kb.Databasef("list attempts: %v", err)
	}
	defer rows.Close()

	var attempts []history.Attempt
	for rows.Next() {
		var a history.Attempt
		if err := rows.Scan(&a.ID, &a.KBName, &a.Question, &a.Answer, &a.Score, &a.Feedback, &a.CreatedAt); err != nil {
			return nil, kb.Databasef("scan attempt row: %v", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, kb.Databasef("iterate attempts: %v", err)
	}
	return attempts, nil
}

// DeleteAttempts removes all attempts referencing the knowledge base.
func (s *Store) DeleteAttempts(ctx context.Context, kbName string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE kb_name = ?`, kbName)
	if err != nil {
		return 0, kb.Databasef("delete attempts for %q: %v", kbName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, kb.Databasef("delete attempts for %q: %v", kbName, err)
	}
	return n, nil
}

// isUniqueViolation reports whether err is a SQLite primary-key or unique
// constraint failure.
func isUniqueViolation(err error) bool {
	var serr *sqlitedriver.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
