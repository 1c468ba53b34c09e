package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/testbank/internal/domain"
)

// AttemptStore implements attempt persistence backed by SQLite.
type AttemptStore struct {
	db *DB
}

// NewAttemptStore creates a new SQLite-backed attempt store.
func NewAttemptStore(db *DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// Save persists an attempt (insert or update).
func (s *AttemptStore) Save(ctx context.Context, a *domain.Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, tag, question, status, stage, detail, cases, passed, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, stage=excluded.stage, detail=excluded.detail,
			cases=excluded.cases, passed=excluded.passed`,
		a.ID.String(), a.Tag, a.Question, a.Status, string(a.Stage),
		a.Detail, a.Cases, a.Passed, a.Source, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt by ID.
func (s *AttemptStore) Get(ctx context.Context, id uuid.UUID) (*domain.Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tag, question, status, stage, detail, cases, passed, source, created_at
		FROM attempts WHERE id = ?`, id.String())

	a, err := scanAttempt(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	return a, nil
}

// ListByTag returns the most recent attempts against a tag.
func (s *AttemptStore) ListByTag(ctx context.Context, tag string, limit int) ([]*domain.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tag, question, status, stage, detail, cases, passed, source, created_at
		FROM attempts WHERE tag = ?
		ORDER BY created_at DESC LIMIT ?`, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts by tag: %w", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// ListRecent returns the most recent attempts across all tags.
func (s *AttemptStore) ListRecent(ctx context.Context, limit int) ([]*domain.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tag, question, status, stage, detail, cases, passed, source, created_at
		FROM attempts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent attempts: %w", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

func collectAttempts(rows *sql.Rows) ([]*domain.Attempt, error) {
	var attempts []*domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func scanAttempt(scan func(dest ...any) error) (*domain.Attempt, error) {
	var a domain.Attempt
	var id, stage string

	err := scan(&id, &a.Tag, &a.Question, &a.Status, &stage,
		&a.Detail, &a.Cases, &a.Passed, &a.Source, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse attempt id %q: %w", id, err)
	}
	a.ID = parsed
	a.Stage = domain.Stage(stage)
	return &a, nil
}

// Ensure AttemptStore implements domain.AttemptStore.
var _ domain.AttemptStore = (*AttemptStore)(nil)
