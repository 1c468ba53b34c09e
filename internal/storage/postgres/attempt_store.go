// Package postgres provides the attempt store used in server mode, backed
// by PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/testbank/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
    id         UUID PRIMARY KEY,
    tag        TEXT NOT NULL,
    question   TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL,
    stage      TEXT NOT NULL DEFAULT '',
    detail     TEXT NOT NULL DEFAULT '',
    cases      INTEGER NOT NULL DEFAULT 0,
    passed     INTEGER NOT NULL DEFAULT 0,
    source     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_tag ON attempts(tag, created_at DESC);
`

// AttemptStore implements attempt persistence backed by PostgreSQL.
type AttemptStore struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against the given URL and ensures the schema.
func Connect(ctx context.Context, url string) (*AttemptStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &AttemptStore{pool: pool}, nil
}

// NewAttemptStore wraps an existing pool.
func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// Close releases the connection pool.
func (s *AttemptStore) Close() {
	s.pool.Close()
}

// Save persists an attempt (insert or update).
func (s *AttemptStore) Save(ctx context.Context, a *domain.Attempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (id, tag, question, status, stage, detail, cases, passed, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status=excluded.status, stage=excluded.stage, detail=excluded.detail,
			cases=excluded.cases, passed=excluded.passed`,
		a.ID, a.Tag, a.Question, a.Status, string(a.Stage),
		a.Detail, a.Cases, a.Passed, a.Source, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt by ID.
func (s *AttemptStore) Get(ctx context.Context, id uuid.UUID) (*domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tag, question, status, stage, detail, cases, passed, source, created_at
		FROM attempts WHERE id = $1`, id)

	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	return a, nil
}

// ListByTag returns the most recent attempts against a tag.
func (s *AttemptStore) ListByTag(ctx context.Context, tag string, limit int) ([]*domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tag, question, status, stage, detail, cases, passed, source, created_at
		FROM attempts WHERE tag = $1
		ORDER BY created_at DESC LIMIT $2`, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts by tag: %w", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// ListRecent returns the most recent attempts across all tags.
func (s *AttemptStore) ListRecent(ctx context.Context, limit int) ([]*domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tag, question, status, stage, detail, cases, passed, source, created_at
		FROM attempts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent attempts: %w", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

func collectAttempts(rows pgx.Rows) ([]*domain.Attempt, error) {
	var attempts []*domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func scanAttempt(row pgx.Row) (*domain.Attempt, error) {
	var a domain.Attempt
	var stage string

	err := row.Scan(&a.ID, &a.Tag, &a.Question, &a.Status, &stage,
		&a.Detail, &a.Cases, &a.Passed, &a.Source, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.Stage = domain.Stage(stage)
	return &a, nil
}

// Ensure AttemptStore implements domain.AttemptStore.
var _ domain.AttemptStore = (*AttemptStore)(nil)
