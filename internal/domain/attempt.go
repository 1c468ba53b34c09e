package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrAttemptNotFound is returned when an attempt does not exist.
var ErrAttemptNotFound = errors.New("attempt not found")

// Attempt records one graded check: which question was checked, what the
// student submitted and how it went.
type Attempt struct {
	ID        uuid.UUID
	Tag       string
	Question  string
	Status    string
	Stage     Stage
	Detail    string
	Cases     int
	Passed    int
	Source    string
	CreatedAt time.Time
}

// NewAttempt creates an attempt with a fresh identity.
func NewAttempt(tag, source string) *Attempt {
	return &Attempt{
		ID:        uuid.New(),
		Tag:       tag,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

// AttemptStore persists attempts.
type AttemptStore interface {
	Save(ctx context.Context, a *Attempt) error
	Get(ctx context.Context, id uuid.UUID) (*Attempt, error)
	ListByTag(ctx context.Context, tag string, limit int) ([]*Attempt, error)
	ListRecent(ctx context.Context, limit int) ([]*Attempt, error)
}
