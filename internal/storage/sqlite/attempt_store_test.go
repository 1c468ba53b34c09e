package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/testbank/internal/domain"
	"github.com/felixgeelhaar/testbank/internal/storage/sqlite"
)

func openStore(t *testing.T) *sqlite.AttemptStore {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return sqlite.NewAttemptStore(db)
}

func sampleAttempt(tag string, at time.Time) *domain.Attempt {
	return &domain.Attempt{
		ID:        uuid.New(),
		Tag:       tag,
		Question:  "DoubleIt",
		Status:    "fail",
		Stage:     domain.StageExecute,
		Detail:    "case 1: got 7, expected 6",
		Cases:     2,
		Passed:    0,
		Source:    "func double(x int) int { return x*2 + 1 }",
		CreatedAt: at,
	}
}

func TestSaveAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	a := sampleAttempt("@di-1234", time.Now().UTC().Truncate(time.Second))
	if err := store.Save(ctx, a); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Tag != a.Tag || got.Status != a.Status || got.Stage != a.Stage {
		t.Errorf("Get() = %+v, want %+v", got, a)
	}
	if got.Source != a.Source {
		t.Errorf("source not persisted: %q", got.Source)
	}

	// Saving again with a new status must update, not duplicate.
	a.Status = "pass"
	a.Passed = 2
	if err := store.Save(ctx, a); err != nil {
		t.Fatalf("Save() update error = %v", err)
	}
	got, err = store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != "pass" || got.Passed != 2 {
		t.Errorf("update lost: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	store := openStore(t)
	_, err := store.Get(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Errorf("Get(missing) = %v, want ErrAttemptNotFound", err)
	}
}

func TestListByTag(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		a := sampleAttempt("@di-1234", base.Add(time.Duration(i)*time.Second))
		if err := store.Save(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	other := sampleAttempt("@zz-0000", base)
	if err := store.Save(ctx, other); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListByTag(ctx, "@di-1234", 2)
	if err != nil {
		t.Fatalf("ListByTag() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d attempts, want 2", len(got))
	}
	if got[0].CreatedAt.Before(got[1].CreatedAt) {
		t.Error("attempts not ordered newest first")
	}

	recent, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(recent) != 4 {
		t.Errorf("got %d recent attempts, want 4", len(recent))
	}
}
