package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finchley/expense-recon/internal/adapter/postgres/session"
	"github.com/finchley/expense-recon/internal/adapter/postgres/testhelper"
	"github.com/finchley/expense-recon/internal/domain"
)

// newRepo is a test helper that sets up the DB and returns a ready Repo.
func newRepo(t *testing.T) (*session.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return session.New(pool), pool
}

func TestRepo_Create_And_GetByID(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	s := domain.Session{
		ID:              uuid.New(),
		OwnerID:         uuid.New(),
		CARChecksum:     testhelper.UniqueChecksum(),
		ReceiptChecksum: testhelper.UniqueChecksum(),
		Status:          domain.SessionStatusPending,
		TotalEmployees:  12,
		CreatedAt:       now,
	}

	if err := repo.Create(ctx, &s); err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: unexpected error: %v", err)
	}

	if got.ID != s.ID || got.OwnerID != s.OwnerID {
		t.Errorf("GetByID identity mismatch: got %v/%v", got.ID, got.OwnerID)
	}
	if got.CARChecksum != s.CARChecksum || got.ReceiptChecksum != s.ReceiptChecksum {
		t.Errorf("GetByID checksums mismatch: got %q/%q", got.CARChecksum, got.ReceiptChecksum)
	}
	if got.Status != domain.SessionStatusPending {
		t.Errorf("GetByID status = %q, want PENDING", got.Status)
	}
	if got.TotalEmployees != 12 {
		t.Errorf("GetByID total employees = %d, want 12", got.TotalEmployees)
	}
	if got.CompletedAt != nil {
		t.Errorf("GetByID completed_at = %v, want nil", got.CompletedAt)
	}
}

func TestRepo_Create_DuplicateID(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	s := domain.Session{
		ID:              uuid.New(),
		OwnerID:         uuid.New(),
		CARChecksum:     testhelper.UniqueChecksum(),
		ReceiptChecksum: testhelper.UniqueChecksum(),
		Status:          domain.SessionStatusPending,
	}
	if err := repo.Create(ctx, &s); err != nil {
		t.Fatalf("Create first: %v", err)
	}

	err := repo.Create(ctx, &s)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("Create duplicate = %v, want ErrAlreadyExists", err)
	}
}

func TestRepo_GetByID_NotFound(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID missing = %v, want ErrNotFound", err)
	}
}

func TestRepo_FindByChecksums_MatchesEitherFile(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	ownerID := uuid.New()
	carSum := testhelper.UniqueChecksum()
	receiptSum := testhelper.UniqueChecksum()

	exact := testhelper.SeedSession(t, pool, ownerID, domain.SessionStatusCompleted, func(s *domain.Session) {
		s.CARChecksum = carSum
		s.ReceiptChecksum = receiptSum
	})
	carOnly := testhelper.SeedSession(t, pool, ownerID, domain.SessionStatusCompleted, func(s *domain.Session) {
		s.CARChecksum = carSum
	})
	receiptOnly := testhelper.SeedSession(t, pool, ownerID, domain.SessionStatusFailed, func(s *domain.Session) {
		s.ReceiptChecksum = receiptSum
	})
	// Noise that must not surface.
	testhelper.SeedSession(t, pool, ownerID, domain.SessionStatusCompleted, nil)

	got, err := repo.FindByChecksums(ctx, ownerID, carSum, receiptSum, nil)
	if err != nil {
		t.Fatalf("FindByChecksums: %v", err)
	}

	found := map[uuid.UUID]bool{}
	for _, s := range got {
		found[s.ID] = true
	}
	for _, want := range []uuid.UUID{exact.ID, carOnly.ID, receiptOnly.ID} {
		if !found[want] {
			t.Errorf("FindByChecksums missing session %s", want)
		}
	}
	if len(got) != 3 {
		t.Errorf("FindByChecksums returned %d sessions, want 3", len(got))
	}
}

func TestRepo_FindByChecksums_ScopedToOwner(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	carSum := testhelper.UniqueChecksum()
	receiptSum := testhelper.UniqueChecksum()

	otherOwner := uuid.New()
	testhelper.SeedSession(t, pool, otherOwner, domain.SessionStatusCompleted, func(s *domain.Session) {
		s.CARChecksum = carSum
		s.ReceiptChecksum = receiptSum
	})

	got, err := repo.FindByChecksums(ctx, uuid.New(), carSum, receiptSum, nil)
	if err != nil {
		t.Fatalf("FindByChecksums: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("FindByChecksums leaked %d sessions across owners", len(got))
	}
}

func TestRepo_FindByChecksums_SkipsUnfinishedAndExcluded(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	ownerID := uuid.New()
	carSum := testhelper.UniqueChecksum()
	receiptSum := testhelper.UniqueChecksum()

	match := func(s *domain.Session) {
		s.CARChecksum = carSum
		s.ReceiptChecksum = receiptSum
	}

	keep := testhelper.SeedSession(t, pool, ownerID, domain.SessionStatusCompleted, match)
	excluded := testhelper.SeedSession(t, pool, ownerID, domain.SessionStatusCompleted, match)
	// In-flight runs are not candidates.
	testhelper.SeedSession(t, pool, ownerID, domain.SessionStatusProcessing, match)
	testhelper.SeedSession(t, pool, ownerID, domain.SessionStatusPending, match)

	got, err := repo.FindByChecksums(ctx, ownerID, carSum, receiptSum, &excluded.ID)
	if err != nil {
		t.Fatalf("FindByChecksums: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("FindByChecksums returned %d sessions, want 1", len(got))
	}
	if got[0].ID != keep.ID {
		t.Errorf("FindByChecksums returned %s, want %s", got[0].ID, keep.ID)
	}
}

func TestRepo_FindByChecksums_MostRecentFirst(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	ownerID := uuid.New()
	carSum := testhelper.UniqueChecksum()
	receiptSum := testhelper.UniqueChecksum()

	old := testhelper.SeedSession(t, pool, ownerID, domain.SessionStatusCompleted, func(s *domain.Session) {
		s.CARChecksum = carSum
		s.ReceiptChecksum = receiptSum
		s.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	})
	recent := testhelper.SeedSession(t, pool, ownerID, domain.SessionStatusCompleted, func(s *domain.Session) {
		s.CARChecksum = carSum
		s.ReceiptChecksum = receiptSum
		s.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	})

	got, err := repo.FindByChecksums(ctx, ownerID, carSum, receiptSum, nil)
	if err != nil {
		t.Fatalf("FindByChecksums: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FindByChecksums returned %d sessions, want 2", len(got))
	}
	if got[0].ID != recent.ID || got[1].ID != old.ID {
		t.Errorf("FindByChecksums order = [%s %s], want [%s %s]", got[0].ID, got[1].ID, recent.ID, old.ID)
	}
}

func TestRepo_UpdateProgress(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	s := testhelper.SeedSession(t, pool, uuid.New(), domain.SessionStatusProcessing, func(s *domain.Session) {
		s.TotalEmployees = 10
	})

	err := repo.UpdateProgress(ctx, s.ID, domain.SessionStatusCompleted, 7, 2, 1)
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.SessionStatusCompleted {
		t.Errorf("status = %q, want COMPLETED", got.Status)
	}
	if got.ProcessedEmployees != 7 || got.SkippedEmployees != 2 || got.FailedEmployees != 1 {
		t.Errorf("counters = %d/%d/%d, want 7/2/1",
			got.ProcessedEmployees, got.SkippedEmployees, got.FailedEmployees)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not stamped on terminal transition")
	}
}

func TestRepo_UpdateProgress_NonTerminalKeepsCompletedAtEmpty(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	s := testhelper.SeedSession(t, pool, uuid.New(), domain.SessionStatusPending, nil)

	if err := repo.UpdateProgress(ctx, s.ID, domain.SessionStatusProcessing, 0, 0, 0); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.SessionStatusProcessing {
		t.Errorf("status = %q, want PROCESSING", got.Status)
	}
	if got.CompletedAt != nil {
		t.Errorf("completed_at = %v, want nil for non-terminal status", got.CompletedAt)
	}
}

func TestRepo_UpdateProgress_NotFound(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	err := repo.UpdateProgress(context.Background(), uuid.New(), domain.SessionStatusCompleted, 1, 0, 0)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("UpdateProgress missing = %v, want ErrNotFound", err)
	}
}
