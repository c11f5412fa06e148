// Package reprocess drives the per-employee batch of a delta session:
// unchanged employees are copied forward from the base session, everything
// else goes through full revalidation and line reconciliation. The loop
// honors an externally-owned pause/cancel control between employees.
package reprocess

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/finchley/expense-recon/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type snapshotRepo interface {
	// Insert stores the freshly parsed snapshot for a processed employee.
	Insert(ctx context.Context, snap *domain.EmployeeSnapshot) error
	// CopyForward duplicates an unchanged employee's base-session row
	// into the target session, carrying its validation outcome.
	CopyForward(ctx context.Context, baseSessionID, targetSessionID uuid.UUID, employeeKey string) error
}

type matchSetRepo interface {
	Save(ctx context.Context, sessionID uuid.UUID, employeeKey string, set domain.MatchSet) error
}

type sessionRepo interface {
	UpdateProgress(ctx context.Context, sessionID uuid.UUID, status domain.SessionStatus, processed, skipped, failed int) error
}

type changeLogRepo interface {
	// RecordBatch appends the batch's full change analysis as the
	// session's audit trail. Removed employees appear only here.
	RecordBatch(ctx context.Context, sessionID uuid.UUID, changes []domain.EmployeeChange) error
}

// txManager runs a function inside one database transaction. Satisfied by
// postgres.TxManager.
type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// reconciler matches an employee's receipt lines against CAR lines.
// Satisfied by linematch.Match.
type reconciler func(receipts, car []domain.LineItem) domain.MatchSet

// ---------------------------------------------------------------------------
// Inputs and outputs
// ---------------------------------------------------------------------------

// EmployeeWork is everything the batch needs for one employee.
type EmployeeWork struct {
	Snapshot     domain.EmployeeSnapshot
	Change       domain.EmployeeChange
	ReceiptLines []domain.LineItem
	CARLines     []domain.LineItem
}

// Batch describes one orchestration run.
type Batch struct {
	SessionID     uuid.UUID
	BaseSessionID *uuid.UUID
	Employees     []EmployeeWork
	// SkipUnchanged is the change analysis verdict: when false, every
	// employee runs the full path regardless of its change type.
	SkipUnchanged bool
}

// Result reports how the batch ended.
type Result struct {
	Processed int
	Skipped   int
	Failed    int
	// Cancelled is true when the run stopped at a cancel checkpoint.
	// Counters reflect the employees handled before the stop.
	Cancelled bool
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements the batch orchestration policy.
type Service struct {
	log       *slog.Logger
	snapshots snapshotRepo
	matchSets matchSetRepo
	sessions  sessionRepo
	changeLog changeLogRepo
	txm       txManager
	reconcile reconciler
}

// NewService creates the orchestration service. reconcile is typically
// linematch.Match.
func NewService(
	log *slog.Logger,
	snapshots snapshotRepo,
	matchSets matchSetRepo,
	sessions sessionRepo,
	changeLog changeLogRepo,
	txm txManager,
	reconcile reconciler,
) *Service {
	return &Service{
		log:       log,
		snapshots: snapshots,
		matchSets: matchSets,
		sessions:  sessions,
		changeLog: changeLog,
		txm:       txm,
		reconcile: reconcile,
	}
}
