// Package snapshot implements the EmployeeSnapshot repository using
// PostgreSQL. The copy-forward path reuses a prior session's row with a
// single INSERT .. SELECT, so skipped employees never round-trip through Go.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/finchley/expense-recon/internal/adapter/postgres"
	"github.com/finchley/expense-recon/internal/domain"
)

// Repo provides employee snapshot persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new snapshot repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const insertSQL = `
INSERT INTO employee_snapshots (
    id, session_id, employee_id, employee_key, employee_name,
    car_amount, receipt_amount, validation_status, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const getBySessionSQL = `
SELECT id, session_id, employee_id, employee_name,
       car_amount, receipt_amount, validation_status, created_at
FROM employee_snapshots
WHERE session_id = $1
ORDER BY employee_key`

const copyForwardSQL = `
INSERT INTO employee_snapshots (
    id, session_id, employee_id, employee_key, employee_name,
    car_amount, receipt_amount, validation_status, created_at
)
SELECT gen_random_uuid(), $2, employee_id, employee_key, employee_name,
       car_amount, receipt_amount, validation_status, now()
FROM employee_snapshots
WHERE session_id = $1 AND employee_key = $3`

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Insert stores one snapshot. The employee key is derived from the employee
// identifier here so every row carries the same normalization the change
// detector uses.
func (r *Repo) Insert(ctx context.Context, snap *domain.EmployeeSnapshot) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := querier.Exec(ctx, insertSQL,
		snap.ID, snap.SessionID, snap.EmployeeID,
		domain.NormalizeEmployeeKey(snap.EmployeeID), snap.EmployeeName,
		snap.CARAmount, snap.ReceiptAmount, snap.ValidationStatus, createdAt,
	)
	if err != nil {
		return postgres.MapError(err, "employee_snapshot", snap.ID)
	}

	return nil
}

// BulkInsert stores snapshots in one batched round trip.
func (r *Repo) BulkInsert(ctx context.Context, snaps []domain.EmployeeSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	querier := postgres.QuerierFromCtx(ctx, r.pool)

	batch := &pgx.Batch{}
	now := time.Now()
	for i := range snaps {
		snap := &snaps[i]
		createdAt := snap.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		batch.Queue(insertSQL,
			snap.ID, snap.SessionID, snap.EmployeeID,
			domain.NormalizeEmployeeKey(snap.EmployeeID), snap.EmployeeName,
			snap.CARAmount, snap.ReceiptAmount, snap.ValidationStatus, createdAt,
		)
	}

	results := querier.SendBatch(ctx, batch)
	defer results.Close()

	for i := range snaps {
		if _, err := results.Exec(); err != nil {
			return postgres.MapError(err, "employee_snapshot", snaps[i].ID)
		}
	}

	return nil
}

// GetBySession returns every snapshot of a session ordered by employee key.
func (r *Repo) GetBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.EmployeeSnapshot, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, getBySessionSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by session: %w", err)
	}
	defer rows.Close()

	snaps := []domain.EmployeeSnapshot{}
	for rows.Next() {
		var s domain.EmployeeSnapshot
		err := rows.Scan(
			&s.ID, &s.SessionID, &s.EmployeeID, &s.EmployeeName,
			&s.CARAmount, &s.ReceiptAmount, &s.ValidationStatus, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("get snapshots by session: %w", err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get snapshots by session: %w", err)
	}

	return snaps, nil
}

// CopyForward clones one employee's snapshot from a prior session into the
// target session without materializing it in Go. Returns domain.ErrNotFound
// when the base session has no row for the key, which makes the caller fall
// back to full processing for that employee.
func (r *Repo) CopyForward(ctx context.Context, baseSessionID, targetSessionID uuid.UUID, employeeKey string) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, copyForwardSQL, baseSessionID, targetSessionID, employeeKey)
	if err != nil {
		return postgres.MapError(err, "employee_snapshot", targetSessionID)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, "employee_snapshot", baseSessionID)
	}

	return nil
}
