package testhelper

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finchley/expense-recon/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// UniqueChecksum fabricates a valid 64-hex checksum that is unique per call.
// The uuid hex (32 chars, dashes stripped) is doubled to reach 64.
func UniqueChecksum() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return hex + hex
}

// SeedSession inserts a session with the given status and returns it filled.
// Checksums are unique per call unless overridden via mutate.
func SeedSession(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID, status domain.SessionStatus, mutate func(*domain.Session)) domain.Session {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	s := domain.Session{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		CARChecksum:     UniqueChecksum(),
		ReceiptChecksum: UniqueChecksum(),
		Status:          status,
		CreatedAt:       now,
	}
	if status.IsTerminal() {
		completed := now
		s.CompletedAt = &completed
	}
	if mutate != nil {
		mutate(&s)
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO sessions (id, owner_id, car_checksum, receipt_checksum, status,
		     total_employees, processed_employees, skipped_employees, failed_employees,
		     base_session_id, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.OwnerID, s.CARChecksum, s.ReceiptChecksum, s.Status,
		s.TotalEmployees, s.ProcessedEmployees, s.SkippedEmployees, s.FailedEmployees,
		s.BaseSessionID, s.CreatedAt, s.CompletedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedSession insert session: %v", err)
	}

	return s
}

// SeedSnapshot inserts one employee snapshot row for a session and returns it.
func SeedSnapshot(t *testing.T, pool *pgxpool.Pool, sessionID uuid.UUID, employeeID string) domain.EmployeeSnapshot {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	snap := domain.EmployeeSnapshot{
		ID:               uuid.New(),
		SessionID:        sessionID,
		EmployeeID:       employeeID,
		EmployeeName:     "Employee " + suffix,
		CARAmount:        decimal.NewFromFloat(150.00),
		ReceiptAmount:    decimal.NewFromFloat(150.00),
		ValidationStatus: domain.ValidationStatusValid,
		CreatedAt:        now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO employee_snapshots (id, session_id, employee_id, employee_key, employee_name,
		     car_amount, receipt_amount, validation_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		snap.ID, snap.SessionID, snap.EmployeeID, domain.NormalizeEmployeeKey(snap.EmployeeID),
		snap.EmployeeName, snap.CARAmount, snap.ReceiptAmount, snap.ValidationStatus, snap.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedSnapshot insert snapshot: %v", err)
	}

	return snap
}
