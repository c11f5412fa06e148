// Package session implements the Session repository using PostgreSQL.
// All queries use raw SQL; the candidate lookup for delta analysis is a
// single OR query over both checksums.
package session

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

// Repo provides session persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new session repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const sessionColumns = `
    id, owner_id, car_checksum, receipt_checksum, status,
    total_employees, processed_employees, skipped_employees, failed_employees,
    base_session_id, created_at, completed_at`

const createSQL = `
INSERT INTO sessions (
    id, owner_id, car_checksum, receipt_checksum, status,
    total_employees, processed_employees, skipped_employees, failed_employees,
    base_session_id, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const getByIDSQL = `
SELECT` + sessionColumns + `
FROM sessions
WHERE id = $1`

// findByChecksumsSQL backs delta analysis: one round trip fetches every
// finished prior session of the owner matching on either file. The caller
// partitions rows into exact and partial matches.
const findByChecksumsSQL = `
SELECT` + sessionColumns + `
FROM sessions
WHERE owner_id = $1
  AND status IN ('COMPLETED', 'FAILED')
  AND (car_checksum = $2 OR receipt_checksum = $3)
  AND ($4::uuid IS NULL OR id <> $4)
ORDER BY created_at DESC`

const updateProgressSQL = `
UPDATE sessions
SET status = $2,
    processed_employees = $3,
    skipped_employees = $4,
    failed_employees = $5,
    completed_at = CASE WHEN $6 THEN now() ELSE completed_at END
WHERE id = $1`

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Create inserts a new session row.
func (r *Repo) Create(ctx context.Context, s *domain.Session) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := querier.Exec(ctx, createSQL,
		s.ID, s.OwnerID, s.CARChecksum, s.ReceiptChecksum, s.Status,
		s.TotalEmployees, s.ProcessedEmployees, s.SkippedEmployees, s.FailedEmployees,
		s.BaseSessionID, createdAt,
	)
	if err != nil {
		return postgres.MapError(err, "session", s.ID)
	}

	return nil
}

// GetByID returns a session by primary key.
func (r *Repo) GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, getByIDSQL, sessionID)

	s, err := scanSession(row)
	if err != nil {
		return nil, postgres.MapError(err, "session", sessionID)
	}

	return &s, nil
}

// FindByChecksums returns finished sessions of owner whose car checksum OR
// receipt checksum matches, most recent first. excludeID removes the session
// being analyzed from its own candidate set; nil disables the exclusion.
func (r *Repo) FindByChecksums(ctx context.Context, ownerID uuid.UUID, carChecksum, receiptChecksum string, excludeID *uuid.UUID) ([]domain.Session, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, findByChecksumsSQL, ownerID, carChecksum, receiptChecksum, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find sessions by checksums: %w", err)
	}
	defer rows.Close()

	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, fmt.Errorf("find sessions by checksums: %w", err)
	}

	return sessions, nil
}

// UpdateProgress writes employee counters and the status in one statement.
// Transitioning into a terminal status stamps completed_at.
func (r *Repo) UpdateProgress(ctx context.Context, sessionID uuid.UUID, status domain.SessionStatus, processed, skipped, failed int) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, updateProgressSQL,
		sessionID, status, processed, skipped, failed, status.IsTerminal(),
	)
	if err != nil {
		return postgres.MapError(err, "session", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, "session", sessionID)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Row mapping
// ---------------------------------------------------------------------------

func scanSession(row pgx.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.CARChecksum, &s.ReceiptChecksum, &s.Status,
		&s.TotalEmployees, &s.ProcessedEmployees, &s.SkippedEmployees, &s.FailedEmployees,
		&s.BaseSessionID, &s.CreatedAt, &s.CompletedAt,
	)
	if err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func scanSessions(rows pgx.Rows) ([]domain.Session, error) {
	sessions := []domain.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
