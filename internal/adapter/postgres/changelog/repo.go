// Package changelog implements the employee change audit trail using
// PostgreSQL. Records are append-only: a batch run writes its full change
// analysis once and nothing updates the rows afterwards.
package changelog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/finchley/expense-recon/internal/adapter/postgres"
	"github.com/finchley/expense-recon/internal/domain"
)

// Repo provides change log persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new change log repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const insertSQL = `
INSERT INTO employee_change_log (
    id, session_id, employee_key, change_type,
    changed_fields, source_confidence, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)`

const getBySessionSQL = `
SELECT employee_key, change_type, changed_fields, source_confidence
FROM employee_change_log
WHERE session_id = $1
ORDER BY employee_key`

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// RecordBatch appends one row per change record in a single batch. The
// whole analysis is written at once so the trail is either complete for a
// session or absent.
func (r *Repo) RecordBatch(ctx context.Context, sessionID uuid.UUID, changes []domain.EmployeeChange) error {
	if len(changes) == 0 {
		return nil
	}

	querier := postgres.QuerierFromCtx(ctx, r.pool)
	now := time.Now()

	batch := &pgx.Batch{}
	for _, change := range changes {
		fields, err := json.Marshal(change.ChangedFields)
		if err != nil {
			return fmt.Errorf("changelog: marshal changed fields for %q: %w", change.EmployeeKey, err)
		}
		batch.Queue(insertSQL,
			uuid.New(), sessionID, change.EmployeeKey, change.ChangeType,
			fields, change.SourceConfidence, now,
		)
	}

	results := querier.SendBatch(ctx, batch)
	defer results.Close()

	for range changes {
		if _, err := results.Exec(); err != nil {
			return postgres.MapError(err, "employee_change", sessionID)
		}
	}
	return results.Close()
}

// GetBySession returns the session's change trail ordered by employee key.
func (r *Repo) GetBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.EmployeeChange, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, getBySessionSQL, sessionID)
	if err != nil {
		return nil, postgres.MapError(err, "employee_change", sessionID)
	}
	defer rows.Close()

	var changes []domain.EmployeeChange
	for rows.Next() {
		var (
			change    domain.EmployeeChange
			fieldsRaw []byte
		)
		if err := rows.Scan(&change.EmployeeKey, &change.ChangeType, &fieldsRaw, &change.SourceConfidence); err != nil {
			return nil, postgres.MapError(err, "employee_change", sessionID)
		}
		if len(fieldsRaw) > 0 {
			if err := json.Unmarshal(fieldsRaw, &change.ChangedFields); err != nil {
				return nil, fmt.Errorf("changelog: unmarshal changed fields for %q: %w", change.EmployeeKey, err)
			}
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "employee_change", sessionID)
	}
	return changes, nil
}
