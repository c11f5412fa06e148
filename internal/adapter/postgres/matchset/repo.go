// Package matchset implements the line match artifact repository using
// PostgreSQL. The canonical match set is stored as jsonb; individual matches
// are flattened into a side table so the query surface can paginate and
// filter in SQL. The filtered listing is built with squirrel since the
// predicate combination varies per request.
package matchset

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/finchley/expense-recon/internal/adapter/postgres"
	"github.com/finchley/expense-recon/internal/domain"
)

// Filter narrows the flattened match listing. Zero-value fields are ignored
// except SessionID, which is required.
type Filter struct {
	SessionID     uuid.UUID
	EmployeeKey   *string
	MinConfidence *domain.ConfidenceTier
	Limit         uint64
	Offset        uint64
}

// Repo provides match set persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new match set repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ---------------------------------------------------------------------------
// SQL constants for the fixed-shape statements
// ---------------------------------------------------------------------------

const upsertSetSQL = `
INSERT INTO line_match_sets (
    id, session_id, employee_key, matches, unmatched_receipts, unmatched_car
) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (session_id, employee_key) DO UPDATE
SET matches            = EXCLUDED.matches,
    unmatched_receipts = EXCLUDED.unmatched_receipts,
    unmatched_car      = EXCLUDED.unmatched_car,
    created_at         = now()`

const deleteMatchesSQL = `
DELETE FROM line_matches
WHERE session_id = $1 AND employee_key = $2`

const insertMatchSQL = `
INSERT INTO line_matches (
    id, session_id, employee_key, receipt_line, car_line, score, confidence, position
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const getSetSQL = `
SELECT matches, unmatched_receipts, unmatched_car
FROM line_match_sets
WHERE session_id = $1 AND employee_key = $2`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Save stores the match set artifact for one employee and rebuilds its
// flattened rows. Reprocessing the same employee replaces the previous
// artifact. The two tables are written in one batch; callers that need
// atomicity run Save inside a TxManager transaction.
func (r *Repo) Save(ctx context.Context, sessionID uuid.UUID, employeeKey string, set domain.MatchSet) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	matchesJSON, err := json.Marshal(set.Matches)
	if err != nil {
		return fmt.Errorf("marshal matches: %w", err)
	}
	receiptsJSON, err := json.Marshal(set.UnmatchedReceipts)
	if err != nil {
		return fmt.Errorf("marshal unmatched receipts: %w", err)
	}
	carJSON, err := json.Marshal(set.UnmatchedCAR)
	if err != nil {
		return fmt.Errorf("marshal unmatched car lines: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(upsertSetSQL, uuid.New(), sessionID, employeeKey, matchesJSON, receiptsJSON, carJSON)
	batch.Queue(deleteMatchesSQL, sessionID, employeeKey)

	for i, m := range set.Matches {
		receiptJSON, err := json.Marshal(m.Receipt)
		if err != nil {
			return fmt.Errorf("marshal receipt line: %w", err)
		}
		carLineJSON, err := json.Marshal(m.CAR)
		if err != nil {
			return fmt.Errorf("marshal car line: %w", err)
		}
		batch.Queue(insertMatchSQL,
			uuid.New(), sessionID, employeeKey,
			receiptJSON, carLineJSON, m.Score, m.Confidence, i,
		)
	}

	results := querier.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return postgres.MapError(err, "line_match_set", sessionID)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// Get returns the stored match set for one employee.
func (r *Repo) Get(ctx context.Context, sessionID uuid.UUID, employeeKey string) (*domain.MatchSet, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	var matchesJSON, receiptsJSON, carJSON []byte
	err := querier.QueryRow(ctx, getSetSQL, sessionID, employeeKey).
		Scan(&matchesJSON, &receiptsJSON, &carJSON)
	if err != nil {
		return nil, postgres.MapError(err, "line_match_set", sessionID)
	}

	var set domain.MatchSet
	if err := json.Unmarshal(matchesJSON, &set.Matches); err != nil {
		return nil, fmt.Errorf("unmarshal matches: %w", err)
	}
	if err := json.Unmarshal(receiptsJSON, &set.UnmatchedReceipts); err != nil {
		return nil, fmt.Errorf("unmarshal unmatched receipts: %w", err)
	}
	if err := json.Unmarshal(carJSON, &set.UnmatchedCAR); err != nil {
		return nil, fmt.Errorf("unmarshal unmatched car lines: %w", err)
	}

	return &set, nil
}

// FindMatches returns the flattened matches selected by the filter in stable
// employee/position order, plus the total count before pagination.
func (r *Repo) FindMatches(ctx context.Context, f Filter) ([]domain.LineMatch, int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	where := sq.And{sq.Eq{"session_id": f.SessionID}}
	if f.EmployeeKey != nil {
		where = append(where, sq.Eq{"employee_key": *f.EmployeeKey})
	}
	if f.MinConfidence != nil {
		where = append(where, sq.Eq{"confidence": tiersAtLeast(*f.MinConfidence)})
	}

	countSQL, countArgs, err := psql.
		Select("count(*)").
		From("line_matches").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count matches: %w", err)
	}

	listQ := psql.
		Select("receipt_line", "car_line", "score", "confidence").
		From("line_matches").
		Where(where).
		OrderBy("employee_key", "position")
	if f.Limit > 0 {
		listQ = listQ.Limit(f.Limit)
	}
	if f.Offset > 0 {
		listQ = listQ.Offset(f.Offset)
	}

	listSQL, listArgs, err := listQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	rows, err := querier.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	matches := []domain.LineMatch{}
	for rows.Next() {
		var (
			m           domain.LineMatch
			receiptJSON []byte
			carJSON     []byte
		)
		if err := rows.Scan(&receiptJSON, &carJSON, &m.Score, &m.Confidence); err != nil {
			return nil, 0, fmt.Errorf("scan match: %w", err)
		}
		if err := json.Unmarshal(receiptJSON, &m.Receipt); err != nil {
			return nil, 0, fmt.Errorf("unmarshal receipt line: %w", err)
		}
		if err := json.Unmarshal(carJSON, &m.CAR); err != nil {
			return nil, 0, fmt.Errorf("unmarshal car line: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list matches: %w", err)
	}

	return matches, total, nil
}

// tiersAtLeast expands a minimum tier into the set of tiers accepted by an
// IN predicate.
func tiersAtLeast(min domain.ConfidenceTier) []string {
	all := []domain.ConfidenceTier{domain.ConfidenceLow, domain.ConfidenceMedium, domain.ConfidenceHigh}
	tiers := make([]string, 0, len(all))
	for _, t := range all {
		if t.AtLeast(min) {
			tiers = append(tiers, t.String())
		}
	}
	return tiers
}
