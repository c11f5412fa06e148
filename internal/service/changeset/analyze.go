// Package changeset classifies every employee of a new processing session
// against the snapshots stored by a prior base session: new, modified,
// unchanged, or removed. The classification drives which employees the
// orchestration reprocesses and which it copies forward.
package changeset

import (
	"fmt"
	"log/slog"

	"github.com/finchley/expense-recon/internal/domain"
)

// Field names reported in EmployeeChange.ChangedFields.
const (
	fieldEmployeeName     = "employee_name"
	fieldCARAmount        = "car_amount"
	fieldReceiptAmount    = "receipt_amount"
	fieldValidationStatus = "validation_status"
)

// Analysis is the whole-session change classification.
type Analysis struct {
	// Changes holds exactly one record per employee in the union of the
	// base and current sets, current-set order first, removed employees
	// last.
	Changes []domain.EmployeeChange

	Total          int
	ChangedCount   int
	UnchangedCount int
	NewCount       int
	RemovedCount   int
	// FailedCount is the number of employees excluded from the
	// aggregates because their comparison failed. A single bad record
	// never aborts the batch.
	FailedCount int

	// ChangePercentage is ChangedCount/Total*100, 0 when Total is 0.
	ChangePercentage float64

	// OptimizationUsed reports whether the copy-forward path is worth
	// taking for this batch.
	OptimizationUsed bool
}

// Detector computes change analyses. It is stateless apart from its
// logger; Analyze performs no I/O and is safe for concurrent use.
type Detector struct {
	log *slog.Logger
}

// NewDetector creates a Detector.
func NewDetector(log *slog.Logger) *Detector {
	return &Detector{log: log}
}

// Analyze diffs the current parse against the base session's snapshots.
// Base snapshots are read-only inputs; the returned records are created
// fresh and never mutated afterwards.
func (d *Detector) Analyze(current, base []domain.EmployeeSnapshot, cfg Config) Analysis {
	baseIndex := indexByKey(base)
	consumed := make(map[*domain.EmployeeSnapshot]bool, len(base))

	a := Analysis{Changes: make([]domain.EmployeeChange, 0, len(current)+len(base))}

	for i := range current {
		cur := &current[i]
		change, err := d.classify(cur, baseIndex, consumed, cfg)
		if err != nil {
			a.FailedCount++
			d.log.Error("employee comparison failed",
				slog.String("employee_id", cur.EmployeeID),
				slog.Any("error", err),
			)
			continue
		}
		a.Changes = append(a.Changes, change)
	}

	// Base employees never paired with a current record were removed
	// from the inputs. Recorded for audit; not reprocessed.
	for i := range base {
		b := &base[i]
		if consumed[b] {
			continue
		}
		a.Changes = append(a.Changes, domain.EmployeeChange{
			EmployeeKey:      domain.NormalizeEmployeeKey(b.EmployeeID),
			ChangeType:       domain.ChangeTypeRemoved,
			SourceConfidence: 1.0,
		})
	}

	for _, c := range a.Changes {
		switch c.ChangeType {
		case domain.ChangeTypeUnchanged:
			a.UnchangedCount++
		case domain.ChangeTypeModified:
			a.ChangedCount++
		case domain.ChangeTypeNew:
			a.NewCount++
			a.ChangedCount++
		case domain.ChangeTypeRemoved:
			a.RemovedCount++
		}
	}

	a.Total = len(a.Changes)
	if a.Total > 0 {
		a.ChangePercentage = float64(a.ChangedCount) / float64(a.Total) * 100
	}
	a.OptimizationUsed = cfg.SkipUnchanged &&
		a.Total > 0 &&
		float64(a.UnchangedCount)/float64(a.Total) >= cfg.MinSkipRatio

	return a
}

// classify pairs one current employee with its base counterpart and diffs
// the tracked fields. Panics inside the comparison are converted to errors
// so a single malformed record cannot take down the batch.
func (d *Detector) classify(
	cur *domain.EmployeeSnapshot,
	baseIndex map[string][]*domain.EmployeeSnapshot,
	consumed map[*domain.EmployeeSnapshot]bool,
	cfg Config,
) (change domain.EmployeeChange, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compare employee %q: %v", cur.EmployeeID, r)
		}
	}()

	key := domain.NormalizeEmployeeKey(cur.EmployeeID)
	matched, confidence := pickCounterpart(cur, baseIndex[key], consumed)
	if matched == nil {
		return domain.EmployeeChange{
			EmployeeKey:      key,
			ChangeType:       domain.ChangeTypeNew,
			SourceConfidence: 1.0,
		}, nil
	}
	consumed[matched] = true

	changed := map[string]domain.FieldChange{}

	if domain.NormalizeText(cur.EmployeeName) != domain.NormalizeText(matched.EmployeeName) {
		changed[fieldEmployeeName] = domain.FieldChange{Old: matched.EmployeeName, New: cur.EmployeeName}
	}
	if cur.CARAmount.Sub(matched.CARAmount).Abs().GreaterThan(cfg.AmountThreshold) {
		changed[fieldCARAmount] = domain.FieldChange{
			Old: matched.CARAmount.StringFixed(2),
			New: cur.CARAmount.StringFixed(2),
		}
	}
	if cur.ReceiptAmount.Sub(matched.ReceiptAmount).Abs().GreaterThan(cfg.AmountThreshold) {
		changed[fieldReceiptAmount] = domain.FieldChange{
			Old: matched.ReceiptAmount.StringFixed(2),
			New: cur.ReceiptAmount.StringFixed(2),
		}
	}

	// Previously flagged employees are reprocessed even without data
	// changes, so a stuck NEEDS_ATTENTION never survives a delta run.
	if len(changed) == 0 &&
		cfg.ForceReprocessValidationIssues &&
		matched.ValidationStatus == domain.ValidationStatusNeedsAttention {
		changed[fieldValidationStatus] = domain.FieldChange{
			Old: matched.ValidationStatus.String(),
			New: "REVALIDATE",
		}
	}

	change = domain.EmployeeChange{
		EmployeeKey:      key,
		ChangeType:       domain.ChangeTypeUnchanged,
		SourceConfidence: confidence,
	}
	if len(changed) > 0 {
		change.ChangeType = domain.ChangeTypeModified
		change.ChangedFields = changed
	}
	return change, nil
}

// pickCounterpart selects the base snapshot a current employee corresponds
// to. Identifier equality is the primary signal; when several base records
// share the same normalized key, the closest name wins.
func pickCounterpart(
	cur *domain.EmployeeSnapshot,
	candidates []*domain.EmployeeSnapshot,
	consumed map[*domain.EmployeeSnapshot]bool,
) (*domain.EmployeeSnapshot, float64) {
	var best *domain.EmployeeSnapshot
	bestSim := -1.0

	for _, cand := range candidates {
		if consumed[cand] {
			continue
		}
		sim := similarity(cur.EmployeeName, cand.EmployeeName)
		if sim > bestSim {
			best = cand
			bestSim = sim
		}
	}

	if best == nil {
		return nil, 0
	}
	if len(candidates) == 1 || bestSim == 1.0 {
		return best, 1.0
	}
	// Name had to disambiguate between colliding identifiers.
	return best, 0.5 + 0.5*bestSim
}
