package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopspring/decimal"
)

// EmployeeSnapshot is the normalized per-employee record extracted from one
// session's document pair. Base-session snapshots are read-only inputs to
// change detection.
type EmployeeSnapshot struct {
	ID               uuid.UUID
	SessionID        uuid.UUID
	EmployeeID       string
	EmployeeName     string
	CARAmount        decimal.Decimal
	ReceiptAmount    decimal.Decimal
	ValidationStatus ValidationStatus
	CreatedAt        time.Time
}

// FieldChange records one field's old and new values on a modified employee.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// EmployeeChange classifies one employee relative to the base session.
// Exactly one exists per employee in the union of the base and current
// sets. Records are created fresh per reprocessing attempt and never
// mutated afterwards.
type EmployeeChange struct {
	EmployeeKey string
	ChangeType  ChangeType
	// ChangedFields maps field name to its old/new pair. Empty unless
	// ChangeType is modified.
	ChangedFields map[string]FieldChange
	// SourceConfidence reflects how certain the base/current pairing is:
	// 1.0 for an identifier match, lower when the name disambiguator
	// decided.
	SourceConfidence float64
}
