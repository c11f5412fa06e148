package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is one processing run over a CAR/receipt document pair.
type Session struct {
	ID                 uuid.UUID
	OwnerID            uuid.UUID
	CARChecksum        string
	ReceiptChecksum    string
	Status             SessionStatus
	TotalEmployees     int
	ProcessedEmployees int
	SkippedEmployees   int
	FailedEmployees    int
	// BaseSessionID links a delta session to the prior session it was
	// compared against. Nil for full runs.
	BaseSessionID *uuid.UUID
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// SuccessRatio is the fraction of employees that were processed without
// failure. Zero when the session has no employees.
func (s Session) SuccessRatio() float64 {
	if s.TotalEmployees <= 0 {
		return 0
	}
	return float64(s.ProcessedEmployees) / float64(s.TotalEmployees)
}

// Age returns how long ago the session was created.
func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
