package domain

import (
	"time"

	"github.com/google/uuid"
)

// FileComparison describes, per input file, whether the checksum matched
// the base session candidate.
type FileComparison struct {
	CARMatched     bool     `json:"car_matched"`
	ReceiptMatched bool     `json:"receipt_matched"`
	ChangedFiles   []string `json:"changed_files,omitempty"`
}

// DeltaAnalysis is the file-level reuse decision for a new session.
// It is a pure computation result, produced fresh per request and never
// persisted by the engine.
type DeltaAnalysis struct {
	MatchType      MatchType
	Recommendation Recommendation
	// Confidence is in [0,1].
	Confidence    float64
	BaseSessionID *uuid.UUID
	// AlternativeSessionIDs lists other plausible base sessions,
	// most recent first.
	AlternativeSessionIDs []uuid.UUID
	FileComparison        FileComparison
	// ProcessingTimeEstimate is a coarse wall-clock estimate for the
	// recommended path.
	ProcessingTimeEstimate time.Duration
	// EmployeeChangeEstimate is the expected number of employees needing
	// reprocessing. Nil when no base session was identified.
	EmployeeChangeEstimate *int
	AnalyzedAt             time.Time
}
