package domain

// MatchType classifies how a new session's file fingerprints relate to
// previously completed sessions.
type MatchType string

const (
	MatchTypeExact    MatchType = "EXACT_MATCH"
	MatchTypePartial  MatchType = "PARTIAL_MATCH"
	MatchTypeNone     MatchType = "NO_MATCH"
	MatchTypeMultiple MatchType = "MULTIPLE_MATCHES"
)

func (m MatchType) String() string { return string(m) }

func (m MatchType) IsValid() bool {
	switch m {
	case MatchTypeExact, MatchTypePartial, MatchTypeNone, MatchTypeMultiple:
		return true
	}
	return false
}

// Recommendation is the processing path suggested by delta analysis.
type Recommendation string

const (
	RecommendSkip   Recommendation = "SKIP_PROCESSING"
	RecommendDelta  Recommendation = "DELTA_PROCESSING"
	RecommendFull   Recommendation = "FULL_PROCESSING"
	RecommendReview Recommendation = "REVIEW_REQUIRED"
)

func (r Recommendation) String() string { return string(r) }

func (r Recommendation) IsValid() bool {
	switch r {
	case RecommendSkip, RecommendDelta, RecommendFull, RecommendReview:
		return true
	}
	return false
}

// SessionStatus represents the lifecycle state of a processing session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "PENDING"
	SessionStatusProcessing SessionStatus = "PROCESSING"
	SessionStatusPaused     SessionStatus = "PAUSED"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusFailed     SessionStatus = "FAILED"
	SessionStatusCancelled  SessionStatus = "CANCELLED"
)

func (s SessionStatus) String() string { return string(s) }

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusPending, SessionStatusProcessing, SessionStatusPaused,
		SessionStatusCompleted, SessionStatusFailed, SessionStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the session can no longer change state.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusFailed, SessionStatusCancelled:
		return true
	}
	return false
}

// ValidationStatus is the outcome of per-employee validation.
type ValidationStatus string

const (
	ValidationStatusValid          ValidationStatus = "VALID"
	ValidationStatusNeedsAttention ValidationStatus = "NEEDS_ATTENTION"
	ValidationStatusInvalid        ValidationStatus = "INVALID"
)

func (v ValidationStatus) String() string { return string(v) }

func (v ValidationStatus) IsValid() bool {
	switch v {
	case ValidationStatusValid, ValidationStatusNeedsAttention, ValidationStatusInvalid:
		return true
	}
	return false
}

// ChangeType classifies an employee relative to the base session.
type ChangeType string

const (
	ChangeTypeNew       ChangeType = "new"
	ChangeTypeModified  ChangeType = "modified"
	ChangeTypeUnchanged ChangeType = "unchanged"
	ChangeTypeRemoved   ChangeType = "removed"
)

func (c ChangeType) String() string { return string(c) }

func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeTypeNew, ChangeTypeModified, ChangeTypeUnchanged, ChangeTypeRemoved:
		return true
	}
	return false
}

// ConfidenceTier buckets a continuous match score for display and filtering.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

func (c ConfidenceTier) String() string { return string(c) }

func (c ConfidenceTier) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Rank orders tiers for minimum-confidence filtering: low < medium < high.
func (c ConfidenceTier) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// AtLeast reports whether c meets or exceeds the given minimum tier.
func (c ConfidenceTier) AtLeast(min ConfidenceTier) bool {
	return c.Rank() >= min.Rank()
}
