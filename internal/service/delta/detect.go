package delta

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/finchley/expense-recon/internal/domain"
)

// Processing time estimates by path.
const (
	skipEstimate       = 30 * time.Second
	deltaSmallEstimate = 60 * time.Second
	deltaLargeEstimate = 180 * time.Second
	fullEstimate       = 300 * time.Second

	// deltaLargeCutoff is the employee count above which the delta path
	// gets the large estimate.
	deltaLargeCutoff = 50

	// partialChangeRate is the expected fraction of employees needing
	// reprocessing when only one input file changed.
	partialChangeRate = 0.3

	// skipConfidenceCutoff is the confidence above which an exact match
	// skips processing entirely.
	skipConfidenceCutoff = 0.9
)

// Detect compares the new session's file fingerprints against every
// finished prior session of the owner and recommends a processing path.
// The result is computed fresh per call and never persisted.
//
// Candidate sessions are fetched in one query and partitioned in memory;
// the partition is exhaustive and disjoint: both checksums matched, exactly
// one matched, or the candidate set is empty.
func (s *Service) Detect(ctx context.Context, car, receipt string, ownerID uuid.UUID, excludeID *uuid.UUID) (*domain.DeltaAnalysis, error) {
	fp := domain.Fingerprint{CARChecksum: car, ReceiptChecksum: receipt}.Normalize()

	if !domain.ValidChecksum(fp.CARChecksum) {
		return nil, domain.NewValidationError("car_checksum", "must be a 64-character hex SHA-256 digest")
	}
	if !domain.ValidChecksum(fp.ReceiptChecksum) {
		return nil, domain.NewValidationError("receipt_checksum", "must be a 64-character hex SHA-256 digest")
	}
	if ownerID == uuid.Nil {
		return nil, domain.NewValidationError("owner_id", "required")
	}

	candidates, err := s.sessions.FindByChecksums(ctx, ownerID, fp.CARChecksum, fp.ReceiptChecksum, excludeID)
	if err != nil {
		return nil, fmt.Errorf("delta: find candidate sessions: %w", err)
	}

	now := time.Now()
	var exact, partial []domain.Session
	for _, c := range candidates {
		carMatch := c.CARChecksum == fp.CARChecksum
		receiptMatch := c.ReceiptChecksum == fp.ReceiptChecksum
		switch {
		case carMatch && receiptMatch:
			exact = append(exact, c)
		case carMatch || receiptMatch:
			partial = append(partial, c)
		}
	}

	var analysis *domain.DeltaAnalysis
	switch {
	case len(exact) == 1:
		analysis = s.exactSingle(exact[0], now)
	case len(exact) > 1:
		analysis = s.exactMultiple(exact, now)
	case len(partial) > 0:
		analysis = s.partialBest(partial, fp, now)
	default:
		analysis = noMatch(now)
	}

	s.log.Info("delta analysis completed",
		slog.String("owner_id", ownerID.String()),
		slog.String("match_type", analysis.MatchType.String()),
		slog.String("recommendation", analysis.Recommendation.String()),
		slog.Float64("confidence", analysis.Confidence),
	)
	return analysis, nil
}

// exactSingle handles the common case: exactly one prior session with both
// checksums identical. Confidence blends how recent the session is, how
// successfully it processed, and whether it actually completed.
func (s *Service) exactSingle(base domain.Session, now time.Time) *domain.DeltaAnalysis {
	confidence := recencyBonus(base.Age(now)) + base.SuccessRatio()*0.3
	if base.Status == domain.SessionStatusCompleted {
		confidence += 0.2
	}
	confidence = clamp01(confidence)

	recommendation := domain.RecommendDelta
	estimate := deltaEstimate(base.TotalEmployees)
	if confidence > skipConfidenceCutoff && base.TotalEmployees > 0 {
		recommendation = domain.RecommendSkip
		estimate = skipEstimate
	}

	changeEstimate := 0
	baseID := base.ID
	return &domain.DeltaAnalysis{
		MatchType:              domain.MatchTypeExact,
		Recommendation:         recommendation,
		Confidence:             confidence,
		BaseSessionID:          &baseID,
		FileComparison:         domain.FileComparison{CARMatched: true, ReceiptMatched: true},
		ProcessingTimeEstimate: estimate,
		EmployeeChangeEstimate: &changeEstimate,
		AnalyzedAt:             now,
	}
}

// exactMultiple means several prior sessions carry identical inputs; the
// engine cannot decide alone which results to reuse.
func (s *Service) exactMultiple(exact []domain.Session, now time.Time) *domain.DeltaAnalysis {
	sort.SliceStable(exact, func(i, j int) bool {
		return exact[i].CreatedAt.After(exact[j].CreatedAt)
	})

	baseID := exact[0].ID
	alternatives := make([]uuid.UUID, 0, len(exact)-1)
	for _, sess := range exact[1:] {
		alternatives = append(alternatives, sess.ID)
	}

	return &domain.DeltaAnalysis{
		MatchType:              domain.MatchTypeMultiple,
		Recommendation:         domain.RecommendReview,
		Confidence:             0.7,
		BaseSessionID:          &baseID,
		AlternativeSessionIDs:  alternatives,
		FileComparison:         domain.FileComparison{CARMatched: true, ReceiptMatched: true},
		ProcessingTimeEstimate: deltaEstimate(exact[0].TotalEmployees),
		AnalyzedAt:             now,
	}
}

// partialBest scores every session matching exactly one checksum and picks
// the best as the delta base.
func (s *Service) partialBest(partial []domain.Session, fp domain.Fingerprint, now time.Time) *domain.DeltaAnalysis {
	best := 0
	bestScore := -1.0
	for i, sess := range partial {
		// One of two files matched: partial fraction is fixed at 0.5.
		score := 0.5*0.5 + recencyBonus(sess.Age(now))
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	base := partial[best]

	carMatched := base.CARChecksum == fp.CARChecksum
	comparison := domain.FileComparison{
		CARMatched:     carMatched,
		ReceiptMatched: !carMatched,
	}
	if carMatched {
		comparison.ChangedFiles = []string{"receipt"}
	} else {
		comparison.ChangedFiles = []string{"car"}
	}

	changeEstimate := int(math.Round(partialChangeRate * float64(base.TotalEmployees)))
	baseID := base.ID
	return &domain.DeltaAnalysis{
		MatchType:              domain.MatchTypePartial,
		Recommendation:         domain.RecommendDelta,
		Confidence:             clamp01(bestScore),
		BaseSessionID:          &baseID,
		FileComparison:         comparison,
		ProcessingTimeEstimate: deltaEstimate(base.TotalEmployees),
		EmployeeChangeEstimate: &changeEstimate,
		AnalyzedAt:             now,
	}
}

func noMatch(now time.Time) *domain.DeltaAnalysis {
	return &domain.DeltaAnalysis{
		MatchType:              domain.MatchTypeNone,
		Recommendation:         domain.RecommendFull,
		Confidence:             1.0,
		FileComparison:         domain.FileComparison{ChangedFiles: []string{"car", "receipt"}},
		ProcessingTimeEstimate: fullEstimate,
		AnalyzedAt:             now,
	}
}

// recencyBonus is a step function of session age, non-increasing across
// the five bands.
func recencyBonus(age time.Duration) float64 {
	switch {
	case age < time.Hour:
		return 0.5
	case age < 24*time.Hour:
		return 0.4
	case age < 168*time.Hour: // one week
		return 0.3
	case age < 720*time.Hour: // one month
		return 0.2
	default:
		return 0.1
	}
}

func deltaEstimate(totalEmployees int) time.Duration {
	if totalEmployees < deltaLargeCutoff {
		return deltaSmallEstimate
	}
	return deltaLargeEstimate
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
