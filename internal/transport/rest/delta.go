package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/finchley/expense-recon/internal/domain"
	"github.com/finchley/expense-recon/pkg/ctxutil"
)

// deltaService defines the minimal interface needed by DeltaHandler.
type deltaService interface {
	Detect(ctx context.Context, car, receipt string, ownerID uuid.UUID, excludeID *uuid.UUID) (*domain.DeltaAnalysis, error)
}

// DeltaHandler serves the delta analysis endpoint.
type DeltaHandler struct {
	svc deltaService
	log *slog.Logger
}

// NewDeltaHandler creates a DeltaHandler.
func NewDeltaHandler(svc deltaService, logger *slog.Logger) *DeltaHandler {
	return &DeltaHandler{svc: svc, log: logger.With("handler", "delta")}
}

type analyzeRequest struct {
	CARChecksum      string `json:"car_checksum"`
	ReceiptChecksum  string `json:"receipt_checksum"`
	ExcludeSessionID string `json:"exclude_session_id,omitempty"`
}

type analyzeResponse struct {
	MatchType              string   `json:"match_type"`
	Recommendation         string   `json:"recommendation"`
	Confidence             float64  `json:"confidence"`
	BaseSessionID          *string  `json:"base_session_id,omitempty"`
	AlternativeSessionIDs  []string `json:"alternative_session_ids,omitempty"`
	FileComparison         domain.FileComparison `json:"file_comparison"`
	ProcessingTimeSeconds  int      `json:"processing_time_estimate_seconds"`
	EmployeeChangeEstimate *int     `json:"employee_change_estimate,omitempty"`
	AnalyzedAt             time.Time `json:"analyzed_at"`
}

// Analyze handles POST /api/v1/delta/analyze.
func (h *DeltaHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ctxutil.OwnerIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "owner identity required")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var excludeID *uuid.UUID
	if req.ExcludeSessionID != "" {
		id, err := uuid.Parse(req.ExcludeSessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid exclude_session_id")
			return
		}
		excludeID = &id
	}

	analysis, err := h.svc.Detect(r.Context(), req.CARChecksum, req.ReceiptChecksum, ownerID, excludeID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAnalyzeResponse(analysis))
}

func (h *DeltaHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toAnalyzeResponse(a *domain.DeltaAnalysis) analyzeResponse {
	resp := analyzeResponse{
		MatchType:              a.MatchType.String(),
		Recommendation:         a.Recommendation.String(),
		Confidence:             a.Confidence,
		FileComparison:         a.FileComparison,
		ProcessingTimeSeconds:  int(a.ProcessingTimeEstimate / time.Second),
		EmployeeChangeEstimate: a.EmployeeChangeEstimate,
		AnalyzedAt:             a.AnalyzedAt,
	}
	if a.BaseSessionID != nil {
		s := a.BaseSessionID.String()
		resp.BaseSessionID = &s
	}
	for _, id := range a.AlternativeSessionIDs {
		resp.AlternativeSessionIDs = append(resp.AlternativeSessionIDs, id.String())
	}
	return resp
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
