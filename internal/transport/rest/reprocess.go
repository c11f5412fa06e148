package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finchley/expense-recon/internal/domain"
	"github.com/finchley/expense-recon/internal/service/changeset"
	"github.com/finchley/expense-recon/internal/service/reprocess"
	"github.com/finchley/expense-recon/pkg/ctxutil"
)

// reprocessSessionStore extends session lookup with creation: the trigger
// endpoint opens a new delta session against the base it was pointed at.
type reprocessSessionStore interface {
	GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
}

type snapshotStore interface {
	GetBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.EmployeeSnapshot, error)
}

type changeDetector interface {
	Analyze(current, base []domain.EmployeeSnapshot, cfg changeset.Config) changeset.Analysis
}

type batchRunner interface {
	Run(ctx context.Context, batch reprocess.Batch, control *reprocess.Control) (reprocess.Result, error)
}

// ReprocessHandler triggers a delta run against a base session: the caller
// submits the freshly parsed employee data, the handler diffs it against
// the base's snapshots and drives the batch.
type ReprocessHandler struct {
	sessions  reprocessSessionStore
	snapshots snapshotStore
	detector  changeDetector
	runner    batchRunner
	cfg       changeset.Config
	log       *slog.Logger
}

// NewReprocessHandler creates a ReprocessHandler. cfg carries the engine
// tunables from configuration.
func NewReprocessHandler(
	sessions reprocessSessionStore,
	snapshots snapshotStore,
	detector changeDetector,
	runner batchRunner,
	cfg changeset.Config,
	logger *slog.Logger,
) *ReprocessHandler {
	return &ReprocessHandler{
		sessions:  sessions,
		snapshots: snapshots,
		detector:  detector,
		runner:    runner,
		cfg:       cfg,
		log:       logger.With("handler", "reprocess"),
	}
}

type reprocessEmployee struct {
	EmployeeID    string            `json:"employee_id"`
	EmployeeName  string            `json:"employee_name"`
	CARAmount     decimal.Decimal   `json:"car_amount"`
	ReceiptAmount decimal.Decimal   `json:"receipt_amount"`
	ReceiptLines  []domain.LineItem `json:"receipt_lines,omitempty"`
	CARLines      []domain.LineItem `json:"car_lines,omitempty"`
}

type reprocessRequest struct {
	CARChecksum     string              `json:"car_checksum"`
	ReceiptChecksum string              `json:"receipt_checksum"`
	Employees       []reprocessEmployee `json:"employees"`
}

type reprocessResponse struct {
	SessionID        string  `json:"session_id"`
	Processed        int     `json:"processed"`
	Skipped          int     `json:"skipped"`
	Failed           int     `json:"failed"`
	Total            int     `json:"total"`
	ChangedCount     int     `json:"changed_count"`
	UnchangedCount   int     `json:"unchanged_count"`
	NewCount         int     `json:"new_count"`
	RemovedCount     int     `json:"removed_count"`
	ChangePercentage float64 `json:"change_percentage"`
	OptimizationUsed bool    `json:"optimization_used"`
}

// Run handles POST /api/v1/sessions/{id}/reprocess. {id} is the base
// session the submitted data is diffed against.
func (h *ReprocessHandler) Run(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ctxutil.OwnerIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "owner identity required")
		return
	}

	baseID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidChecksum(req.CARChecksum) {
		writeError(w, http.StatusBadRequest, "invalid car_checksum")
		return
	}
	if !domain.ValidChecksum(req.ReceiptChecksum) {
		writeError(w, http.StatusBadRequest, "invalid receipt_checksum")
		return
	}
	if len(req.Employees) == 0 {
		writeError(w, http.StatusBadRequest, "employees required")
		return
	}

	base, err := h.sessions.GetByID(r.Context(), baseID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if base.OwnerID != ownerID {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	baseSnaps, err := h.snapshots.GetBySession(r.Context(), baseID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	current := make([]domain.EmployeeSnapshot, len(req.Employees))
	for i, e := range req.Employees {
		current[i] = domain.EmployeeSnapshot{
			EmployeeID:       e.EmployeeID,
			EmployeeName:     e.EmployeeName,
			CARAmount:        e.CARAmount,
			ReceiptAmount:    e.ReceiptAmount,
			ValidationStatus: domain.ValidationStatusValid,
		}
	}

	analysis := h.detector.Analyze(current, baseSnaps, h.cfg)

	session := &domain.Session{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		CARChecksum:     domain.NormalizeChecksum(req.CARChecksum),
		ReceiptChecksum: domain.NormalizeChecksum(req.ReceiptChecksum),
		Status:          domain.SessionStatusPending,
		TotalEmployees:  len(req.Employees),
		BaseSessionID:   &baseID,
	}
	if err := h.sessions.Create(r.Context(), session); err != nil {
		h.handleError(w, r, err)
		return
	}

	batch := h.buildBatch(session.ID, baseID, req.Employees, analysis)

	res, err := h.runner.Run(r.Context(), batch, reprocess.NewControl())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, reprocessResponse{
		SessionID:        session.ID.String(),
		Processed:        res.Processed,
		Skipped:          res.Skipped,
		Failed:           res.Failed,
		Total:            analysis.Total,
		ChangedCount:     analysis.ChangedCount,
		UnchangedCount:   analysis.UnchangedCount,
		NewCount:         analysis.NewCount,
		RemovedCount:     analysis.RemovedCount,
		ChangePercentage: analysis.ChangePercentage,
		OptimizationUsed: analysis.OptimizationUsed,
	})
}

// buildBatch pairs each change record with the submitted data it refers
// to. Removed employees have no current record; their work entry carries
// the change only.
func (h *ReprocessHandler) buildBatch(
	sessionID, baseID uuid.UUID,
	employees []reprocessEmployee,
	analysis changeset.Analysis,
) reprocess.Batch {
	byKey := make(map[string]reprocessEmployee, len(employees))
	for _, e := range employees {
		byKey[domain.NormalizeEmployeeKey(e.EmployeeID)] = e
	}

	batch := reprocess.Batch{
		SessionID:     sessionID,
		BaseSessionID: &baseID,
		SkipUnchanged: analysis.OptimizationUsed,
		Employees:     make([]reprocess.EmployeeWork, 0, len(analysis.Changes)),
	}
	for _, change := range analysis.Changes {
		work := reprocess.EmployeeWork{Change: change}
		if e, ok := byKey[change.EmployeeKey]; ok {
			work.Snapshot = domain.EmployeeSnapshot{
				ID:               uuid.New(),
				EmployeeID:       e.EmployeeID,
				EmployeeName:     e.EmployeeName,
				CARAmount:        e.CARAmount,
				ReceiptAmount:    e.ReceiptAmount,
				ValidationStatus: domain.ValidationStatusValid,
			}
			work.ReceiptLines = e.ReceiptLines
			work.CARLines = e.CARLines
		}
		batch.Employees = append(batch.Employees, work)
	}
	return batch
}

func (h *ReprocessHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
