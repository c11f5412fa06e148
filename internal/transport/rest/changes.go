package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/finchley/expense-recon/internal/domain"
	"github.com/finchley/expense-recon/pkg/ctxutil"
)

// changeStore reads a session's change detection trail.
type changeStore interface {
	GetBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.EmployeeChange, error)
}

// ChangesHandler serves the per-session change audit trail.
type ChangesHandler struct {
	changes  changeStore
	sessions sessionStore
	log      *slog.Logger
}

// NewChangesHandler creates a ChangesHandler.
func NewChangesHandler(changes changeStore, sessions sessionStore, logger *slog.Logger) *ChangesHandler {
	return &ChangesHandler{changes: changes, sessions: sessions, log: logger.With("handler", "changes")}
}

type changesResponse struct {
	Changes []changeResponse `json:"changes"`
	Total   int              `json:"total"`
}

type changeResponse struct {
	EmployeeKey      string                        `json:"employee_key"`
	ChangeType       string                        `json:"change_type"`
	ChangedFields    map[string]domain.FieldChange `json:"changed_fields,omitempty"`
	SourceConfidence float64                       `json:"source_confidence"`
}

// List handles GET /api/v1/sessions/{id}/changes.
func (h *ChangesHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ctxutil.OwnerIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "owner identity required")
		return
	}

	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := h.sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	// Sessions of other owners are indistinguishable from missing ones.
	if session.OwnerID != ownerID {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	changes, err := h.changes.GetBySession(r.Context(), sessionID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := changesResponse{
		Changes: make([]changeResponse, 0, len(changes)),
		Total:   len(changes),
	}
	for _, c := range changes {
		resp.Changes = append(resp.Changes, changeResponse{
			EmployeeKey:      c.EmployeeKey,
			ChangeType:       c.ChangeType.String(),
			ChangedFields:    c.ChangedFields,
			SourceConfidence: c.SourceConfidence,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ChangesHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		h.log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
