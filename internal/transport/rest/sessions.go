package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/finchley/expense-recon/internal/domain"
	"github.com/finchley/expense-recon/pkg/ctxutil"
)

// SessionsHandler serves session status lookups.
type SessionsHandler struct {
	sessions sessionStore
	log      *slog.Logger
}

// NewSessionsHandler creates a SessionsHandler.
func NewSessionsHandler(sessions sessionStore, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, log: logger.With("handler", "sessions")}
}

type sessionResponse struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	CARChecksum        string     `json:"car_checksum"`
	ReceiptChecksum    string     `json:"receipt_checksum"`
	TotalEmployees     int        `json:"total_employees"`
	ProcessedEmployees int        `json:"processed_employees"`
	SkippedEmployees   int        `json:"skipped_employees"`
	FailedEmployees    int        `json:"failed_employees"`
	BaseSessionID      *string    `json:"base_session_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Get handles GET /api/v1/sessions/{id}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	if session.OwnerID != ownerID {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *SessionsHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		h.log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toSessionResponse(s *domain.Session) sessionResponse {
	resp := sessionResponse{
		ID:                 s.ID.String(),
		Status:             s.Status.String(),
		CARChecksum:        s.CARChecksum,
		ReceiptChecksum:    s.ReceiptChecksum,
		TotalEmployees:     s.TotalEmployees,
		ProcessedEmployees: s.ProcessedEmployees,
		SkippedEmployees:   s.SkippedEmployees,
		FailedEmployees:    s.FailedEmployees,
		CreatedAt:          s.CreatedAt,
		CompletedAt:        s.CompletedAt,
	}
	if s.BaseSessionID != nil {
		id := s.BaseSessionID.String()
		resp.BaseSessionID = &id
	}
	return resp
}
