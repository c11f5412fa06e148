package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/finchley/expense-recon/internal/adapter/postgres/matchset"
	"github.com/finchley/expense-recon/internal/domain"
	"github.com/finchley/expense-recon/pkg/ctxutil"
)

const defaultPageSize = 50

// matchStore defines the minimal interface needed by MatchesHandler.
type matchStore interface {
	FindMatches(ctx context.Context, f matchset.Filter) ([]domain.LineMatch, int, error)
}

// sessionStore resolves sessions for ownership checks.
type sessionStore interface {
	GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error)
}

// MatchesHandler serves the reconciliation query surface.
type MatchesHandler struct {
	matches  matchStore
	sessions sessionStore
	log      *slog.Logger
}

// NewMatchesHandler creates a MatchesHandler.
func NewMatchesHandler(matches matchStore, sessions sessionStore, logger *slog.Logger) *MatchesHandler {
	return &MatchesHandler{matches: matches, sessions: sessions, log: logger.With("handler", "matches")}
}

type matchesResponse struct {
	Matches []matchResponse `json:"matches"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

type matchResponse struct {
	Receipt    domain.LineItem `json:"receipt"`
	CAR        domain.LineItem `json:"car"`
	Score      float64         `json:"score"`
	Confidence string          `json:"confidence"`
}

// List handles GET /api/v1/sessions/{id}/matches.
// Query parameters: employee (normalized key), min_confidence (low, medium,
// high), limit, offset.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
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

	filter, err := parseMatchFilter(sessionID, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, total, err := h.matches.FindMatches(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := matchesResponse{
		Matches: make([]matchResponse, 0, len(matches)),
		Total:   total,
		Limit:   int(filter.Limit),
		Offset:  int(filter.Offset),
	}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, matchResponse{
			Receipt:    m.Receipt,
			CAR:        m.CAR,
			Score:      m.Score,
			Confidence: m.Confidence.String(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func parseMatchFilter(sessionID uuid.UUID, r *http.Request) (matchset.Filter, error) {
	filter := matchset.Filter{
		SessionID: sessionID,
		Limit:     defaultPageSize,
	}

	q := r.URL.Query()

	if emp := q.Get("employee"); emp != "" {
		key := domain.NormalizeEmployeeKey(emp)
		filter.EmployeeKey = &key
	}

	if raw := q.Get("min_confidence"); raw != "" {
		tier := domain.ConfidenceTier(raw)
		if !tier.IsValid() {
			return filter, errors.New("min_confidence must be one of: low, medium, high")
		}
		filter.MinConfidence = &tier
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || limit == 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	return filter, nil
}

func (h *MatchesHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
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
