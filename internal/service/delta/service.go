// Package delta decides, at the whole-file level, whether a new session's
// input documents can reuse a previously completed session's results.
package delta

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/finchley/expense-recon/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type sessionRepo interface {
	// FindByChecksums returns every finished prior session of the owner
	// whose CAR checksum OR receipt checksum equals one of the supplied
	// values, in a single query. excludeID removes the session being
	// analyzed from its own candidate set.
	FindByChecksums(ctx context.Context, ownerID uuid.UUID, car, receipt string, excludeID *uuid.UUID) ([]domain.Session, error)
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements file-level delta analysis.
type Service struct {
	log      *slog.Logger
	sessions sessionRepo
}

// NewService creates a delta analysis service.
func NewService(log *slog.Logger, sessions sessionRepo) *Service {
	return &Service{log: log, sessions: sessions}
}
