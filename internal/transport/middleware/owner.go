package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/finchley/expense-recon/pkg/ctxutil"
)

// OwnerID returns middleware that extracts the owner identity from the
// X-Owner-Id header and stores it in the request context. The engine runs
// behind a gateway that authenticates the caller; the header carries the
// resolved organization scope. Requests without a parseable owner pass
// through anonymously and per-route handlers reject them.
func OwnerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Owner-Id")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid X-Owner-Id", http.StatusBadRequest)
			return
		}
		ctx := ctxutil.WithOwnerID(r.Context(), ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
