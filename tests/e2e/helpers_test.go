//go:build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/finchley/expense-recon/internal/adapter/postgres"
	"github.com/finchley/expense-recon/internal/adapter/postgres/changelog"
	"github.com/finchley/expense-recon/internal/adapter/postgres/matchset"
	sessionrepo "github.com/finchley/expense-recon/internal/adapter/postgres/session"
	"github.com/finchley/expense-recon/internal/adapter/postgres/snapshot"
	"github.com/finchley/expense-recon/internal/adapter/postgres/testhelper"
	"github.com/finchley/expense-recon/internal/service/changeset"
	"github.com/finchley/expense-recon/internal/service/delta"
	"github.com/finchley/expense-recon/internal/service/linematch"
	"github.com/finchley/expense-recon/internal/service/reprocess"
	"github.com/finchley/expense-recon/internal/transport/middleware"
	"github.com/finchley/expense-recon/internal/transport/rest"
)

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

func newTestLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testLogWriter{t}, nil))
}

// testServer is a fully wired HTTP server backed by a real database, plus
// direct handles on the repositories and services for seeding and for
// driving batch runs that have no HTTP trigger.
type testServer struct {
	URL    string
	Client *http.Client
	Pool   *pgxpool.Pool

	Sessions  *sessionrepo.Repo
	Snapshots *snapshot.Repo
	MatchSets *matchset.Repo
	ChangeLog *changelog.Repo

	Reprocess *reprocess.Service
}

// setupTestServer wires the real stack the way app.Run does, on top of the
// shared testcontainers database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	pool := testhelper.SetupTestDB(t)

	logger := newTestLogger(t)

	sessions := sessionrepo.New(pool)
	snapshots := snapshot.New(pool)
	matchSets := matchset.New(pool)
	changeLog := changelog.New(pool)

	txm := postgres.NewTxManager(pool)

	deltaSvc := delta.NewService(logger, sessions)
	detector := changeset.NewDetector(logger)
	reprocessSvc := reprocess.NewService(logger, snapshots, matchSets, sessions, changeLog, txm, linematch.Match)

	healthHandler := rest.NewHealthHandler(pool, "e2e-test")
	deltaHandler := rest.NewDeltaHandler(deltaSvc, logger)
	sessionsHandler := rest.NewSessionsHandler(sessions, logger)
	matchesHandler := rest.NewMatchesHandler(matchSets, sessions, logger)
	changesHandler := rest.NewChangesHandler(changeLog, sessions, logger)
	reprocessHandler := rest.NewReprocessHandler(sessions, snapshots, detector, reprocessSvc, changeset.DefaultConfig(), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", healthHandler.Live)
	mux.HandleFunc("GET /health/ready", healthHandler.Ready)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("POST /api/v1/delta/analyze", deltaHandler.Analyze)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sessionsHandler.Get)
	mux.HandleFunc("GET /api/v1/sessions/{id}/matches", matchesHandler.List)
	mux.HandleFunc("GET /api/v1/sessions/{id}/changes", changesHandler.List)
	mux.HandleFunc("POST /api/v1/sessions/{id}/reprocess", reprocessHandler.Run)

	handler := middleware.Chain(
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.OwnerID,
	)(mux)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:       srv.URL,
		Client:    srv.Client(),
		Pool:      pool,
		Sessions:  sessions,
		Snapshots: snapshots,
		MatchSets: matchSets,
		ChangeLog: changeLog,
		Reprocess: reprocessSvc,
	}
}

// doJSON issues a request with an optional X-Owner-Id header and decodes
// the JSON response body into a generic map.
func (ts *testServer) doJSON(t *testing.T, method, path string, ownerID uuid.UUID, payload any) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ownerID != uuid.Nil {
		req.Header.Set("X-Owner-Id", ownerID.String())
	}

	resp, err := ts.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result map[string]any
	if resp.ContentLength != 0 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	}
	return resp.StatusCode, result
}
