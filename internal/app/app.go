package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/finchley/expense-recon/internal/adapter/postgres"
	"github.com/finchley/expense-recon/internal/adapter/postgres/changelog"
	"github.com/finchley/expense-recon/internal/adapter/postgres/matchset"
	sessionrepo "github.com/finchley/expense-recon/internal/adapter/postgres/session"
	"github.com/finchley/expense-recon/internal/adapter/postgres/snapshot"
	"github.com/finchley/expense-recon/internal/config"
	"github.com/finchley/expense-recon/internal/service/changeset"
	"github.com/finchley/expense-recon/internal/service/delta"
	"github.com/finchley/expense-recon/internal/service/linematch"
	"github.com/finchley/expense-recon/internal/service/reprocess"
	"github.com/finchley/expense-recon/internal/transport/middleware"
	"github.com/finchley/expense-recon/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, initializes
// the logger, connects to the database, wires the services and HTTP
// transport, and blocks until the context is cancelled or the server fails.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	sessions := sessionrepo.New(pool)
	snapshots := snapshot.New(pool)
	matchSets := matchset.New(pool)
	changeLog := changelog.New(pool)
	txm := postgres.NewTxManager(pool)

	engineCfg := changesetConfig(cfg.Engine)
	deltaSvc := delta.NewService(logger, sessions)
	detector := changeset.NewDetector(logger)
	reprocessSvc := reprocess.NewService(logger, snapshots, matchSets, sessions, changeLog, txm, linematch.Match)

	healthHandler := rest.NewHealthHandler(pool, BuildVersion())
	deltaHandler := rest.NewDeltaHandler(deltaSvc, logger)
	sessionsHandler := rest.NewSessionsHandler(sessions, logger)
	matchesHandler := rest.NewMatchesHandler(matchSets, sessions, logger)
	changesHandler := rest.NewChangesHandler(changeLog, sessions, logger)
	reprocessHandler := rest.NewReprocessHandler(sessions, snapshots, detector, reprocessSvc, engineCfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", healthHandler.Live)
	mux.HandleFunc("GET /health/ready", healthHandler.Ready)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("POST /api/v1/delta/analyze", deltaHandler.Analyze)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sessionsHandler.Get)
	mux.HandleFunc("GET /api/v1/sessions/{id}/matches", matchesHandler.List)
	mux.HandleFunc("GET /api/v1/sessions/{id}/changes", changesHandler.List)
	mux.HandleFunc("POST /api/v1/sessions/{id}/reprocess", reprocessHandler.Run)

	mws := []middleware.Middleware{
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.CORS(cfg.CORS),
		middleware.OwnerID,
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter := middleware.NewRateLimiter(time.Minute)
		defer limiter.Stop()
		mws = append(mws, limiter.Limit(cfg.Server.RateLimitPerMinute))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      middleware.Chain(mws...)(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.Info("http server listening", slog.String("addr", srv.Addr))

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
