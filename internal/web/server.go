package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/tether/internal/config"
	"github.com/hpungsan/tether/internal/pipeline"
	"github.com/hpungsan/tether/internal/store"
)

// shutdownTimeout bounds graceful shutdown, including draining background poster jobs.
const shutdownTimeout = 30 * time.Second

// Deps are the collaborators the HTTP boundary drives.
type Deps struct {
	Store     store.Store
	Pipeline  *pipeline.Lazy
	Selection store.Selection
	Logger    *slog.Logger
}

// NewHandler builds the routed, middleware-wrapped API handler.
func NewHandler(deps Deps, cfg *config.Config) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handlers{
		store:     deps.Store,
		pipeline:  deps.Pipeline,
		selection: deps.Selection,
		maxBody:   cfg.MaxBodyBytes,
		logger:    logger,
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("POST /connections", h.HandleCreate)
	mux.HandleFunc("GET /connections", h.HandleList)
	mux.HandleFunc("GET /connections/{id}", h.HandleGet)
	mux.HandleFunc("PATCH /connections/{id}", h.HandleUpdate)
	mux.HandleFunc("POST /connections/{id}/analyze", h.HandleAnalyze)
	mux.HandleFunc("POST /connections/{id}/poster", h.HandlePoster)
	mux.HandleFunc("POST /connections/{id}/followup", h.HandleFollowUp)
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	return requestID(logRequests(logger, securityHeaders(mux)))
}

// NewServer creates the HTTP server for the Tether API.
func NewServer(deps Deps, cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           NewHandler(deps, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and shuts it down gracefully on SIGINT/SIGTERM or when
// ctx is done. drain, if non-nil, runs after the listener closes so in-flight
// background work can finish.
func Run(ctx context.Context, srv *http.Server, drain func(context.Context) error, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("tether API listening", "addr", "http://"+srv.Addr)
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, ":") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if drain != nil {
		if err := drain(shutdownCtx); err != nil {
			logger.Warn("background jobs still running at shutdown", "error", err)
		}
	}
	return nil
}
