package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/campaign-optimizer/internal/config"
)

// Server wraps the chi mux and the http.Server lifecycle around it.
type Server struct {
	config    config.ServerConfig
	handler   http.Handler
	handlers  *Handlers
	server    *http.Server
	router    *chi.Mux
	apiRouter chi.Router // sub-router for /api
	db        *sql.DB
}

// NewOptimizationServer wires the campaign-optimization controller: the
// decision engine, executor, verifier and monitor backed by db, mounted
// under /api/optimization alongside the health checker (which reads
// pending-execution depth from db as its worker-liveness proxy).
func NewOptimizationServer(cfg config.ServerConfig, db *sql.DB, appCfg *config.Config) *Server {
	handlers := NewHandlers()
	handlers.SetConfig(appCfg)
	router, apiRouter := SetupRoutes(handlers)

	optHandlers := BuildOptimizationHandlers(db, appCfg)
	RegisterOptimizationRoutes(apiRouter, optHandlers)

	healthChecker := NewHealthChecker(db, nil, nil, "")
	router.Get("/health/live", healthChecker.HandleLiveness)
	router.Get("/health/ready", healthChecker.HandleReadiness)
	router.Get("/health/db", healthChecker.HandleDBStats)

	return &Server{
		config:    cfg,
		handler:   router,
		handlers:  handlers,
		router:    router,
		apiRouter: apiRouter,
		db:        db,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
