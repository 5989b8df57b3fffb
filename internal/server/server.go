package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/airlockhq/airlock/internal/config"
	"github.com/airlockhq/airlock/internal/storage"
	"github.com/airlockhq/airlock/internal/workspace"
)

// Server is the HTTP server for the Airlock run API.
type Server struct {
	cfg    *config.Config
	store  storage.Store
	pool   *Pool
	log    *zap.Logger
	router chi.Router
	http   *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, store storage.Store, wsClient *workspace.Client, log *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		pool:   NewPool(wsClient, cfg.Workspace(), cfg.Server.PoolSize),
		log:    log,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		// Runs
		r.Get("/runs", s.handleListRuns)
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/export", s.handleExportRun)
		r.Delete("/runs/{id}", s.handleDeleteRun)

		// WebSocket (no JSON content-type)
		r.Get("/ws/run", s.handleWebSocket)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.log.Info("server starting", zap.String("addr", "http://localhost"+addr))
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server and removes idle workspaces.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.pool.CloseAll(shutdownCtx)
	return s.http.Shutdown(shutdownCtx)
}
