// ABOUTME: HTTP API server for herdbook
// ABOUTME: Wires routes, auth middleware, request logging, and graceful shutdown

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/elevage/herdbook/internal/auth"
	"github.com/elevage/herdbook/internal/store"
)

// Server exposes the breeding-record API over HTTP. It holds only the Store
// interface; which backend is behind it was decided once at startup.
type Server struct {
	store  store.Store
	auth   *auth.Service
	addr   string
	logger *slog.Logger
}

// New creates a Server listening on addr once Run is called.
func New(st store.Store, authService *auth.Service, addr string) *Server {
	return &Server{
		store:  st,
		auth:   authService,
		addr:   addr,
		logger: slog.Default().With("component", "server"),
	}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	s.auth.Routes(mux)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/farmers", s.handleListFarmers)
	api.HandleFunc("POST /api/farmers", s.handleCreateFarmer)
	api.HandleFunc("GET /api/farmers/{id}", s.handleGetFarmer)
	api.HandleFunc("PATCH /api/farmers/{id}", s.handleUpdateFarmer)
	api.HandleFunc("DELETE /api/farmers/{id}", s.handleDeleteFarmer)

	api.HandleFunc("GET /api/farms", s.handleListFarms)
	api.HandleFunc("POST /api/farms", s.handleCreateFarm)
	api.HandleFunc("GET /api/farms/{id}", s.handleGetFarm)
	api.HandleFunc("PATCH /api/farms/{id}", s.handleUpdateFarm)
	api.HandleFunc("DELETE /api/farms/{id}", s.handleDeleteFarm)

	api.HandleFunc("GET /api/cows", s.handleListCows)
	api.HandleFunc("POST /api/cows", s.handleCreateCow)
	api.HandleFunc("GET /api/cows/{id}", s.handleGetCow)
	api.HandleFunc("PATCH /api/cows/{id}", s.handleUpdateCow)
	api.HandleFunc("DELETE /api/cows/{id}", s.handleDeleteCow)

	api.HandleFunc("GET /api/acts", s.handleListActs)
	api.HandleFunc("POST /api/acts", s.handleCreateAct)
	api.HandleFunc("GET /api/acts/{id}", s.handleGetAct)
	api.HandleFunc("DELETE /api/acts/{id}", s.handleDeleteAct)

	api.HandleFunc("GET /api/stats", s.handleStats)

	// Record CRUD requires a logged-in user; health and the auth endpoints
	// themselves do not.
	mux.Handle("/api/", s.auth.RequireAuth(api))

	return s.requestLog(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// requestLog assigns each request an ID and logs its outcome.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Debug("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats serves the derived counts the dashboard shows. They are plain
// reads over the full collections, consistent with the listings at the same
// instant.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	farmers, err := s.store.ListFarmers(ctx)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	farms, err := s.store.ListFarms(ctx, store.FarmFilter{})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	cows, err := s.store.ListCows(ctx, store.CowFilter{})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	acts, err := s.store.ListActs(ctx, store.ActFilter{})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"farmers": len(farmers),
		"farms":   len(farms),
		"cows":    len(cows),
		"acts":    len(acts),
	})
}

// writeStoreError maps the store's error taxonomy onto response codes.
// Kinds survive wrapping, so errors.Is is enough here.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicateCow), errors.Is(err, store.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrForeignKey):
		writeError(w, http.StatusConflict, "referenced record does not exist or still has dependents")
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage backend unavailable")
	default:
		s.logger.Error("storage operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
