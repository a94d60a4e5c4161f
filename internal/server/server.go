// Package server exposes the thin, admin-only operator surface: scheduler
// status, manual job triggers, audit-log paging and the investment path.
package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"YieldSentinel/internal/admission"
	"YieldSentinel/internal/lifecycle"
	"YieldSentinel/internal/scheduler"
	"YieldSentinel/internal/store"
)

// Server is the HTTP server for operator endpoints.
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	store      store.Store
	refresher  *lifecycle.Refresher
	admission  *admission.Service
	scheduler  *scheduler.Scheduler
	adminToken string
}

// Config wires the server's collaborators.
type Config struct {
	ListenAddr string
	AdminToken string
	Log        zerolog.Logger
	Store      store.Store
	Refresher  *lifecycle.Refresher
	Admission  *admission.Service
	Scheduler  *scheduler.Scheduler
}

func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log,
		store:      cfg.Store,
		refresher:  cfg.Refresher,
		admission:  cfg.Admission,
		scheduler:  cfg.Scheduler,
		adminToken: cfg.AdminToken,
	}
	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requireAdmin)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/scheduler/status", s.handleSchedulerStatus)
		r.Post("/scheduler/distribute", s.handleTriggerDistribution)
		r.Post("/scheduler/settle", s.handleTriggerSettlement)
		r.Get("/audit", s.handleListAudit)
		r.Get("/pools/{poolID}", s.handleGetPool)
		r.Get("/pools/{poolID}/availability", s.handleAvailability)
		r.Post("/pools/{poolID}/investments", s.handleInvest)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }
