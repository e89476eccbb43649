// Package server exposes the consolidated database over a read-only HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/keirinlab/keirin-cli/internal/store"
)

// Server serves race data from a consolidated database. It never writes;
// pipeline runs and the API can share the file safely.
type Server struct {
	db      *store.Partition
	tracker *store.StatusTracker
	router  chi.Router
	srv     *http.Server
	addr    string
}

// New builds the server and its routes. tracker may be nil when the status
// database is not available; the status endpoint then reports only health.
func New(addr string, db *store.Partition, tracker *store.StatusTracker) *Server {
	s := &Server{db: db, tracker: tracker, addr: addr}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Route("/races", func(r chi.Router) {
		r.Get("/", s.handleListRaces)
		r.Get("/{raceID}", s.handleRace)
		r.Get("/{raceID}/odds", s.handleOdds)
		r.Get("/{raceID}/result", s.handleResult)
	})

	s.router = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	zap.L().Info("api server listening", zap.String("addr", s.addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return eris.Wrap(s.srv.Shutdown(ctx), "server: shutdown")
}
