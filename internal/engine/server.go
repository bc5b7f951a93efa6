// Package engine is the HTTP surface of a compute unit. A unit stores the
// documents of one partition and evaluates forwarded query trees against them.
package engine

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leapstack-labs/partql/internal/httpapi"
	"github.com/leapstack-labs/partql/pkg/executor"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 8 << 20

// DocumentStore is the storage a unit serves from.
type DocumentStore interface {
	Upsert(ctx context.Context, container string, doc executor.Document) (string, error)
	Get(ctx context.Context, container, id string) ([]byte, error)
	List(ctx context.Context, container string) ([]executor.Document, error)
}

// Config holds configuration for the engine server.
type Config struct {
	Store  DocumentStore
	Logger *slog.Logger
}

// Server serves one compute unit.
type Server struct {
	store  DocumentStore
	logger *slog.Logger
}

// NewServer creates a new engine server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: cfg.Store, logger: logger}
}

// Handler returns the routes of the unit.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		httpapi.RequestLogger(s.logger, nil),
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/{container}", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Put("/", s.handlePut)
		r.Get("/{documentId}", s.handleGet)
	})
	return r
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.logger.Info("starting engine", "addr", addr)
	return httpapi.ListenAndServe(ctx, addr, s.Handler(), s.logger)
}
