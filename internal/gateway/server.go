// Package gateway is the client-facing HTTP surface. It resolves the
// partition key of every request, makes sure the owning unit runs and relays
// the request to it.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leapstack-labs/partql/internal/httpapi"
	"github.com/leapstack-labs/partql/internal/metrics"
	"github.com/leapstack-labs/partql/internal/registry"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 8 << 20

// Registry resolves logical containers.
type Registry interface {
	Create(ctx context.Context, c registry.Container) (registry.Container, error)
	PartitionKeyPath(ctx context.Context, name string) (string, error)
	List(ctx context.Context) ([]registry.Container, error)
}

// Provisioner returns the base address of the unit owning a partition key,
// starting it if needed.
type Provisioner interface {
	EnsureRunning(ctx context.Context, key string) (string, error)
}

// Config holds configuration for the gateway server.
type Config struct {
	Registry Registry
	Units    Provisioner

	// Client performs forwarded requests. Defaults to a client with
	// ForwardTimeout.
	Client         *http.Client
	ForwardTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Server is the routing gateway.
type Server struct {
	registry Registry
	units    Provisioner
	fwd      *forwarder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewServer creates a new gateway server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.ForwardTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Server{
		registry: cfg.Registry,
		units:    cfg.Units,
		fwd:      &forwarder{client: client, metrics: cfg.Metrics},
		logger:   logger,
		metrics:  cfg.Metrics,
	}
}

// Handler returns the gateway routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		httpapi.RequestLogger(s.logger, s.metrics.ObserveRequest),
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/containers", func(r chi.Router) {
		r.Get("/", s.handleListContainers)
		r.Post("/", s.handleCreateContainer)

		r.Route("/{container}", func(r chi.Router) {
			r.Use(s.resolveContainer)
			r.Post("/query", s.handleQuery)
			r.Put("/documents", s.handlePutDocument)
			r.Put("/documents/", s.handlePutDocument)
			r.Get("/documents/{id}", s.handleGetDocument)
		})
	})
	return r
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.logger.Info("starting gateway", "addr", addr)
	return httpapi.ListenAndServe(ctx, addr, s.Handler(), s.logger)
}
