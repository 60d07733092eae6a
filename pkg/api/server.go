package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/manager"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/monitor"
)

// HealthSource exposes per-workspace probe state for the GET endpoint.
// The health monitor implements it.
type HealthSource interface {
	Health(id string) *monitor.HealthState
}

// Server is the HTTP control-plane API. It fronts the workspace manager
// with a chi router and serves the operational endpoints (/health, /ready,
// /metrics) on the same listener.
type Server struct {
	manager     *manager.Manager
	health      HealthSource
	listen      string
	authToken   string
	corsOrigins []string

	httpServer *http.Server
}

// NewServer creates an API server for the given manager, listening on addr.
func NewServer(mgr *manager.Manager, addr string) *Server {
	return &Server{
		manager: mgr,
		listen:  addr,
	}
}

// WithAuthToken enables bearer-token auth on the /containers routes.
// An empty token leaves them open.
func (s *Server) WithAuthToken(token string) *Server {
	s.authToken = token
	return s
}

// WithCORSOrigins enables CORS for the given browser origins.
func (s *Server) WithCORSOrigins(origins []string) *Server {
	s.corsOrigins = origins
	return s
}

// WithHealthSource attaches the health monitor so GET /containers/{id}
// can include probe state.
func (s *Server) WithHealthSource(h HealthSource) *Server {
	s.health = h
	return s
}

// Router builds the chi handler. Exposed separately from Start so tests
// can drive it through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.instrument)
	r.Use(chimw.Recoverer)

	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Operational endpoints stay open: load balancers and Prometheus do
	// not carry the client token.
	r.Get("/health", metrics.HealthHandler())
	r.Get("/ready", metrics.ReadyHandler())
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/containers", func(r chi.Router) {
			// The in-workspace agent calls this without credentials.
			r.Post("/{id}/inactivity-shutdown", s.handleInactivityShutdown)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/start", s.handleStart)
				r.Get("/", s.handleList)
				r.Get("/{id}", s.handleGet)
				r.Delete("/{id}", s.handleDelete)
			})
		})
	})

	return r
}

// Start serves the API until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.listen,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.WithComponent("api").Info().
		Str("listen", s.listen).
		Bool("auth", s.authToken != "").
		Msg("API server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.WithComponent("api").Info().Msg("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}
