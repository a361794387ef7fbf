package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/flowdeck/pkg/access"
	"github.com/platinummonkey/flowdeck/pkg/httputil"
	"github.com/platinummonkey/flowdeck/pkg/lifecycle"
	"github.com/platinummonkey/flowdeck/pkg/middleware"
	"github.com/platinummonkey/flowdeck/pkg/observability"
)

const maxRequestBytes = 1 << 20 // 1 MiB; flow documents are small JSON

// Server routes permission and lifecycle requests onto the core
type Server struct {
	router      *mux.Router
	access      *access.Service
	coordinator *lifecycle.Coordinator
	logger      *observability.Logger
	health      *observability.HealthChecker
}

// ServerOptions carries the optional pieces of a Server
type ServerOptions struct {
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Health   *observability.HealthChecker
}

// NewServer creates a new API server and wires all routes
func NewServer(accessService *access.Service, coordinator *lifecycle.Coordinator, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:      mux.NewRouter(),
		access:      accessService,
		coordinator: coordinator,
		logger:      opts.Logger,
		health:      opts.Health,
	}

	s.setupRoutes(opts)
	return s
}

func (s *Server) setupRoutes(opts ServerOptions) {
	principal := middleware.NewPrincipalMiddleware(false)

	chain := httputil.Chain(
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware,
		middleware.RequestLogging(s.logger),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxRequestBytes),
	)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(principal.Handler)

	// Project routes
	v1.HandleFunc("/projects", s.listProjects).Methods("GET")
	v1.HandleFunc("/projects", s.createProject).Methods("POST")
	v1.HandleFunc("/projects/{public_id}", s.deleteProject).Methods("DELETE")
	v1.HandleFunc("/projects/{public_id}/permission", s.projectPermission).Methods("GET")

	// Flow routes
	v1.HandleFunc("/projects/{public_id}/flows", s.listFlows).Methods("GET")
	v1.HandleFunc("/projects/{public_id}/flows", s.createFlow).Methods("POST")
	v1.HandleFunc("/flows/{id}/permission", s.flowPermission).Methods("GET")
	v1.HandleFunc("/flows/{id}/document", s.updateFlowDocument).Methods("PATCH")
	v1.HandleFunc("/flows/{id}", s.deleteFlow).Methods("DELETE")

	// Ops routes, outside the principal requirement
	if s.health != nil {
		s.router.HandleFunc("/healthz", s.health.Readiness).Methods("GET")
	}
	if opts.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(opts.Registry)).Methods("GET")
	}
	if opts.Metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(opts.Metrics)))
	}

	s.router.Use(mux.MiddlewareFunc(chain))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for embedding in a larger server
func (s *Server) Router() *mux.Router {
	return s.router
}

// HTTPServer builds an http.Server around the router with the given
// address and timeouts.
func (s *Server) HTTPServer(addr string, readTimeout, writeTimeout, idleTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}
