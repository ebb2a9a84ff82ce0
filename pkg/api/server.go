// Package api serves the network analyses over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-netimpact/pkg/api/middleware"
	"github.com/dd0wney/cluso-netimpact/pkg/config"
	"github.com/dd0wney/cluso-netimpact/pkg/graphql"
	"github.com/dd0wney/cluso-netimpact/pkg/jobs"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
	"github.com/dd0wney/cluso-netimpact/pkg/scenario"
)

// Options wires a Server. Jobs and Scenarios are created in memory when nil
// and are then owned, and closed, by the server.
type Options struct {
	Config    *config.Config
	Jobs      *jobs.Manager
	Scenarios scenario.Store
	Metrics   *metrics.Registry
	Logger    logging.Logger
	Pool      *parallel.WorkerPool
	Version   string
}

// Server represents the HTTP API server
type Server struct {
	cfg            *config.Config
	jobs           *jobs.Manager
	scenarios      scenario.Store
	metrics        *metrics.Registry
	logger         logging.Logger
	pool           *parallel.WorkerPool
	limiter        *middleware.RateLimiter
	graphqlHandler http.Handler
	startTime      time.Time
	version        string

	ownJobs      bool
	ownScenarios bool
	httpServer   *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.OrNop(opts.Logger).With(logging.Component("api"))

	schema, err := graphql.NewSchema(graphql.Options{
		MaxECMPPaths:   cfg.Analysis.MaxECMPPaths,
		MaxSPOFResults: cfg.Analysis.MaxSPOFResults,
		BatchSize:      cfg.Analysis.BatchSize,
		Pool:           opts.Pool,
		Logger:         opts.Logger,
		Metrics:        opts.Metrics,
		Risk:           cfg.Risk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build graphql schema: %w", err)
	}

	s := &Server{
		cfg:            cfg,
		jobs:           opts.Jobs,
		scenarios:      opts.Scenarios,
		metrics:        opts.Metrics,
		logger:         logger,
		pool:           opts.Pool,
		graphqlHandler: graphql.NewGraphQLHandler(schema, 0, opts.Logger),
		startTime:      time.Now(),
		version:        opts.Version,
	}
	if s.version == "" {
		s.version = "dev"
	}
	if s.jobs == nil {
		s.jobs = jobs.NewManager(jobs.Options{
			Retention:  cfg.Jobs.Retention,
			MaxRunning: cfg.Jobs.MaxRunning,
			Logger:     opts.Logger,
			Metrics:    opts.Metrics,
		})
		s.ownJobs = true
	}
	if s.scenarios == nil {
		s.scenarios = scenario.Instrument(scenario.NewMemoryStore(), config.BackendMemory, opts.Metrics)
		s.ownScenarios = true
	}
	if cfg.Server.RateLimit > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.Server.RateLimit
		rl.BurstSize = cfg.Server.RateBurst
		s.limiter = middleware.NewRateLimiter(rl)
	}
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health and metrics
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metricsHandler())

	// Path queries
	mux.HandleFunc("POST /v1/paths/shortest", s.handleShortestPath)
	mux.HandleFunc("POST /v1/paths/ecmp", s.handleECMPPaths)
	mux.HandleFunc("POST /v1/ecmp/sample", s.handleECMPSample)
	mux.HandleFunc("POST /v1/connectivity", s.handleConnectivity)

	// Failure and change analysis
	mux.HandleFunc("POST /v1/spof", s.handleSPOF)
	mux.HandleFunc("POST /v1/impact", s.handleImpact)

	// Asynchronous jobs
	mux.HandleFunc("GET /v1/jobs", s.handleListJobs)
	mux.HandleFunc("POST /v1/jobs/impact", s.handleSubmitImpact)
	mux.HandleFunc("POST /v1/jobs/spof", s.handleSubmitSPOF)
	mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /v1/jobs/{id}", s.handleCancelJob)

	// Traffic engineering
	mux.HandleFunc("POST /v1/traffic/utilization", s.handleUtilization)
	mux.HandleFunc("POST /v1/traffic/optimize", s.handleOptimize)

	// Stored scenarios
	mux.HandleFunc("GET /v1/scenarios", s.handleListScenarios)
	mux.HandleFunc("POST /v1/scenarios", s.handleCreateScenario)
	mux.HandleFunc("GET /v1/scenarios/{id}", s.handleGetScenario)
	mux.HandleFunc("DELETE /v1/scenarios/{id}", s.handleDeleteScenario)
	mux.HandleFunc("POST /v1/scenarios/{id}/impact", s.handleScenarioImpact)

	// GraphQL endpoint
	mux.Handle("POST /graphql", s.graphqlHandler)

	return mux
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = middleware.Metrics(s.metrics)(s.routes())
	if s.limiter != nil {
		h = middleware.RateLimit(s.limiter, middleware.ClientIP)(h)
	}
	h = middleware.BodySizeLimit(s.cfg.Server.MaxBodyBytes)(h)
	h = middleware.SecurityHeaders(false)(h)
	h = middleware.CORS(s.cfg.Server.CORSOrigins)(h)
	h = middleware.Logging(s.logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.PanicRecovery(s.logger)(h)
	return h
}

func (s *Server) metricsHandler() http.Handler {
	if s.metrics == nil {
		return http.NotFoundHandler()
	}
	inner := promhttp.HandlerFor(s.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.UpdateSystemMetrics(s.startTime)
		inner.ServeHTTP(w, r)
	})
}

// Start serves on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// Create HTTP server with timeouts for production security
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening",
			logging.String("addr", ln.Addr().String()),
			logging.String("version", s.version))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.release()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	<-errCh
	s.release()
	s.logger.Info("api server stopped")
	return err
}

// Close releases resources the server created itself. Safe to call when
// the server was never started.
func (s *Server) Close() {
	s.release()
}

func (s *Server) release() {
	if s.limiter != nil {
		s.limiter.Stop()
		s.limiter = nil
	}
	if s.ownJobs && s.jobs != nil {
		s.jobs.Close()
		s.ownJobs = false
	}
	if s.ownScenarios && s.scenarios != nil {
		if err := s.scenarios.Close(); err != nil {
			s.logger.Warn("failed to close scenario store", logging.Error(err))
		}
		s.ownScenarios = false
	}
}
