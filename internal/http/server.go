package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"patrimonio/internal/log"
	"patrimonio/internal/middleware/ratelimit"
	"patrimonio/internal/middleware/security"
	"patrimonio/internal/middleware/trace"
	"patrimonio/internal/observability"
	"patrimonio/internal/services"
)

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Services groups the application services the handlers call.
type Services struct {
	Projections *services.ProjectionService
	Events      *services.EventService
	Plans       *services.PlanService
}

// Options configures a Server. Zero values select defaults.
type Options struct {
	DefaultSamples int
	RateLimit      ratelimit.Config
	Headers        *security.HeadersConfig
	Metrics        *observability.Metrics
	// ReadyChecks are run by /readyz, keyed by dependency name.
	ReadyChecks map[string]ReadyCheck
	Logger      *log.Logger
}

type Server struct {
	http.Server
	projections *services.ProjectionService
	events      *services.EventService
	plans       *services.PlanService

	metrics     *observability.Metrics
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	headers     security.HeadersConfig
	readyChecks map[string]ReadyCheck
	parse       ParseOptions
	logger      *log.Logger

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	rlConfig := opts.RateLimit
	if rlConfig.RequestsPerMinute == 0 {
		rlConfig = ratelimit.DefaultConfig()
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		projections: svc.Projections,
		events:      svc.Events,
		plans:       svc.Plans,
		metrics:     opts.Metrics,
		rateLimiter: ratelimit.NewLimiter(rlConfig),
		detector:    security.NewDetector(),
		headers:     headers,
		readyChecks: opts.ReadyChecks,
		parse:       ParseOptions{DefaultSamples: opts.DefaultSamples},
		logger:      logger.WithComponent(log.ComponentHTTP),
		started:     time.Now(),
		now:         time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /api/projections", s.handleProject)
	mux.HandleFunc("POST /api/projections/runs", s.handleEnqueueProjection)
	mux.HandleFunc("GET /api/projections/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/projections/runs/{id}/report", s.handleRunReport)

	mux.HandleFunc("GET /api/life-events", s.handleListEvents)
	mux.HandleFunc("POST /api/life-events", s.handleCreateEvent)
	mux.HandleFunc("DELETE /api/life-events/{id}", s.handleDeleteEvent)

	mux.HandleFunc("GET /api/plans", s.handleListPlans)
	mux.HandleFunc("POST /api/plans", s.handleCreatePlan)
	mux.HandleFunc("GET /api/plans/{id}", s.handleGetPlan)
	mux.HandleFunc("POST /api/plans/{id}/runs", s.handleProjectPlan)

	s.Handler = s.middleware(mux)
	return s
}

// middleware wraps the router, outermost first: metrics, tracing, request
// logger, security headers, detection, rate limiting.
func (s *Server) middleware(next http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RecordRateLimited()
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	}

	h := s.rateLimiter.Middleware(s.detector.ExtractClientIP, onLimit)(next)
	h = s.detector.Middleware(s.logger, s.metrics.RecordSuspicious)(h)
	h = security.NewHeadersMiddleware(s.headers).Middleware(h)
	h = log.Middleware(s.logger, trace.RequestID)(h)
	h = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger).Middleware(h)
	return s.metrics.Middleware(h)
}

// Shutdown stops accepting requests, then waits for in-process projection
// runs until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		if s.projections == nil {
			return
		}
		done := make(chan struct{})
		go func() {
			s.projections.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("Shutdown deadline reached with projection runs in flight")
			if shutdownErr == nil {
				shutdownErr = ctx.Err()
			}
		}
	})
	return shutdownErr
}
