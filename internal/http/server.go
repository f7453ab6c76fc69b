package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"hisab/internal/auth"
	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/metrics"
	"hisab/internal/middleware/ratelimit"
	"hisab/internal/middleware/security"
	"hisab/internal/middleware/trace"
	"hisab/internal/services"
)

const (
	routePIN        = "/api/auth/pin"
	routeLedger     = "/api/ledger"
	routeDashboard  = "/api/dashboard"
	routeBalances   = "/api/balances"
	routeAllTime    = "/api/all-time"
	routeRentStatus = "/api/rent-status"
	routeHealth     = "/healthz"
	routeReady      = "/readyz"
	routeMetrics    = "/metrics"
)

var knownRoutes = map[string]bool{
	routePIN: true, routeLedger: true, routeDashboard: true, routeBalances: true,
	routeAllTime: true, routeRentStatus: true, routeHealth: true, routeReady: true, routeMetrics: true,
}

// Config holds the transport settings of the API server.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// forwarding headers are believed.
	TrustedProxies []string
	MaxBodyBytes   int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	// Now returns today; defaults to core.Today.
	Now func() core.Date
}

// Deps are the services behind the API. Gate, Metrics and Logger are
// optional.
type Deps struct {
	Ledger    *services.LedgerService
	Dashboard *services.DashboardService
	Gate      *auth.Gate
	Metrics   *metrics.Metrics
	Logger    *log.Logger
}

type Server struct {
	http.Server

	ledger    *services.LedgerService
	dashboard *services.DashboardService
	gate      *auth.Gate
	metrics   *metrics.Metrics
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	actions  map[string]actionFunc

	maxBodyBytes int64
	now          func() core.Date
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Ledger == nil || deps.Dashboard == nil {
		return nil, errors.New("http server requires ledger and dashboard services")
	}

	gate := deps.Gate
	if gate == nil {
		var err error
		if gate, err = auth.NewGate("", "", 0); err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	now := cfg.Now
	if now == nil {
		now = core.Today
	}
	rlConfig := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = cfg.RateLimitPerMinute
	}

	s := &Server{
		ledger:       deps.Ledger,
		dashboard:    deps.Dashboard,
		gate:         gate,
		metrics:      deps.Metrics,
		logger:       logger,
		limiter:      ratelimit.NewLimiter(rlConfig),
		detector:     detector,
		maxBodyBytes: cfg.MaxBodyBytes,
		now:          now,
		started:      time.Now(),
	}
	s.actions = s.ledgerActions()

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadTimeout:       orDefault(cfg.ReadTimeout, 15*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       orDefault(cfg.IdleTimeout, 60*time.Second),
	}
	return s, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(routePIN, s.handlePINLogin)
	mux.HandleFunc(routeLedger, s.handleLedger)
	mux.HandleFunc(routeDashboard, s.handleDashboard())
	mux.HandleFunc(routeBalances, s.handleBalances())
	mux.HandleFunc(routeAllTime, s.handleAllTime())
	mux.HandleFunc(routeRentStatus, s.handleRentStatus())
	mux.HandleFunc(routeHealth, s.handleHealth)
	mux.HandleFunc(routeReady, s.handleReady)
	if s.metrics != nil {
		mux.Handle(routeMetrics, s.metrics.Handler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "not found").Write(w)
	})

	var observer trace.Observer
	if s.metrics != nil {
		observer = s.metrics
	}
	tracer := trace.NewMiddleware(s.clientIP, routeLabel, observer)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.clientIP, isMutation, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.clientIP(r),
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	})

	var h http.Handler = mux
	h = s.requireSession(h)
	h = limit(h)
	h = s.detector.Middleware(h)
	h = headers.Middleware(h)
	h = log.Middleware(s.logger, trace.RequestID)(h)
	h = tracer.Middleware(h)
	return h
}

// routeLabel bounds the metrics route label to the registered routes.
func routeLabel(r *http.Request) string {
	if knownRoutes[r.URL.Path] {
		return r.URL.Path
	}
	return "other"
}

// isMutation selects the requests subject to rate limiting.
func isMutation(r *http.Request) bool {
	return r.Method == http.MethodPost
}

func (s *Server) clientIP(r *http.Request) string {
	return s.detector.ExtractClientIP(r)
}

// writeError logs err at a level matching its status and writes the error
// envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, msg string, err error, operation string) {
	code, errorType := classify(err)
	ctx := r.Context()
	if code >= http.StatusInternalServerError {
		log.LogError(ctx, msg, err, log.ComponentHTTP, operation, errorType, nil)
	} else {
		fields := log.NewFields().WithError(err, errorType).WithOperation(operation)
		log.FromContext(ctx).WithComponent(log.ComponentHTTP).WarnContext(ctx, msg, fields.ToSlice()...)
	}
	FromError(err).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	SuccessResponse(map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready once the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	revision, err := s.ledger.Revision(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, fmt.Sprintf("store unavailable: %v", err)).Write(w)
		return
	}

	SuccessResponse(map[string]any{
		"status":              "ready",
		"revision":            revision,
		"readOnly":            s.ledger.ReadOnly(),
		"authEnabled":         s.gate.Enabled(),
		"rateLimitClients":    s.limiter.ActiveClients(),
		"suspiciousRequests":  s.detector.SuspiciousRequests(),
		"rateLimitedRequests": s.limiter.Rejected(),
	}).Write(w)
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
