package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finctl/internal/core"
	"finctl/internal/dashboard"
	applog "finctl/internal/log"
	"finctl/internal/mapping"
	"finctl/internal/middleware/ratelimit"
	"finctl/internal/middleware/security"
	"finctl/internal/middleware/trace"
	"finctl/internal/pnl"
	"finctl/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Ledger is the part of services.LedgerService the API needs.
type Ledger interface {
	Status() services.Status
	Upload(ctx context.Context, source string, raw []byte) (services.UploadResult, error)
	ResetData(ctx context.Context) error

	Rules() []mapping.Rule
	SetMappings(ctx context.Context, rules []mapping.Rule) error
	ResetMappings(ctx context.Context) error

	Overrides() pnl.Overrides
	SetOverride(ctx context.Context, line string, month core.MonthKey, value float64) error
	DeleteOverride(ctx context.Context, line string, month core.MonthKey) (bool, error)
	ClearOverrides(ctx context.Context) (int, error)

	Statement(ctx context.Context, rng pnl.Range) (pnl.Statement, error)
	Dashboard(ctx context.Context) (dashboard.Dashboard, error)
	Forecast(ctx context.Context, monthsAhead int) (dashboard.ForecastResult, error)
	Drilldown(ctx context.Context, line int, month core.MonthKey) (pnl.Drilldown, error)
	Validate(ctx context.Context) (services.ValidationReport, error)
}

var _ Ledger = (*services.LedgerService)(nil)

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	MaxUploadBytes    int64
	RequestTimeout    time.Duration
	RequestsPerMinute int
	Logger            *applog.Logger
}

const (
	defaultMaxUploadBytes = 32 << 20
	defaultRequestTimeout = 30 * time.Second
	maxJSONBytes          = 1 << 20
	forecastDefaultMonths = 3
)

type Server struct {
	http.Server
	ledger      Ledger
	maxUpload   int64
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	detector    *security.Detector

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:           addr,
			ReadTimeout:    opts.RequestTimeout,
			WriteTimeout:   opts.RequestTimeout + 5*time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 64 << 10,
		},
		ledger:      ledger,
		maxUpload:   opts.MaxUploadBytes,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		tracer:      trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
		detector:    detector,
	}
	s.Handler = s.routes(opts.RequestTimeout)
	return s
}

func (s *Server) routes(timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Use(s.tracer.Handler)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Handler)
	r.Use(security.NoStore)
	r.Use(s.detector.Handler)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(s.rateLimiter.Middleware(s.detector.ExtractClientIP, rateLimited))

		r.Get("/api/health", handleHealth)
		r.Get("/status", s.handleStatus)

		r.Post("/upload", s.handleUpload)
		r.Delete("/api/data", s.handleResetData)

		r.Get("/mappings", s.handleGetMappings)
		r.Post("/mappings", s.handleSetMappings)
		r.Delete("/api/mappings", s.handleResetMappings)

		r.Route("/pnl", func(r chi.Router) {
			r.Get("/", s.handleStatement)
			r.Get("/export.xlsx", s.handleExport)
			r.Get("/transactions/{line}", s.handleDrilldown)
			r.Get("/overrides", s.handleListOverrides)
			r.Post("/override", s.handleSetOverride)
			r.Delete("/override", s.handleDeleteOverride)
		})
		r.Delete("/api/pnl/overrides", s.handleClearOverrides)

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/api/forecast", s.handleForecast)
		r.Get("/validate", s.handleValidate)
	})

	return r
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports request counters for the status endpoint.
type Metrics struct {
	Requests           int64 `json:"requests"`
	ServerErrors       int64 `json:"server_errors"`
	RateLimited        int64 `json:"rate_limited"`
	SuspiciousRequests int64 `json:"suspicious_requests"`
	ActiveClients      int   `json:"active_clients"`
}

func (s *Server) Metrics() Metrics {
	t := s.tracer.GetMetrics()
	return Metrics{
		Requests:           t.TotalRequests,
		ServerErrors:       t.ServerErrors,
		RateLimited:        s.rateLimiter.Hits(),
		SuspiciousRequests: s.detector.GetMetrics().SuspiciousRequests,
		ActiveClients:      s.rateLimiter.ActiveClients(),
	}
}
