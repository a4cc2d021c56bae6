// Package http serves the check dashboard as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cheques/internal/dashboard"
	"cheques/internal/gateway"
	"cheques/internal/log"
	"cheques/internal/middleware/ratelimit"
	"cheques/internal/middleware/security"
	"cheques/internal/middleware/trace"
)

// Options configures a Server.
type Options struct {
	Location       *time.Location
	Clock          func() time.Time
	RateLimitRPM   int
	TrustedProxies []string
	Timeout        time.Duration
	Logger         *log.Logger
	// Ready reports backend reachability for /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	gw     *gateway.Gateway
	store  *dashboard.Store
	loc    *time.Location
	clock  func() time.Time
	logger *log.Logger
	ready  func(ctx context.Context) error

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	startedAt        time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. It fails only on an invalid trusted proxy CIDR.
func NewServer(addr string, gw *gateway.Gateway, opts Options) (*Server, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		gw:               gw,
		store:            gw.Store(),
		loc:              opts.Location,
		clock:            opts.Clock,
		logger:           opts.Logger.WithComponent(log.ComponentHTTP),
		ready:            opts.Ready,
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		startedAt:        opts.Clock(),
	}
	s.traceMiddleware = trace.NewMiddleware(detector.ExtractClientIP, opts.Logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       opts.Timeout,
		WriteTimeout:      opts.Timeout,
		IdleTimeout:       2 * opts.Timeout,
	}
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/preview", s.handlePreview)
	mux.HandleFunc("PUT /api/dashboard/filters", s.handleSetFilter)
	mux.HandleFunc("POST /api/dashboard/filters/toggle", s.handleToggleFilter)
	mux.HandleFunc("DELETE /api/dashboard/filters", s.handleClearFilters)
	mux.HandleFunc("POST /api/dashboard/search", s.handleSearch)
	mux.HandleFunc("PUT /api/dashboard/sort", s.handleSort)
	mux.HandleFunc("PUT /api/dashboard/page", s.handlePage)
	mux.HandleFunc("POST /api/dashboard/drill", s.handleDrillInto)
	mux.HandleFunc("DELETE /api/dashboard/drill", s.handleDrillBack)
	mux.HandleFunc("POST /api/dashboard/breakdown/{index}", s.handleBreakdown)
	mux.HandleFunc("POST /api/reload", s.handleReload)

	mux.HandleFunc("GET /api/checks/{id}", s.handleGetCheck)
	mux.HandleFunc("POST /api/checks", s.handleAddCheck)
	mux.HandleFunc("PUT /api/checks/{id}", s.handleEditCheck)
	mux.HandleFunc("DELETE /api/checks/{id}", s.handleDeleteCheck)
	mux.HandleFunc("PUT /api/checks/{id}/payment", s.handlePayment)
	mux.HandleFunc("PATCH /api/checks/{id}/fields/{field}", s.handleEditField)

	mux.HandleFunc("GET /api/export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /api/export.xlsx", s.handleExportXLSX)

	return mux
}

// middleware wraps h, outermost first: security headers, tracing, suspicious
// request logging and rate limiting of writes.
func (s *Server) middleware(h http.Handler) http.Handler {
	writes := func(r *http.Request) bool { return r.Method != http.MethodGet && r.Method != http.MethodHead }
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
	}

	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, writes, onLimit)(h)
	h = s.securityDetector.Middleware(s.logger)(h)
	h = s.traceMiddleware.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return h
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
