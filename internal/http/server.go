package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"budgeting/internal/cache"
	"budgeting/internal/core"
	"budgeting/internal/export/sheets"
	"budgeting/internal/ledger"
	"budgeting/internal/log"
)

// SheetsExporter writes the full ledger to a spreadsheet.
type SheetsExporter interface {
	Export(ctx context.Context, seq []core.Transaction) (sheets.Result, error)
}

// Options configures the optional parts of a Server. Zero values fall back
// to the defaults used by cmd/budgeting.
type Options struct {
	// Exporter is nil when no spreadsheet is configured.
	Exporter SheetsExporter
	// Ready checks storage health for /readyz.
	Ready              func(ctx context.Context) error
	RateLimitPerMinute int
	ViewCacheSize      int
	ViewCacheTTL       time.Duration
	Logger             *log.Logger
}

type Server struct {
	http.Server
	ledger   *ledger.Ledger
	exporter SheetsExporter
	ready    func(ctx context.Context) error
	logger   *log.Logger

	rateLimiter *rateLimiter
	security    *securityMetrics

	// Views memoised per ledger revision and filter criteria.
	views  *cache.LRUCache[string, ledger.View]
	caches *cache.Manager

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, l *ledger.Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 60
	}
	if opts.ViewCacheSize <= 0 {
		opts.ViewCacheSize = 128
	}
	if opts.ViewCacheTTL == 0 {
		opts.ViewCacheTTL = 5 * time.Minute
	}
	if opts.Ready == nil {
		opts.Ready = func(context.Context) error { return nil }
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		ledger:   l,
		exporter: opts.Exporter,
		ready:    opts.Ready,
		logger:   logger,
		security: &securityMetrics{},
		views:    cache.NewLRUCache[string, ledger.View](opts.ViewCacheSize, opts.ViewCacheTTL),
		caches:   cache.NewManager(opts.Logger),
		started:  time.Now(),
	}
	s.rateLimiter = newRateLimiter(opts.RateLimitPerMinute, s.security, opts.Logger)

	s.caches.Register(s.views)
	s.caches.StartCleanup(10 * time.Minute)

	s.Handler = s.routes(opts.Logger)
	return s
}

func (s *Server) routes(logger *log.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(s.withSecurityHeaders)
	r.Use(s.withSuspiciousRequestDetection)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/transactions", s.handleListTransactions)
		r.Get("/transactions/{id}", s.handleGetTransaction)
		r.Get("/summary", s.handleSummary)
		r.Get("/export", s.handleExport)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimiter.middleware)
			r.Post("/transactions", s.handleCreateTransaction)
			r.Put("/transactions/{id}", s.handleUpdateTransaction)
			r.Delete("/transactions/{id}", s.handleDeleteTransaction)
			r.Post("/export/sheets", s.handleSheetsExport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})
	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func viewKey(revision uint64, c core.Criteria) string {
	return fmt.Sprintf("%d|%s", revision, c.Key())
}

// view returns the filtered view for c, memoised by revision. A view is
// stored under the revision it was actually taken at, so a concurrent
// mutation can never make a stale view look current.
func (s *Server) view(ctx context.Context, c core.Criteria) (ledger.View, error) {
	if v, ok := s.views.Get(viewKey(s.ledger.Revision(), c)); ok {
		return v, nil
	}
	v, err := s.ledger.View(ctx, c)
	if err != nil {
		return ledger.View{}, err
	}
	s.views.Set(viewKey(v.Revision, c), v)
	return v, nil
}
