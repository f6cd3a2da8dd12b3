package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"spendtracker/internal/cache"
	applog "spendtracker/internal/log"
	"spendtracker/internal/middleware/ratelimit"
	"spendtracker/internal/middleware/security"
	"spendtracker/internal/middleware/trace"
	ports "spendtracker/internal/sheets"
	"spendtracker/internal/wizard"
	appweb "spendtracker/web"
)

const (
	defaultSessionTTL  = 12 * time.Hour
	defaultMaxSessions = 1000
	cacheSweepInterval = time.Minute
	staticAssetMaxAge  = 3600
	readyCheckTimeout  = 5 * time.Second
)

// Categories is the category list as the web UI sees it.
type Categories interface {
	wizard.CategoryStore
	List() []string
}

// Options configures NewServer. Ledger and Categories are required.
type Options struct {
	Addr           string
	Ledger         ports.Ledger
	Categories     Categories
	Identities     []string
	PaymentMethods []string

	SessionTTL         time.Duration
	MaxSessions        int
	RateLimitPerMinute int
	SecureCookies      bool

	// Ready probes the ledger backend for /readyz. Optional.
	Ready  func(ctx context.Context) error
	Logger *applog.Logger
	// Clock stamps saved expenses and export filenames. Defaults to time.Now.
	Clock func() time.Time
}

// Server is the wizard's web front end.
type Server struct {
	http.Server

	ledger     ports.Ledger
	categories Categories
	wizardOpts wizard.Options
	ready      func(ctx context.Context) error
	now        func() time.Time

	templates *template.Template

	sessions      *cache.LRUCache[*sessionEntry]
	sessionTTL    time.Duration
	secureCookies bool
	cacheManager  *cache.Manager

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	logger     *applog.Logger
	structured *applog.StructuredLogger
	metrics    appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	startTime time.Time
	recorded  atomic.Int64
	exports   atomic.Int64
}

// NewServer configures routes, templates and middleware, returning a
// ready-to-run server.
func NewServer(opts Options) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = defaultMaxSessions
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		ledger:     opts.Ledger,
		categories: opts.Categories,
		wizardOpts: wizard.Options{
			Identities:     opts.Identities,
			PaymentMethods: opts.PaymentMethods,
			Clock:          opts.Clock,
		},
		ready:         opts.Ready,
		now:           opts.Clock,
		sessionTTL:    opts.SessionTTL,
		secureCookies: opts.SecureCookies,
		cacheManager:  cache.NewManager(),
		rateLimiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:      security.NewDetector(),
		logger:        logger,
		structured:    applog.NewStructuredLogger(logger),
	}
	s.metrics.startTime = time.Now()

	s.sessions = cache.NewLRUCache[*sessionEntry](opts.MaxSessions, opts.SessionTTL,
		cache.WithEvictHook[*sessionEntry](func(key string, _ *sessionEntry) {
			logger.Debug("Session expired", applog.FieldSessionID, key)
		}))
	s.cacheManager.Register(s.sessions)
	s.cacheManager.StartCleanup(cacheSweepInterval)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticAssetMaxAge)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	noStore := func(h http.HandlerFunc) http.Handler { return security.NoStore(h) }

	mux.Handle("GET /{$}", noStore(s.handleIndex))
	mux.Handle("GET /wizard", noStore(s.handleWizard))
	mux.Handle("POST /wizard/name", noStore(s.handleConfirmName))
	mux.Handle("POST /wizard/category", noStore(s.handleChooseCategory))
	mux.Handle("POST /wizard/payment", noStore(s.handleSelectPayment))
	mux.Handle("POST /wizard/save", noStore(s.handleSave))
	mux.Handle("POST /wizard/reset", noStore(s.handleRecordAnother))
	mux.Handle("POST /location", noStore(s.handleLocation))
	mux.Handle("GET /export.csv", noStore(s.handleExportCSV))
	mux.Handle("GET /export.xlsx", noStore(s.handleExportXLSX))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, func(ctx context.Context, r *http.Request, c trace.Completion) {
		s.structured.LogHTTPEnd(ctx, r, c.Status, c.Duration.Milliseconds(), c.ClientIP)
	})

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, ratelimit.UnsafeMethods, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(true)(handler)
	handler = applog.Middleware(logger, trace.RequestIDFrom)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Shutdown stops background sweepers and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).Warn("Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please wait a moment and try again.").Write(w)
}
