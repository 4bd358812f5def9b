package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"foretrack/internal/identity"
	"foretrack/internal/log"
	"foretrack/internal/middleware/ratelimit"
	"foretrack/internal/middleware/security"
	"foretrack/internal/middleware/trace"
	"foretrack/internal/services"
)

// DefaultHandlerTimeout bounds the work of a single API request.
const DefaultHandlerTimeout = 7 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call. Store is only pinged by
// the readiness check.
type Deps struct {
	Store        Pinger
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Categories   *services.CategoryService
	Settings     *services.SettingsService
	Analytics    *services.AnalyticsService
	Insights     *services.InsightService
	Recurring    *services.RecurringService
	Export       *services.ExportService
	Verifier     identity.Verifier
}

type Options struct {
	Addr               string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	TrustedProxies     []string
	HandlerTimeout     time.Duration
}

type Server struct {
	http.Server
	deps    Deps
	logger  *log.Logger
	timeout time.Duration
	now     func() time.Time
	started time.Time

	tracer   *trace.Middleware
	detector *security.Detector
	limiter  *ratelimit.Limiter

	stopLimiter  context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer builds the router and middleware chain, returning a server ready
// to ListenAndServe.
func NewServer(opts Options, deps Deps, logger *log.Logger) (*Server, error) {
	logger = logger.WithComponent(log.ComponentHTTP)

	detector, err := security.NewDetector(logger, opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("security detector: %w", err)
	}
	rl := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rl.RequestsPerMinute = opts.RateLimitPerMinute
	}
	limiter := ratelimit.NewLimiter(rl)

	timeout := opts.HandlerTimeout
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}

	limiterCtx, stop := context.WithCancel(context.Background())
	go limiter.Run(limiterCtx)

	s := &Server{
		deps:        deps,
		logger:      logger,
		timeout:     timeout,
		now:         func() time.Time { return time.Now().UTC() },
		started:     time.Now(),
		tracer:      trace.NewMiddleware(logger, detector.ClientIP),
		detector:    detector,
		limiter:     limiter,
		stopLimiter: stop,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(identity.Middleware(deps.Verifier, logger))
	api.Use(s.withTimeout)
	s.routes(api)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID},
		AllowCredentials: true,
	})

	// Outermost first: trace, security headers, detector, rate limit, CORS.
	var h http.Handler = r
	h = c.Handler(h)
	h = s.limitWrites(h)
	h = detector.Middleware(h)
	h = security.Headers(security.APIHeadersConfig())(h)
	h = log.Middleware(logger, trace.RequestIDFromRequest)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           otelhttp.NewHandler(h, "foretrack"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(api *mux.Router) {
	api.HandleFunc("/currencies", s.handleCurrencies).Methods(http.MethodGet)

	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{kind}/{id}", s.handleGetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{kind}/{id}", s.handleUpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{kind}/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	// status is registered before {id} so it is not read as a budget id.
	api.HandleFunc("/budgets/status", s.handleBudgetStatus).Methods(http.MethodGet)
	api.HandleFunc("/budgets", s.handleListBudgets).Methods(http.MethodGet)
	api.HandleFunc("/budgets", s.handleCreateBudget).Methods(http.MethodPost)
	api.HandleFunc("/budgets/{id}", s.handleUpdateBudget).Methods(http.MethodPut)
	api.HandleFunc("/budgets/{id}", s.handleDeleteBudget).Methods(http.MethodDelete)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id}", s.handleUpdateCategory).Methods(http.MethodPut)
	api.HandleFunc("/categories/{id}", s.handleDeleteCategory).Methods(http.MethodDelete)

	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handlePutSettings).Methods(http.MethodPut)

	api.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/insights", s.handleInsights).Methods(http.MethodGet)
	api.HandleFunc("/ai/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/ai/categorize", s.handleCategorize).Methods(http.MethodPost)
	api.HandleFunc("/ai/tips", s.handleTips).Methods(http.MethodGet)
	api.HandleFunc("/ai/analysis", s.handleAnalysis).Methods(http.MethodGet)

	api.HandleFunc("/export/sheets", s.handleExportSheets).Methods(http.MethodPost)

	api.HandleFunc("/recurring", s.handleListRecurring).Methods(http.MethodGet)
	api.HandleFunc("/recurring", s.handleCreateRecurring).Methods(http.MethodPost)
	api.HandleFunc("/recurring/{id}", s.handleUpdateRecurring).Methods(http.MethodPut)
	api.HandleFunc("/recurring/{id}", s.handleDeleteRecurring).Methods(http.MethodDelete)
}

// withTimeout gives each API request its own deadline.
func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// limitWrites applies the rate limiter to state-changing methods only.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeErrorMessage(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			limited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// Shutdown stops the limiter sweep and drains the server. It is safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopLimiter()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
