// Package server wires the dispute engine behind an HTTP API.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/coachwise/coachwise/internal/booking"
	"github.com/coachwise/coachwise/internal/circuitbreaker"
	"github.com/coachwise/coachwise/internal/config"
	"github.com/coachwise/coachwise/internal/dispute"
	"github.com/coachwise/coachwise/internal/health"
	"github.com/coachwise/coachwise/internal/idgen"
	"github.com/coachwise/coachwise/internal/logging"
	"github.com/coachwise/coachwise/internal/metrics"
	"github.com/coachwise/coachwise/internal/notify"
	"github.com/coachwise/coachwise/internal/policy"
	"github.com/coachwise/coachwise/internal/ratelimit"
	"github.com/coachwise/coachwise/internal/reconciliation"
	"github.com/coachwise/coachwise/internal/security"
	"github.com/coachwise/coachwise/internal/settlement"
	"github.com/coachwise/coachwise/internal/traces"
	"github.com/coachwise/coachwise/internal/validation"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg         *config.Config
	disputes    *dispute.Service
	policies    policy.Store
	bookings    booking.Lookup
	gateway     settlement.Gateway
	emitter     *notify.Emitter
	reconciler  *reconciliation.Service
	sweeper     *reconciliation.Timer
	rateLimiter *ratelimit.Limiter
	checks      *health.Registry
	db          *sql.DB // nil in demo mode
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger

	shutdownTraces func(context.Context) error
	cancelRunCtx   context.CancelFunc

	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGateway sets a custom settlement gateway (for testing).
func WithGateway(g settlement.Gateway) Option {
	return func(s *Server) { s.gateway = g }
}

// WithBookings sets a custom booking lookup (for testing and demo seeding).
func WithBookings(l booking.Lookup) Option {
	return func(s *Server) { s.bookings = l }
}

// New creates a server instance. With DATABASE_URL set, tickets and policies
// live in Postgres; otherwise everything runs in memory for local demos.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		checks: health.NewRegistry(),
		logger: logging.New(cfg.LogLevel, "json"),
	}
	for _, opt := range opts {
		opt(s)
	}

	var (
		ticketStore dispute.Store
		policyStore policy.Store
	)

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		ticketStore = dispute.NewPostgresStore(db)
		policyStore = policy.NewPostgresStore(db)
		if s.bookings == nil {
			s.bookings = booking.NewPostgresStore(db)
		}
		s.checks.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.logger.Warn("DATABASE_URL not set, using in-memory storage (demo mode)")
		ticketStore = dispute.NewMemoryStore()
		policyStore = policy.NewMemoryStore()
		if s.bookings == nil {
			s.bookings = booking.NewMemoryStore()
		}
	}
	s.policies = policyStore

	if s.gateway == nil {
		if cfg.StripeAPIKey != "" {
			breaker := circuitbreaker.New(5, 30*time.Second)
			s.gateway = settlement.WithBreaker(settlement.NewStripeGateway(cfg.StripeAPIKey), breaker)
			s.logger.Info("settlement gateway enabled", "processor", "stripe")
		} else {
			s.gateway = settlement.NoopGateway{}
			s.logger.Warn("STRIPE_API_KEY not set, refunds will be acknowledged without moving money")
		}
	}

	if cfg.WebhookURL != "" {
		s.emitter = notify.NewEmitter(notify.NewWebhookSink(cfg.WebhookURL, cfg.WebhookSecret))
		s.logger.Info("notifications delivered via webhook", "url", cfg.WebhookURL)
	} else {
		s.emitter = notify.NewEmitter(notify.LogSink{})
	}

	s.disputes = dispute.NewService(ticketStore, policyStore, s.bookings, s.gateway, s.emitter,
		dispute.WithEscalationWindow(time.Duration(cfg.EscalationWindowHours)*time.Hour))
	if cfg.EscalationWindowHours > 0 {
		s.logger.Info("client escalation window enabled", "hours", cfg.EscalationWindowHours)
	}

	if settled, ok := ticketStore.(reconciliation.SettledSource); ok {
		if book, ok := s.bookings.(reconciliation.PaymentBook); ok {
			s.reconciler = reconciliation.NewService(settled, book)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

// maskDSN hides the password in a connection string for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: s.cfg.RateLimitRPM,
		BurstSize:         s.cfg.RateLimitRPM / 6,
		CleanupInterval:   time.Minute,
	})
	s.router.Use(s.rateLimiter.Middleware())

	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")
	dispute.NewHandlers(s.disputes, s.cfg.AdminSecret).RegisterRoutes(v1)
	policy.NewHandlers(s.policies, s.cfg.AdminSecret).RegisterRoutes(v1)

	if s.reconciler != nil {
		v1.POST("/admin/reconcile", s.adminOnly(), s.reconcileHandler)
	}
}

func (s *Server) adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" || c.GetHeader("X-Admin-Secret") != s.cfg.AdminSecret {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin credentials required",
			})
			return
		}
		c.Next()
	}
}

// reconcileHandler runs the refund drift check on demand. Operators hit this
// after repairing a settlement inconsistency to confirm the books are square.
func (s *Server) reconcileHandler(c *gin.Context) {
	report, err := s.reconciler.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "reconciliation_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// HealthResponse is the aggregate health report.
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)
	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Run starts the HTTP server and blocks until a shutdown signal arrives.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	shutdownTraces, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTraces = shutdownTraces
	}

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	if s.reconciler != nil && s.cfg.ReconcileIntervalMins > 0 {
		s.sweeper = reconciliation.NewTimer(s.reconciler,
			time.Duration(s.cfg.ReconcileIntervalMins)*time.Minute, s.logger)
		go s.sweeper.Start(runCtx)
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

func generateRequestID() string {
	return idgen.Hex(8)
}

// Router returns the gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Disputes exposes the workflow service, used by the MCP support tools.
func (s *Server) Disputes() *dispute.Service {
	return s.disputes
}
