package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ebaygate/ebaygate/internal/browserauth"
	"github.com/ebaygate/ebaygate/internal/config"
	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/metrics"
	"github.com/ebaygate/ebaygate/internal/oauth"
	"github.com/ebaygate/ebaygate/internal/pipeline"
	"github.com/ebaygate/ebaygate/internal/store"
	"github.com/ebaygate/ebaygate/internal/token"
)

// maxBodySize caps management and proxy request bodies.
const maxBodySize = 1 << 20 // 1 MiB

// Deps bundles everything the HTTP layer needs. Logger, Metrics, Audit,
// Broadcaster and Authorizer are optional; nil disables the feature.
type Deps struct {
	Store       store.Store
	Manager     *token.Manager
	OAuth       *oauth.Client
	Authorizer  browserauth.Authorizer
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
	Audit       logging.AuditStore
	Broadcaster *logging.Broadcaster

	// EbayBaseURL overrides the Sell API base for every proxied call.
	// Empty means the environment's real endpoints.
	EbayBaseURL string
}

// Server is the HTTP front of the gateway: management API for
// connections, accounts, API tokens and users, the OAuth callback, and
// the authenticated eBay proxy.
type Server struct {
	router      *gin.Engine
	cfg         *config.Config
	store       store.Store
	manager     *token.Manager
	oauth       *oauth.Client
	authorizer  browserauth.Authorizer
	pipeline    *pipeline.Pipeline
	logger      *logging.Logger
	metrics     *metrics.Metrics
	audit       logging.AuditStore
	broadcaster *logging.Broadcaster
	rateLimiter *IPRateLimiter
	ebayBaseURL string
	httpServer  *http.Server
	startedAt   time.Time
}

// NewServer wires middleware and routes. The caller owns the store and
// audit store lifecycles; Shutdown only stops the HTTP listener.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:         cfg,
		store:       deps.Store,
		manager:     deps.Manager,
		oauth:       deps.OAuth,
		authorizer:  deps.Authorizer,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		audit:       deps.Audit,
		broadcaster: deps.Broadcaster,
		ebayBaseURL: deps.EbayBaseURL,
		startedAt:   time.Now(),
	}

	popts := []pipeline.Option{}
	if deps.Logger != nil {
		popts = append(popts, pipeline.WithLogger(deps.Logger))
	}
	if deps.Metrics != nil {
		popts = append(popts, pipeline.WithMetrics(deps.Metrics))
	}
	if deps.Audit != nil {
		popts = append(popts, pipeline.WithAuditStore(deps.Audit))
	}
	s.pipeline = pipeline.New(deps.Store, deps.Manager, popts...)

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.API.RateLimit.RequestsPerMinute > 0 {
		interval := time.Minute / time.Duration(cfg.API.RateLimit.RequestsPerMinute)
		burst := cfg.API.RateLimit.Burst
		if burst <= 0 {
			burst = cfg.API.RateLimit.RequestsPerMinute
		}
		s.rateLimiter = newIPRateLimiter(interval, burst)
		router.Use(rateLimitMiddleware(s.rateLimiter))
	}
	router.Use(bodyLimitMiddleware(maxBodySize))
	if deps.Metrics != nil {
		router.Use(metrics.Middleware(deps.Metrics, deps.Logger))
	}
	router.Use(s.loggingMiddleware())

	s.router = router
	s.setupRoutes()
	return s
}

// loggingMiddleware assigns a correlation ID to every request and logs
// a structured line when it finishes. Inbound X-Correlation-ID values
// are honored so callers can stitch traces across systems.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}
		c.Header("X-Correlation-ID", correlationID)
		c.Request = c.Request.WithContext(
			logging.WithCorrelationID(c.Request.Context(), correlationID))

		start := time.Now()
		c.Next()

		if s.logger != nil {
			s.logger.InfoWithContext(c.Request.Context(), "http request",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", c.Writer.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		}
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	// eBay sends the user's browser here after consent, no API key.
	s.router.GET("/api/oauth/callback", s.handleOAuthCallback)

	admin := s.router.Group("/api", APIKeyAuth(s.cfg.API.AdminKeys, s.cfg.API.KeyHeader, s.logger))
	{
		admin.POST("/users", s.handleCreateUser)
		admin.GET("/users", s.handleListUsers)
		admin.GET("/users/:id", s.handleGetUser)
		admin.DELETE("/users/:id", s.handleDeleteUser)

		admin.POST("/connections", s.handleCreateConnection)
		admin.GET("/connections", s.handleListConnections)
		admin.GET("/connections/:id", s.handleGetConnection)
		admin.PATCH("/connections/:id", s.handlePatchConnection)
		admin.DELETE("/connections/:id", s.handleDeleteConnection)
		admin.GET("/connections/:id/authorize-url", s.handleAuthorizeURL)
		admin.POST("/connections/:id/auto-authorize", s.handleAutoAuthorize)

		admin.GET("/accounts", s.handleListAccounts)
		admin.GET("/accounts/:id", s.handleGetAccount)
		admin.POST("/accounts/:id/refresh", s.handleRefreshAccount)
		admin.DELETE("/accounts/:id", s.handleRevokeAccount)

		admin.POST("/tokens", s.handleCreateToken)
		admin.GET("/tokens", s.handleListTokens)
		admin.GET("/tokens/:id", s.handleGetToken)
		admin.PATCH("/tokens/:id", s.handlePatchToken)
		admin.DELETE("/tokens/:id", s.handleRevokeToken)

		admin.GET("/audit", s.handleQueryAudit)
		admin.GET("/logs/stream", s.handleLogStream)
	}

	s.registerProxyRoutes()
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.store.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"store":          stats,
	})
}

// handleLogStream streams structured log lines over SSE until the
// client disconnects.
func (s *Server) handleLogStream(c *gin.Context) {
	if s.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "log streaming disabled",
			Code:  "STREAMING_DISABLED",
		})
		return
	}

	lines, cancel := s.broadcaster.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case line, ok := <-lines:
			if !ok {
				return false
			}
			c.SSEvent("log", line)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) handleQueryAudit(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "audit log disabled",
			Code:  "AUDIT_DISABLED",
		})
		return
	}

	filters := logging.AuditQueryFilters{
		EventType: c.Query("event_type"),
		AccountID: c.Query("account_id"),
		TokenID:   c.Query("token_id"),
		Limit:     intQuery(c, "limit", 100),
		Offset:    intQuery(c, "offset", 0),
	}
	events, err := s.audit.QueryEvents(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "audit query failed",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// Router exposes the gin engine for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts serving on the configured host and port, blocking until
// the listener stops.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.HTTPPort)

	var srv *http.Server
	if s.cfg.Server.TLS.Enabled {
		var err error
		srv, err = NewHTTPSServerWithConfig(addr,
			s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile,
			s.cfg.Server.TLS.MinVersion, s.router)
		if err != nil {
			return err
		}
	} else {
		srv = NewHTTPServer(addr, s.router)
	}
	s.httpServer = srv

	if s.logger != nil {
		s.logger.Info("http server listening",
			"addr", addr,
			"tls", s.cfg.Server.TLS.Enabled,
			"admin_keys", MaskAPIKeys(s.cfg.API.AdminKeys),
		)
	}

	var err error
	if s.cfg.Server.TLS.Enabled {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the listener and waits for in-flight handlers,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs <- err
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil || v < 0 {
		return fallback
	}
	return v
}
