// Package pipeline is the fixed middleware chain in front of every
// proxied eBay route: authenticate the API token, check its endpoint
// allow-list, resolve the target seller account, check OAuth scopes,
// and guarantee a fresh access token. Stages run in that order, each
// rejection is terminal, and nothing past a failed stage executes.
package pipeline

import (
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/metrics"
	"github.com/ebaygate/ebaygate/internal/models"
	"github.com/ebaygate/ebaygate/internal/store"
	"github.com/ebaygate/ebaygate/internal/token"
)

// Rejection stage labels for metrics.
const (
	StageAuth      = "auth"
	StageEndpoint  = "endpoint"
	StageAccount   = "account"
	StageScope     = "scope"
	StageFreshness = "freshness"
)

// Context keys set by the stages for the wrapped handler.
const (
	ctxAPIToken    = "pipeline.api_token"
	ctxAccount     = "pipeline.account"
	ctxAccessToken = "pipeline.access_token"
)

type Pipeline struct {
	store   store.Store
	manager *token.Manager
	logger  *logging.Logger
	metrics *metrics.Metrics
	audit   logging.AuditStore
	limiter *tokenLimiter
	now     func() time.Time
}

type Option func(*Pipeline)

func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithAuditStore(a logging.AuditStore) Option {
	return func(p *Pipeline) { p.audit = a }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(st store.Store, mgr *token.Manager, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   st,
		manager: mgr,
		logger:  logging.NewLogger(),
		limiter: newTokenLimiter(time.Hour),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TokenFromContext returns the authenticated API token.
func TokenFromContext(c *gin.Context) (*models.APIToken, bool) {
	v, ok := c.Get(ctxAPIToken)
	if !ok {
		return nil, false
	}
	t, ok := v.(*models.APIToken)
	return t, ok
}

// AccountFromContext returns the resolved seller account. After the
// freshness stage this is the refreshed copy.
func AccountFromContext(c *gin.Context) (*models.SellerAccount, bool) {
	v, ok := c.Get(ctxAccount)
	if !ok {
		return nil, false
	}
	a, ok := v.(*models.SellerAccount)
	return a, ok
}

// AccessTokenFromContext returns the guaranteed-fresh eBay access
// token for the resolved account.
func AccessTokenFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxAccessToken)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// reject terminates the request at a stage and records why.
func (p *Pipeline) reject(c *gin.Context, stage string, status int, body gin.H) {
	if p.metrics != nil {
		p.metrics.RecordPipelineRejection(stage)
	}
	if p.audit != nil {
		event := logging.NewAuditEvent(logging.PipelineReject, c.Request.Method+" "+c.FullPath(), logging.StatusFailure).
			WithIPAddress(c.ClientIP()).
			WithDetails(map[string]interface{}{"stage": stage, "status": status})
		if tok, ok := TokenFromContext(c); ok {
			event = event.WithTokenID(tok.ID)
		}
		p.audit.SaveEventAsync(event)
	}
	c.AbortWithStatusJSON(status, body)
}

func (p *Pipeline) resolveAccountError(c *gin.Context, err error) {
	if apperrors.IsReauthRequired(err) {
		p.reject(c, StageFreshness, 400, gin.H{
			"error":          "ebay token refresh failed",
			"message":        err.Error(),
			"requiresReauth": true,
		})
		return
	}
	if _, ok := err.(*apperrors.ErrNotFound); ok {
		p.reject(c, StageFreshness, 404, gin.H{"error": "account not found"})
		return
	}
	p.reject(c, StageFreshness, 400, gin.H{
		"error":          "could not obtain a valid ebay token",
		"message":        err.Error(),
		"requiresReauth": true,
	})
}
