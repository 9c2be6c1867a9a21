package pipeline

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ebaygate/ebaygate/internal/models"
)

// Authenticate resolves the bearer API token. Malformed values are
// rejected before any store lookup.
func (p *Pipeline) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			p.reject(c, StageAuth, http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		if !models.ValidTokenFormat(raw) {
			p.reject(c, StageAuth, http.StatusUnauthorized, gin.H{
				"error": "malformed api token",
			})
			return
		}

		tok, ok := p.store.GetAPITokenByHash(models.HashToken(raw))
		if !ok {
			p.reject(c, StageAuth, http.StatusUnauthorized, gin.H{
				"error": "unknown api token",
			})
			return
		}

		now := p.now()
		if !tok.Usable(now) {
			p.reject(c, StageAuth, http.StatusUnauthorized, gin.H{
				"error": "api token inactive or expired",
			})
			return
		}

		if limit := tok.Permissions.RateLimit; limit > 0 {
			if allowed, retryAfter := p.limiter.allow(tok.ID, limit, now); !allowed {
				p.reject(c, StageAuth, http.StatusTooManyRequests, gin.H{
					"error":       "rate limit exceeded",
					"retry_after": retryAfter.String(),
				})
				return
			}
		}

		// last-used bookkeeping stays off the critical path
		go func(id string) {
			if err := p.store.TouchAPIToken(id, now); err != nil {
				p.logger.Debug("touch api token failed", "token_id", id, "error", err.Error())
			}
		}(tok.ID)

		c.Set(ctxAPIToken, tok)
		c.Next()
	}
}

// RequireEndpoint checks the token's endpoint allow-list. Exact id
// membership only.
func (p *Pipeline) RequireEndpoint(endpointID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := TokenFromContext(c)
		if !ok {
			p.reject(c, StageEndpoint, http.StatusUnauthorized, gin.H{
				"error": "not authenticated",
			})
			return
		}

		if !tok.Permissions.Allows(endpointID) {
			p.reject(c, StageEndpoint, http.StatusForbidden, gin.H{
				"error":            "endpoint not permitted for this token",
				"missing_endpoint": endpointID,
			})
			return
		}
		c.Next()
	}
}

// ResolveAccount loads the seller account named by the :account_id
// path parameter, scoped to the token's owner.
func (p *Pipeline) ResolveAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := TokenFromContext(c)
		if !ok {
			p.reject(c, StageAccount, http.StatusUnauthorized, gin.H{
				"error": "not authenticated",
			})
			return
		}

		accountID := c.Param("account_id")
		if accountID == "" {
			p.reject(c, StageAccount, http.StatusNotFound, gin.H{
				"error": "account id missing from path",
			})
			return
		}

		account, ok := p.store.GetAccount(accountID)
		if !ok || account.UserID != tok.UserID {
			p.reject(c, StageAccount, http.StatusNotFound, gin.H{
				"error":      "ebay account not found",
				"account_id": accountID,
			})
			return
		}

		if account.Status != models.AccountStatusActive {
			p.reject(c, StageAccount, http.StatusForbidden, gin.H{
				"error":      "ebay account is not active",
				"account_id": accountID,
				"status":     string(account.Status),
			})
			return
		}

		c.Set(ctxAccount, account)
		c.Next()
	}
}

// RequireScope checks the account's granted scopes against a logical
// operation. Operations with no scope requirement pass through.
func (p *Pipeline) RequireScope(op models.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		required := models.RequiredScopes(op)
		if len(required) == 0 {
			c.Next()
			return
		}

		account, ok := AccountFromContext(c)
		if !ok {
			p.reject(c, StageScope, http.StatusUnauthorized, gin.H{
				"error": "account not resolved",
			})
			return
		}

		missing := account.MissingScopes(required)
		if len(missing) > 0 {
			details := make([]models.Scope, 0, len(missing))
			for _, id := range missing {
				details = append(details, models.LookupScope(id))
			}
			p.reject(c, StageScope, http.StatusForbidden, gin.H{
				"error":          "ebay account is missing required scopes",
				"operation":      string(op),
				"missing_scopes": details,
			})
			return
		}
		c.Next()
	}
}

// FreshToken guarantees the handler a usable access token, refreshing
// through the lifecycle manager when needed.
func (p *Pipeline) FreshToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := AccountFromContext(c)
		if !ok {
			p.reject(c, StageFreshness, http.StatusUnauthorized, gin.H{
				"error": "account not resolved",
			})
			return
		}

		fresh, err := p.manager.EnsureValid(c.Request.Context(), account.ID)
		if err != nil {
			p.resolveAccountError(c, err)
			return
		}

		c.Set(ctxAccount, fresh)
		c.Set(ctxAccessToken, fresh.AccessToken)
		c.Next()
	}
}

// Chain composes the five stages in their fixed order for one route.
func (p *Pipeline) Chain(endpointID string, op models.Operation) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		p.Authenticate(),
		p.RequireEndpoint(endpointID),
		p.ResolveAccount(),
		p.RequireScope(op),
		p.FreshToken(),
	}
}
