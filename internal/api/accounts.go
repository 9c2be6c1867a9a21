package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/logging"
)

func (s *Server) handleListAccounts(c *gin.Context) {
	accounts := s.store.ListAccounts(c.Query("user_id"))
	c.JSON(http.StatusOK, gin.H{"accounts": accounts, "count": len(accounts)})
}

func (s *Server) handleGetAccount(c *gin.Context) {
	account, ok := s.store.GetAccount(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "account not found"})
		return
	}
	c.JSON(http.StatusOK, account)
}

// handleRefreshAccount forces a refresh regardless of remaining TTL.
func (s *Server) handleRefreshAccount(c *gin.Context) {
	account, err := s.manager.RefreshNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		var notFound *apperrors.ErrNotFound
		switch {
		case apperrors.IsReauthRequired(err):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          "refresh failed",
				"message":        err.Error(),
				"requiresReauth": true,
			})
		case stderrors.As(err, &notFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "account not found"})
		default:
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: "refresh failed", Message: err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, account)
}

// handleRevokeAccount drops the stored token pair. eBay-side grant
// revocation is left to the seller's account settings.
func (s *Server) handleRevokeAccount(c *gin.Context) {
	id := c.Param("id")
	if !s.store.DeleteAccount(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "account not found"})
		return
	}
	s.auditEvent(logging.NewAuditEvent(logging.AccountRevoke, "revoke account", logging.StatusSuccess).
		WithAccountID(id).
		WithIPAddress(c.ClientIP()))
	c.Status(http.StatusNoContent)
}
