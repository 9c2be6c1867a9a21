package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/models"
)

type createTokenRequest struct {
	UserID       string                  `json:"user_id" binding:"required"`
	Name         string                  `json:"name" binding:"required"`
	ConnectionID string                  `json:"connection_id"`
	Permissions  models.TokenPermissions `json:"permissions"`
	ExpiresAt    *time.Time              `json:"expires_at"`
}

// handleCreateToken mints a new API token. The raw value appears in
// this response only; every later read shows the masked form.
func (s *Server) handleCreateToken(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	if _, ok := s.store.GetUser(req.UserID); !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}

	if s.store.CountActiveTokens(req.UserID) >= models.MaxTokensPerUser {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "token limit reached",
			Message: fmt.Sprintf("A user may hold at most %d active tokens. Revoke one first.", models.MaxTokensPerUser),
			Code:    "TOKEN_LIMIT",
		})
		return
	}

	env := models.EnvironmentProduction
	if req.ConnectionID != "" {
		conn, ok := s.store.GetConnection(req.ConnectionID)
		if !ok {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
			return
		}
		env = conn.Environment
	}

	raw, err := models.GenerateToken(env)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "token generation failed"})
		return
	}

	now := time.Now().UTC()
	tok := &models.APIToken{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		Name:         req.Name,
		TokenHash:    models.HashToken(raw),
		TokenMasked:  models.MaskToken(raw),
		Permissions:  req.Permissions,
		ConnectionID: req.ConnectionID,
		IsActive:     true,
		ExpiresAt:    req.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.SetAPIToken(tok); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to save token", Message: err.Error()})
		return
	}

	s.auditEvent(logging.NewAuditEvent(logging.TokenIssue, "issue api token", logging.StatusSuccess).
		WithTokenID(tok.ID).
		WithIPAddress(c.ClientIP()))
	c.JSON(http.StatusCreated, gin.H{
		"api_token": tok,
		"token":     raw,
	})
}

func (s *Server) handleListTokens(c *gin.Context) {
	tokens := s.store.ListAPITokens(c.Query("user_id"))
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "count": len(tokens)})
}

func (s *Server) handleGetToken(c *gin.Context) {
	tok, ok := s.store.GetAPIToken(c.Param("id"))
	if !ok || tok.IsDeleted {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "token not found"})
		return
	}
	c.JSON(http.StatusOK, tok)
}

type patchTokenRequest struct {
	Name        *string                  `json:"name"`
	IsActive    *bool                    `json:"is_active"`
	Permissions *models.TokenPermissions `json:"permissions"`
	ExpiresAt   *time.Time               `json:"expires_at"`
}

func (s *Server) handlePatchToken(c *gin.Context) {
	tok, ok := s.store.GetAPIToken(c.Param("id"))
	if !ok || tok.IsDeleted {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "token not found"})
		return
	}

	var req patchTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	if req.Name != nil && *req.Name != "" {
		tok.Name = *req.Name
	}
	if req.IsActive != nil {
		tok.IsActive = *req.IsActive
	}
	if req.Permissions != nil {
		tok.Permissions = *req.Permissions
	}
	if req.ExpiresAt != nil {
		tok.ExpiresAt = req.ExpiresAt
	}
	tok.UpdatedAt = time.Now().UTC()

	if err := s.store.SetAPIToken(tok); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to save token", Message: err.Error()})
		return
	}

	s.auditEvent(logging.NewAuditEvent(logging.TokenUpdate, "update api token", logging.StatusSuccess).
		WithTokenID(tok.ID).
		WithIPAddress(c.ClientIP()))
	c.JSON(http.StatusOK, tok)
}

// handleRevokeToken soft-deletes so the row survives for auditability
// until retention cleanup purges it.
func (s *Server) handleRevokeToken(c *gin.Context) {
	id := c.Param("id")
	if !s.store.RevokeAPIToken(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "token not found"})
		return
	}
	s.auditEvent(logging.NewAuditEvent(logging.TokenRevoke, "revoke api token", logging.StatusSuccess).
		WithTokenID(id).
		WithIPAddress(c.ClientIP()))
	c.Status(http.StatusNoContent)
}
