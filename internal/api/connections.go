package api

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ebaygate/ebaygate/internal/browserauth"
	apperrors "github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/models"
	"github.com/ebaygate/ebaygate/internal/store"
)

// defaultAuthStateTTL bounds how long a pending authorization may sit
// between the consent URL being issued and eBay redirecting back.
const defaultAuthStateTTL = 10 * time.Minute

type createConnectionRequest struct {
	UserID       string             `json:"user_id" binding:"required"`
	Name         string             `json:"name" binding:"required"`
	ClientID     string             `json:"client_id" binding:"required"`
	ClientSecret string             `json:"client_secret" binding:"required"`
	DevID        string             `json:"dev_id"`
	RedirectURL  string             `json:"redirect_url" binding:"required"`
	Environment  models.Environment `json:"environment" binding:"required"`
	EbayUsername string             `json:"ebay_username"`
	EbayPassword string             `json:"ebay_password"`
}

func (s *Server) handleCreateConnection(c *gin.Context) {
	var req createConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	if _, ok := s.store.GetUser(req.UserID); !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	for _, existing := range s.store.ListConnections(req.UserID) {
		if existing.Name == req.Name {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: "connection name already in use",
				Code:  "DUPLICATE_NAME",
			})
			return
		}
	}

	now := time.Now().UTC()
	conn := &models.Connection{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		Name:         req.Name,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		DevID:        req.DevID,
		RedirectURL:  req.RedirectURL,
		Environment:  req.Environment,
		EbayUsername: req.EbayUsername,
		EbayPassword: req.EbayPassword,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := conn.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid connection", Message: err.Error()})
		return
	}
	if err := s.store.SetConnection(conn); err != nil {
		var dup *apperrors.ErrDuplicate
		if stderrors.As(err, &dup) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: "connection name already in use",
				Code:  "DUPLICATE_NAME",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to save connection", Message: err.Error()})
		return
	}

	s.auditEvent(logging.NewAuditEvent(logging.ConnectionCreate, "create connection", logging.StatusSuccess).
		WithResource(conn.ID).
		WithIPAddress(c.ClientIP()))
	c.JSON(http.StatusCreated, conn)
}

func (s *Server) handleListConnections(c *gin.Context) {
	conns := s.store.ListConnections(c.Query("user_id"))
	c.JSON(http.StatusOK, gin.H{"connections": conns, "count": len(conns)})
}

func (s *Server) handleGetConnection(c *gin.Context) {
	conn, ok := s.store.GetConnection(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
		return
	}
	c.JSON(http.StatusOK, conn)
}

func (s *Server) handlePatchConnection(c *gin.Context) {
	conn, ok := s.store.GetConnection(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
		return
	}

	var patch models.ConnectionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	patch.Apply(conn)
	conn.UpdatedAt = time.Now().UTC()
	if err := conn.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid connection", Message: err.Error()})
		return
	}
	if err := s.store.SetConnection(conn); err != nil {
		var dup *apperrors.ErrDuplicate
		if stderrors.As(err, &dup) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: "connection name already in use",
				Code:  "DUPLICATE_NAME",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to save connection", Message: err.Error()})
		return
	}

	s.auditEvent(logging.NewAuditEvent(logging.ConnectionUpdate, "update connection", logging.StatusSuccess).
		WithResource(conn.ID).
		WithIPAddress(c.ClientIP()))
	c.JSON(http.StatusOK, conn)
}

func (s *Server) handleDeleteConnection(c *gin.Context) {
	id := c.Param("id")
	if !s.store.DeleteConnection(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
		return
	}
	s.auditEvent(logging.NewAuditEvent(logging.ConnectionDelete, "delete connection", logging.StatusSuccess).
		WithResource(id).
		WithIPAddress(c.ClientIP()))
	c.Status(http.StatusNoContent)
}

// beginAuthorization stores a pending auth state and returns it with
// the consent URL the seller must visit.
func (s *Server) beginAuthorization(conn *models.Connection, scopes []string, friendlyName string) (*models.AuthState, string, error) {
	if len(scopes) == 0 {
		scopes = models.DefaultUserScopes
	}

	ttl := defaultAuthStateTTL
	if secs := s.store.Settings().GetInt(store.SettingAuthStateTTL, 0); secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	now := time.Now().UTC()
	st := &models.AuthState{
		State:        uuid.NewString(),
		UserID:       conn.UserID,
		ConnectionID: conn.ID,
		Scopes:       scopes,
		FriendlyName: friendlyName,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.store.SaveAuthState(st); err != nil {
		return nil, "", err
	}
	return st, s.oauth.BuildAuthorizationURL(conn, scopes, st.State), nil
}

func (s *Server) handleAuthorizeURL(c *gin.Context) {
	conn, ok := s.store.GetConnection(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
		return
	}
	if !conn.IsActive {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "connection is inactive", Code: "CONNECTION_INACTIVE"})
		return
	}

	var scopes []string
	if raw := c.Query("scopes"); raw != "" {
		scopes = strings.Split(raw, ",")
	}

	st, authURL, err := s.beginAuthorization(conn, scopes, c.Query("friendly_name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to save authorization state", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorization_url": authURL,
		"state":             st.State,
		"scopes":            st.Scopes,
		"expires_at":        st.ExpiresAt,
	})
}

// handleOAuthCallback finishes the interactive flow: eBay redirects the
// seller's browser here with an authorization code and our state.
func (s *Server) handleOAuthCallback(c *gin.Context) {
	if ebayErr := c.Query("error"); ebayErr != "" {
		desc := c.Query("error_description")
		if desc == "" {
			desc = ebayErr
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "authorization declined",
			Message: desc,
			Code:    "CONSENT_DENIED",
		})
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "code and state are required"})
		return
	}

	st, ok := s.store.ConsumeAuthState(state)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "unknown or expired state",
			Code:  "INVALID_STATE",
		})
		return
	}

	account, err := s.manager.CompleteAuthorization(c.Request.Context(), st, code)
	if err != nil {
		s.auditEvent(logging.NewAuditEvent(logging.AccountAuthorize, "oauth callback", logging.StatusFailure).
			WithResource(st.ConnectionID).
			WithError(err.Error()))
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "code exchange failed",
			Message: err.Error(),
		})
		return
	}

	s.auditEvent(logging.NewAuditEvent(logging.AccountAuthorize, "oauth callback", logging.StatusSuccess).
		WithAccountID(account.ID).
		WithResource(st.ConnectionID))
	c.JSON(http.StatusOK, account)
}

type autoAuthorizeRequest struct {
	Scopes       []string `json:"scopes"`
	FriendlyName string   `json:"friendly_name"`
}

// handleAutoAuthorize drives the whole consent flow headlessly using
// the eBay credentials stored on the connection.
func (s *Server) handleAutoAuthorize(c *gin.Context) {
	if s.authorizer == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "automated login is disabled",
			Code:  "BROWSER_DISABLED",
		})
		return
	}

	conn, ok := s.store.GetConnection(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
		return
	}
	if !conn.SupportsAutomatedLogin() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "connection has no stored eBay credentials",
			Code:  "NO_LOGIN_CREDENTIALS",
		})
		return
	}

	var req autoAuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	st, authURL, err := s.beginAuthorization(conn, req.Scopes, req.FriendlyName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to save authorization state", Message: err.Error()})
		return
	}

	code, err := s.authorizer.Authorize(c.Request.Context(), browserauth.LoginRequest{
		AuthURL:     authURL,
		Username:    conn.EbayUsername,
		Password:    conn.EbayPassword,
		RedirectURL: conn.RedirectURL,
	})
	if err != nil {
		stage := "unknown"
		var loginErr *apperrors.ErrAutomatedLogin
		if stderrors.As(err, &loginErr) {
			stage = string(loginErr.Stage)
		}
		if s.metrics != nil {
			s.metrics.RecordLoginAttempt("failure", stage)
		}
		s.auditEvent(logging.NewAuditEvent(logging.AccountAuthorize, "automated login", logging.StatusFailure).
			WithResource(conn.ID).
			WithError(err.Error()).
			WithDetails(map[string]interface{}{"stage": stage}))
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "automated login failed",
			Message: err.Error(),
			Code:    "LOGIN_" + strings.ToUpper(stage),
		})
		return
	}

	// The state is single-use even when we consumed it ourselves.
	consumed, ok := s.store.ConsumeAuthState(st.State)
	if !ok {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "authorization state already consumed", Code: "INVALID_STATE"})
		return
	}

	account, err := s.manager.CompleteAuthorization(c.Request.Context(), consumed, code)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "code exchange failed", Message: err.Error()})
		return
	}

	if s.metrics != nil {
		s.metrics.RecordLoginAttempt("success", "")
	}
	s.auditEvent(logging.NewAuditEvent(logging.AccountAuthorize, "automated login", logging.StatusSuccess).
		WithAccountID(account.ID).
		WithResource(conn.ID))
	c.JSON(http.StatusOK, account)
}

// auditEvent records asynchronously when an audit store is wired.
func (s *Server) auditEvent(ev *logging.AuditEvent) {
	if s.audit != nil {
		s.audit.SaveEventAsync(ev)
	}
}
