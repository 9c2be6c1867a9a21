package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/models"
)

// Endpoints holds the eBay OAuth endpoints for one environment.
type Endpoints struct {
	Token     string
	Authorize string
}

var productionEndpoints = Endpoints{
	Token:     "https://api.ebay.com/identity/v1/oauth2/token",
	Authorize: "https://auth.ebay.com/oauth2/authorize",
}

var sandboxEndpoints = Endpoints{
	Token:     "https://api.sandbox.ebay.com/identity/v1/oauth2/token",
	Authorize: "https://auth.sandbox.ebay.com/oauth2/authorize",
}

// EndpointsFor returns the OAuth endpoints for the environment.
func EndpointsFor(env models.Environment) Endpoints {
	if env == models.EnvironmentSandbox {
		return sandboxEndpoints
	}
	return productionEndpoints
}

// TokenResponse is eBay's token endpoint response. Error and
// ErrorDescription are only set on failure.
type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int    `json:"expires_in"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in,omitempty"`
	Error                 string `json:"error,omitempty"`
	ErrorDescription      string `json:"error_description,omitempty"`
}

// ExpiresAt converts the relative expiry to an absolute instant.
func (r *TokenResponse) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(r.ExpiresIn) * time.Second)
}

// Client talks to eBay's OAuth token endpoint. It carries no per-connection
// state; the connection's credentials ride on every call.
type Client struct {
	httpClient *http.Client
	logger     *logging.Logger

	// overrides for tests
	endpoints func(models.Environment) Endpoints
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithEndpoints overrides endpoint resolution. Used by tests to point at
// an httptest server.
func WithEndpoints(fn func(models.Environment) Endpoints) ClientOption {
	return func(c *Client) {
		c.endpoints = fn
	}
}

// NewClient creates an OAuth client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewLogger(),
		endpoints:  EndpointsFor,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildAuthorizationURL returns the hosted consent URL the seller must
// visit. Scopes are space-joined consent URLs; state ties the redirect
// back to a pending authorization.
func (c *Client) BuildAuthorizationURL(conn *models.Connection, scopeIDs []string, state string) string {
	endpoints := c.endpoints(conn.Environment)

	q := url.Values{}
	q.Set("client_id", conn.ClientID)
	q.Set("redirect_uri", conn.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(models.ScopeURLs(scopeIDs), " "))
	q.Set("state", state)

	return endpoints.Authorize + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for a user token pair.
func (c *Client) ExchangeCode(ctx context.Context, conn *models.Connection, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", conn.RedirectURL)

	return c.postToken(ctx, conn, "authorization_code", form)
}

// RefreshToken trades a refresh token for a fresh access token. Passing
// scope IDs narrows the grant; nil requests eBay's default (the original
// consent set).
func (c *Client) RefreshToken(ctx context.Context, conn *models.Connection, refreshToken string, scopeIDs []string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	if len(scopeIDs) > 0 {
		form.Set("scope", strings.Join(models.ScopeURLs(scopeIDs), " "))
	}

	return c.postToken(ctx, conn, "refresh_token", form)
}

// ApplicationToken obtains an app-only token via the client-credentials
// grant. If eBay rejects the full application scope set it retries once
// with the base scope alone. Returns the scope IDs actually granted.
func (c *Client) ApplicationToken(ctx context.Context, conn *models.Connection) (*TokenResponse, []string, error) {
	resp, err := c.clientCredentials(ctx, conn, models.ApplicationScopes)
	if err == nil {
		return resp, models.ApplicationScopes, nil
	}

	tokenErr, ok := errors.AsTokenEndpoint(err)
	if !ok || tokenErr.Code != "invalid_scope" {
		return nil, nil, err
	}

	c.logger.Warn("application scope set rejected, retrying with base scope",
		"connection_id", conn.ID, "error", tokenErr.Description)

	resp, err = c.clientCredentials(ctx, conn, models.FallbackApplicationScopes)
	if err != nil {
		return nil, nil, err
	}
	return resp, models.FallbackApplicationScopes, nil
}

func (c *Client) clientCredentials(ctx context.Context, conn *models.Connection, scopeIDs []string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", strings.Join(models.ScopeURLs(scopeIDs), " "))

	return c.postToken(ctx, conn, "client_credentials", form)
}

func (c *Client) postToken(ctx context.Context, conn *models.Connection, grant string, form url.Values) (*TokenResponse, error) {
	endpoints := c.endpoints(conn.Environment)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoints.Token, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basicAuth(conn.ClientID, conn.ClientSecret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &errors.ErrTokenEndpoint{
			Grant:       grant,
			StatusCode:  resp.StatusCode,
			Description: "unparseable response: " + truncate(string(body), 200),
		}
	}

	if resp.StatusCode >= 300 || tokenResp.Error != "" {
		return nil, &errors.ErrTokenEndpoint{
			Grant:       grant,
			StatusCode:  resp.StatusCode,
			Code:        tokenResp.Error,
			Description: tokenResp.ErrorDescription,
		}
	}

	if tokenResp.AccessToken == "" {
		return nil, &errors.ErrTokenEndpoint{
			Grant:       grant,
			StatusCode:  resp.StatusCode,
			Description: "empty access token",
		}
	}

	c.logger.Debug("token grant succeeded",
		"grant", grant,
		"connection_id", conn.ID,
		"expires_in", tokenResp.ExpiresIn)

	return &tokenResp, nil
}

func basicAuth(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
