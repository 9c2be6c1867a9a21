package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebaygate/ebaygate/internal/browserauth"
	"github.com/ebaygate/ebaygate/internal/config"
	"github.com/ebaygate/ebaygate/internal/models"
	"github.com/ebaygate/ebaygate/internal/oauth"
	"github.com/ebaygate/ebaygate/internal/store"
	"github.com/ebaygate/ebaygate/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const adminKey = "admin-secret-key"

type fixture struct {
	srv        *Server
	store      store.Store
	oauthCalls *int
}

// fakeAuthorizer satisfies browserauth.Authorizer without a browser.
type fakeAuthorizer struct {
	code string
	err  error
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, req browserauth.LoginRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.code, nil
}

// newFixture builds a server on a memory store with the OAuth client
// pointed at a stub token endpoint that always succeeds.
func newFixture(t *testing.T, mutate func(*config.Config, *Deps)) *fixture {
	t.Helper()

	calls := 0
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = r.ParseForm()
		resp := map[string]interface{}{
			"access_token": "v^1.1#minted",
			"token_type":   "Bearer",
			"expires_in":   7200,
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			resp["refresh_token"] = "v^1.1#refresh"
			resp["refresh_token_expires_in"] = 47304000
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(tokenSrv.Close)

	oc := oauth.NewClient(oauth.WithEndpoints(func(models.Environment) oauth.Endpoints {
		return oauth.Endpoints{
			Token:     tokenSrv.URL + "/identity/v1/oauth2/token",
			Authorize: tokenSrv.URL + "/oauth2/authorize",
		}
	}))

	st := store.NewMemoryStore()
	mgr := token.NewManager(st, oc)

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", HTTPPort: 8080, ShutdownTimeout: 5 * time.Second},
		API:    config.APIConfig{AdminKeys: []string{adminKey}, KeyHeader: "X-API-Key"},
	}
	deps := Deps{Store: st, Manager: mgr, OAuth: oc}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	return &fixture{srv: NewServer(cfg, deps), store: st, oauthCalls: &calls}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", adminKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)
	return w
}

func (f *fixture) seedUser(t *testing.T) *models.User {
	t.Helper()
	u := &models.User{ID: "user-1", Email: "seller@example.com", PasswordHash: "x", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, f.store.SetUser(u))
	return u
}

func (f *fixture) seedConnection(t *testing.T, withLogin bool) *models.Connection {
	t.Helper()
	conn := &models.Connection{
		ID:           "conn-1",
		UserID:       "user-1",
		Name:         "prod app",
		ClientID:     "client-abc",
		ClientSecret: "secret-xyz",
		RedirectURL:  "https://example.com/callback",
		Environment:  models.EnvironmentProduction,
		IsActive:     true,
	}
	if withLogin {
		conn.EbayUsername = "seller"
		conn.EbayPassword = "hunter2"
	}
	require.NoError(t, f.store.SetConnection(conn))
	return conn
}

func (f *fixture) seedAccount(t *testing.T, expiresIn time.Duration) *models.SellerAccount {
	t.Helper()
	acct := &models.SellerAccount{
		ID:           "acct-1",
		UserID:       "user-1",
		ConnectionID: "conn-1",
		FriendlyName: "Main store",
		AccessToken:  "v^1.1#stored",
		RefreshToken: "v^1.1#refresh",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(expiresIn),
		Status:       models.AccountStatusActive,
		Scopes:       []string{models.ScopeBase, models.ScopeSellInventory, models.ScopeSellAccount},
	}
	require.NoError(t, f.store.SetAccount(acct))
	return acct
}

func (f *fixture) seedAPIToken(t *testing.T, endpoints ...string) string {
	t.Helper()
	raw, err := models.GenerateToken(models.EnvironmentProduction)
	require.NoError(t, err)
	tok := &models.APIToken{
		ID:          "tok-1",
		UserID:      "user-1",
		Name:        "ci token",
		TokenHash:   models.HashToken(raw),
		TokenMasked: models.MaskToken(raw),
		Permissions: models.TokenPermissions{Endpoints: endpoints},
		IsActive:    true,
	}
	require.NoError(t, f.store.SetAPIToken(tok))
	return raw
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/health", nil, map[string]string{"X-API-Key": ""})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestAdminKeyRequired(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/api/connections", nil, map[string]string{"X-API-Key": ""})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_API_KEY")

	w = f.do(t, http.MethodGet, "/api/connections", nil, map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_API_KEY")

	w = f.do(t, http.MethodGet, "/api/connections", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminKeyBypassWhenUnconfigured(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config, _ *Deps) {
		cfg.API.AdminKeys = nil
	})
	w := f.do(t, http.MethodGet, "/api/connections", nil, map[string]string{"X-API-Key": ""})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMaskAPIKeys(t *testing.T) {
	masked := MaskAPIKeys([]string{"abc", "longer-admin-key"})
	assert.Equal(t, []string{"***", "long...-key"}, masked)
}

func TestCreateAndPatchConnection(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t)

	w := f.do(t, http.MethodPost, "/api/connections", gin.H{
		"user_id":       "user-1",
		"name":          "prod app",
		"client_id":     "client-abc",
		"client_secret": "secret-xyz",
		"redirect_url":  "https://example.com/callback",
		"environment":   "production",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-xyz")

	var created models.Connection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = f.do(t, http.MethodPatch, "/api/connections/"+created.ID, gin.H{
		"name":          "renamed",
		"client_secret": "",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	stored, ok := f.store.GetConnection(created.ID)
	require.True(t, ok)
	assert.Equal(t, "renamed", stored.Name)
	// Empty patch value must not blank the stored secret.
	assert.Equal(t, "secret-xyz", stored.ClientSecret)
}

func TestCreateConnectionRejectsDuplicateName(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t)
	f.seedConnection(t, false)

	w := f.do(t, http.MethodPost, "/api/connections", gin.H{
		"user_id":       "user-1",
		"name":          "prod app",
		"client_id":     "client-other",
		"client_secret": "secret-other",
		"redirect_url":  "https://example.com/callback",
		"environment":   "production",
	}, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "DUPLICATE_NAME")
	assert.Len(t, f.store.ListConnections("user-1"), 1)
}

func TestAuthorizeURLSavesState(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t)
	f.seedConnection(t, false)

	w := f.do(t, http.MethodGet, "/api/connections/conn-1/authorize-url?friendly_name=Main", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AuthorizationURL string   `json:"authorization_url"`
		State            string   `json:"state"`
		Scopes           []string `json:"scopes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.AuthorizationURL, "client_id=client-abc")
	assert.Contains(t, resp.AuthorizationURL, "state="+resp.State)
	assert.Equal(t, models.DefaultUserScopes, resp.Scopes)

	st, ok := f.store.ConsumeAuthState(resp.State)
	require.True(t, ok)
	assert.Equal(t, "conn-1", st.ConnectionID)
	assert.Equal(t, "Main", st.FriendlyName)
}

func TestOAuthCallbackCompletesAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t)
	f.seedConnection(t, false)

	w := f.do(t, http.MethodGet, "/api/connections/conn-1/authorize-url", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var begin struct {
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &begin))

	// Callback carries no admin key, as the seller's browser would.
	w = f.do(t, http.MethodGet, "/api/oauth/callback?code=auth-code&state="+begin.State, nil,
		map[string]string{"X-API-Key": ""})
	require.Equal(t, http.StatusOK, w.Code)

	var account models.SellerAccount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	stored, ok := f.store.GetAccount(account.ID)
	require.True(t, ok)
	assert.Equal(t, "v^1.1#minted", stored.AccessToken)

	// States are single-use.
	w = f.do(t, http.MethodGet, "/api/oauth/callback?code=auth-code&state="+begin.State, nil,
		map[string]string{"X-API-Key": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_STATE")
}

func TestOAuthCallbackConsentDenied(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/api/oauth/callback?error=access_denied&error_description=the+user+declined", nil,
		map[string]string{"X-API-Key": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "CONSENT_DENIED")
	assert.Contains(t, w.Body.String(), "the user declined")
}

func TestAutoAuthorize(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, deps *Deps) {
		deps.Authorizer = &fakeAuthorizer{code: "headless-code"}
	})
	f.seedUser(t)
	f.seedConnection(t, true)

	w := f.do(t, http.MethodPost, "/api/connections/conn-1/auto-authorize", gin.H{
		"friendly_name": "Headless store",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var account models.SellerAccount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	assert.Equal(t, "Headless store", account.FriendlyName)
}

func TestAutoAuthorizeWithoutCredentials(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, deps *Deps) {
		deps.Authorizer = &fakeAuthorizer{code: "unused"}
	})
	f.seedUser(t)
	f.seedConnection(t, false)

	w := f.do(t, http.MethodPost, "/api/connections/conn-1/auto-authorize", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "NO_LOGIN_CREDENTIALS")
}

func TestAutoAuthorizeDisabled(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t)
	f.seedConnection(t, true)

	w := f.do(t, http.MethodPost, "/api/connections/conn-1/auto-authorize", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "BROWSER_DISABLED")
}

func TestTokenLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t)

	w := f.do(t, http.MethodPost, "/api/tokens", gin.H{
		"user_id":     "user-1",
		"name":        "ci token",
		"permissions": gin.H{"endpoints": []string{"inventory"}, "rate_limit": 100},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Token    string           `json:"token"`
		APIToken models.APIToken  `json:"api_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, models.ValidTokenFormat(created.Token))
	assert.Contains(t, created.APIToken.TokenMasked, "****")

	// Listing never exposes the raw value.
	w = f.do(t, http.MethodGet, "/api/tokens?user_id=user-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), created.Token)

	w = f.do(t, http.MethodDelete, "/api/tokens/"+created.APIToken.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodDelete, "/api/tokens/"+created.APIToken.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenCreationCap(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t)

	for i := 0; i < models.MaxTokensPerUser; i++ {
		raw, err := models.GenerateToken(models.EnvironmentProduction)
		require.NoError(t, err)
		require.NoError(t, f.store.SetAPIToken(&models.APIToken{
			ID:        fmt.Sprintf("tok-%d", i),
			UserID:    "user-1",
			Name:      fmt.Sprintf("token %d", i),
			TokenHash: models.HashToken(raw),
			IsActive:  true,
		}))
	}

	w := f.do(t, http.MethodPost, "/api/tokens", gin.H{
		"user_id": "user-1",
		"name":    "one too many",
	}, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_LIMIT")
}

func TestAccountRefreshEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t)
	f.seedConnection(t, false)
	f.seedAccount(t, 2*time.Hour)

	w := f.do(t, http.MethodPost, "/api/accounts/acct-1/refresh", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	stored, ok := f.store.GetAccount("acct-1")
	require.True(t, ok)
	assert.Equal(t, "v^1.1#minted", stored.AccessToken)

	w = f.do(t, http.MethodPost, "/api/accounts/nope/refresh", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRevokeAccount(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t)
	f.seedConnection(t, false)
	f.seedAccount(t, 2*time.Hour)

	w := f.do(t, http.MethodDelete, "/api/accounts/acct-1", nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/accounts/acct-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/users", gin.H{
		"email":    "ops@example.com",
		"password": "correct horse battery",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "correct horse")

	// Duplicate email is rejected.
	w = f.do(t, http.MethodPost, "/api/users", gin.H{
		"email":    "ops@example.com",
		"password": "another password",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
