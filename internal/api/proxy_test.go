package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebaygate/ebaygate/internal/config"
)

// newProxyFixture stubs the Sell API and routes proxied calls to it.
func newProxyFixture(t *testing.T, upstream http.HandlerFunc) *fixture {
	t.Helper()
	ebaySrv := httptest.NewServer(upstream)
	t.Cleanup(ebaySrv.Close)

	f := newFixture(t, func(_ *config.Config, deps *Deps) {
		deps.EbayBaseURL = ebaySrv.URL
	})
	f.seedUser(t)
	f.seedConnection(t, false)
	return f
}

func TestProxyInventoryForwardsStoredToken(t *testing.T) {
	var gotAuth, gotPath string
	f := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total":1,"inventoryItems":[{"sku":"SKU-1"}]}`))
	})
	f.seedAccount(t, 2*time.Hour)
	raw := f.seedAPIToken(t, EndpointInventory)

	w := f.do(t, http.MethodGet, "/api/ebay/acct-1/inventory", nil, map[string]string{
		"X-API-Key":     "",
		"Authorization": "Bearer " + raw,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bearer v^1.1#stored", gotAuth)
	assert.Equal(t, "/sell/inventory/v1/inventory_item", gotPath)
	assert.Contains(t, w.Body.String(), "SKU-1")
}

func TestProxyRefreshesExpiringTokenTransparently(t *testing.T) {
	var gotAuth string
	f := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total":0}`))
	})
	// Inside the expiry buffer, so the pipeline must refresh first.
	f.seedAccount(t, 2*time.Minute)
	raw := f.seedAPIToken(t, EndpointInventory)

	w := f.do(t, http.MethodGet, "/api/ebay/acct-1/inventory", nil, map[string]string{
		"X-API-Key":     "",
		"Authorization": "Bearer " + raw,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bearer v^1.1#minted", gotAuth)

	stored, ok := f.store.GetAccount("acct-1")
	require.True(t, ok)
	assert.Equal(t, "v^1.1#minted", stored.AccessToken)
}

func TestProxyRequiresAPIToken(t *testing.T) {
	f := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be reached without credentials")
	})
	f.seedAccount(t, 2*time.Hour)

	w := f.do(t, http.MethodGet, "/api/ebay/acct-1/inventory", nil, map[string]string{
		"X-API-Key": "",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProxyEndpointAllowList(t *testing.T) {
	f := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be reached for a disallowed endpoint")
	})
	f.seedAccount(t, 2*time.Hour)
	raw := f.seedAPIToken(t, EndpointInventory)

	w := f.do(t, http.MethodGet, "/api/ebay/acct-1/offers", nil, map[string]string{
		"X-API-Key":     "",
		"Authorization": "Bearer " + raw,
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"missing_endpoint":"offers"`)
}

func TestProxyPassesThroughUpstreamStatus(t *testing.T) {
	f := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"errorId":25710}]}`))
	})
	f.seedAccount(t, 2*time.Hour)
	raw := f.seedAPIToken(t, EndpointInventory)

	w := f.do(t, http.MethodGet, "/api/ebay/acct-1/inventory/MISSING-SKU", nil, map[string]string{
		"X-API-Key":     "",
		"Authorization": "Bearer " + raw,
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
	assert.Contains(t, w.Body.String(), "25710")
}

func TestProxyPoliciesRequireAccountScope(t *testing.T) {
	f := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sell/account/v1/return_policy", r.URL.Path)
		assert.Equal(t, "EBAY_US", r.URL.Query().Get("marketplace_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total":0,"returnPolicies":[]}`))
	})
	f.seedAccount(t, 2*time.Hour)
	raw := f.seedAPIToken(t, EndpointPolicies)

	w := f.do(t, http.MethodGet, "/api/ebay/acct-1/policies/return", nil, map[string]string{
		"X-API-Key":     "",
		"Authorization": "Bearer " + raw,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "returnPolicies")
}
