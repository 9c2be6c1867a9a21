package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredScopes(t *testing.T) {
	assert.Equal(t, []string{ScopeSellInventory}, RequiredScopes(OpManageInventory))
	assert.Equal(t, []string{ScopeSellAccount}, RequiredScopes(OpManageAccount))
	assert.Nil(t, RequiredScopes(Operation("UNCHECKED_OP")))
}

func TestLookupScope(t *testing.T) {
	s := LookupScope(ScopeSellInventory)
	assert.Equal(t, "https://api.ebay.com/oauth/api_scope/sell.inventory", s.URL)
	assert.NotEmpty(t, s.Name)
	assert.NotEmpty(t, s.Description)

	// Unknown IDs still produce a displayable entry
	unknown := LookupScope("sell_unknown")
	assert.Equal(t, "sell_unknown", unknown.ID)
	assert.Equal(t, "sell_unknown", unknown.Name)
}

func TestScopeURLRoundTrip(t *testing.T) {
	ids := []string{ScopeBase, ScopeSellInventory, ScopeIdentityReadonly}

	urls := ScopeURLs(ids)
	require.Len(t, urls, 3)

	back := ScopeIDsFromURLs(urls)
	assert.Equal(t, ids, back)

	// Out-of-catalog URLs are dropped, not preserved
	back = ScopeIDsFromURLs(append(urls, "https://api.ebay.com/oauth/api_scope/sell.marketing"))
	assert.Equal(t, ids, back)
}

func TestConnectionPatch_Apply(t *testing.T) {
	conn := Connection{
		UserID:       "user-1",
		Name:         "prod",
		ClientID:     "client-a",
		ClientSecret: "secret-a",
		RedirectURL:  "https://example.com/cb",
		Environment:  EnvironmentProduction,
		IsActive:     true,
	}

	name := "prod-renamed"
	empty := ""
	inactive := false
	patch := ConnectionPatch{
		Name:         &name,
		ClientSecret: &empty, // empty string must not blank the secret
		IsActive:     &inactive,
	}
	patch.Apply(&conn)

	assert.Equal(t, "prod-renamed", conn.Name)
	assert.Equal(t, "secret-a", conn.ClientSecret)
	assert.False(t, conn.IsActive)
	assert.Equal(t, "client-a", conn.ClientID)
}
