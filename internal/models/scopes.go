package models

// Scope is one eBay OAuth permission URL with the metadata surfaced in
// "missing scope" error payloads.
type Scope struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Operation is a logical proxy operation checked against an account's
// granted scopes.
type Operation string

const (
	OpManageInventory   Operation = "MANAGE_INVENTORY"
	OpManageAccount     Operation = "MANAGE_ACCOUNT"
	OpManageFulfillment Operation = "MANAGE_FULFILLMENT"
	OpReadIdentity      Operation = "READ_IDENTITY"
)

// Scope IDs.
const (
	ScopeBase             = "api_scope"
	ScopeSellInventory    = "sell_inventory"
	ScopeSellAccount      = "sell_account"
	ScopeSellFulfillment  = "sell_fulfillment"
	ScopeIdentityReadonly = "identity_readonly"
)

// scopeCatalog maps scope IDs to their definitions. URLs are the
// production consent URLs; sandbox accepts the same values.
var scopeCatalog = map[string]Scope{
	ScopeBase: {
		ID:          ScopeBase,
		URL:         "https://api.ebay.com/oauth/api_scope",
		Name:        "Basic API access",
		Description: "View public data from eBay",
	},
	ScopeSellInventory: {
		ID:          ScopeSellInventory,
		URL:         "https://api.ebay.com/oauth/api_scope/sell.inventory",
		Name:        "Sell Inventory",
		Description: "Create and manage inventory items, offers, and locations",
	},
	ScopeSellAccount: {
		ID:          ScopeSellAccount,
		URL:         "https://api.ebay.com/oauth/api_scope/sell.account",
		Name:        "Sell Account",
		Description: "View and manage business policies and account settings",
	},
	ScopeSellFulfillment: {
		ID:          ScopeSellFulfillment,
		URL:         "https://api.ebay.com/oauth/api_scope/sell.fulfillment",
		Name:        "Sell Fulfillment",
		Description: "View and fulfill orders",
	},
	ScopeIdentityReadonly: {
		ID:          ScopeIdentityReadonly,
		URL:         "https://api.ebay.com/oauth/api_scope/commerce.identity.readonly",
		Name:        "Identity (read-only)",
		Description: "View the authorized user's eBay identity",
	},
}

// operationScopes maps each logical operation to the scope IDs it
// requires. Operations absent from this map skip the scope check.
var operationScopes = map[Operation][]string{
	OpManageInventory:   {ScopeSellInventory},
	OpManageAccount:     {ScopeSellAccount},
	OpManageFulfillment: {ScopeSellFulfillment},
	OpReadIdentity:      {ScopeIdentityReadonly},
}

// LookupScope returns the scope definition for an ID. Unknown IDs get a
// bare definition so error payloads never drop an entry.
func LookupScope(id string) Scope {
	if s, ok := scopeCatalog[id]; ok {
		return s
	}
	return Scope{ID: id, Name: id}
}

// RequiredScopes returns the scope IDs an operation needs, or nil when
// the operation carries no scope requirement.
func RequiredScopes(op Operation) []string {
	return operationScopes[op]
}

// ScopeURLs converts scope IDs to their consent URLs, skipping unknown
// IDs.
func ScopeURLs(ids []string) []string {
	var urls []string
	for _, id := range ids {
		if s, ok := scopeCatalog[id]; ok {
			urls = append(urls, s.URL)
		}
	}
	return urls
}

// ScopeIDsFromURLs converts granted consent URLs back to scope IDs,
// skipping URLs outside the catalog.
func ScopeIDsFromURLs(urls []string) []string {
	var ids []string
	for _, u := range urls {
		for id, s := range scopeCatalog {
			if s.URL == u {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

// DefaultUserScopes is the scope set requested during interactive
// authorization.
var DefaultUserScopes = []string{
	ScopeBase,
	ScopeSellInventory,
	ScopeSellAccount,
	ScopeSellFulfillment,
	ScopeIdentityReadonly,
}

// ApplicationScopes is the scope set requested for client-credentials
// tokens, widest first. FallbackApplicationScopes is retried when the
// full set is rejected.
var (
	ApplicationScopes         = []string{ScopeBase, ScopeSellInventory, ScopeSellAccount}
	FallbackApplicationScopes = []string{ScopeBase}
)
