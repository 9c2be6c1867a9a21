package models

import (
	"fmt"
	"time"
)

// AccountStatus represents the lifecycle state of a seller account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// ExpiryBuffer is subtracted from a token's expiry when deciding whether
// it is still usable. A token inside the buffer is refreshed even though
// eBay would still accept it, so a proxied call never races the real
// expiry mid-flight.
const ExpiryBuffer = 5 * time.Minute

// SellerAccount is one authorized eBay seller identity: the OAuth
// access/refresh token pair obtained for a (user, connection) pair.
// AccessToken and RefreshToken are encrypted at rest.
type SellerAccount struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	ConnectionID string        `json:"connection_id"`
	EbayUserID   string        `json:"ebay_user_id,omitempty"`
	EbayUsername string        `json:"ebay_username,omitempty"`
	FriendlyName string        `json:"friendly_name"`
	AccessToken  string        `json:"-"`
	RefreshToken string        `json:"-"`
	TokenType    string        `json:"token_type"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Status       AccountStatus `json:"status"`
	Scopes       []string      `json:"user_selected_scopes"`
	Tags         []string      `json:"tags,omitempty"`
	LastUsedAt   *time.Time    `json:"last_used_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Validate checks required fields.
func (a *SellerAccount) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if a.ConnectionID == "" {
		return fmt.Errorf("connection ID is required")
	}
	if a.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	if a.ExpiresAt.IsZero() {
		return fmt.Errorf("expiry is required")
	}
	return nil
}

// IsActive reports whether the account may be used for proxied calls.
func (a *SellerAccount) IsActive() bool {
	return a.Status == AccountStatusActive
}

// IsExpired reports whether the access token needs refreshing at the
// given instant. The buffer, not the literal expiry, is the trigger.
func (a *SellerAccount) IsExpired(now time.Time) bool {
	if a.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(a.ExpiresAt.Add(-ExpiryBuffer))
}

// HasRefreshToken reports whether a refresh grant is possible. App-only
// tokens never carry one and fall back to the client-credentials grant.
func (a *SellerAccount) HasRefreshToken() bool {
	return a.RefreshToken != ""
}

// HasScope reports whether the user granted the given scope ID during
// consent.
func (a *SellerAccount) HasScope(scopeID string) bool {
	for _, s := range a.Scopes {
		if s == scopeID {
			return true
		}
	}
	return false
}

// MissingScopes returns the subset of required scope IDs the account
// does not hold, in the order required.
func (a *SellerAccount) MissingScopes(required []string) []string {
	var missing []string
	for _, id := range required {
		if !a.HasScope(id) {
			missing = append(missing, id)
		}
	}
	return missing
}
