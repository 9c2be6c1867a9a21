package models

import "time"

// AuthState is a pending OAuth authorization. The state parameter ties
// eBay's consent redirect back to the connection that started it. States
// are single-use and expire quickly.
type AuthState struct {
	State        string    `json:"state"`
	UserID       string    `json:"user_id"`
	ConnectionID string    `json:"connection_id"`
	Scopes       []string  `json:"scopes"`
	FriendlyName string    `json:"friendly_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the pending authorization has lapsed.
func (s *AuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
