package models

import (
	"fmt"
	"time"
)

// Environment selects which eBay endpoint family a connection talks to.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// Valid reports whether the environment is one of the known values.
func (e Environment) Valid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// Connection represents one set of eBay developer app credentials.
// ClientSecret and EbayPassword are encrypted at rest; the store decrypts
// them on read so consumers always see plaintext.
type Connection struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	Name         string      `json:"name"`
	ClientID     string      `json:"client_id"`
	ClientSecret string      `json:"-"`
	DevID        string      `json:"dev_id,omitempty"`
	RedirectURL  string      `json:"redirect_url"`
	Environment  Environment `json:"environment"`
	EbayUsername string      `json:"ebay_username,omitempty"`
	EbayPassword string      `json:"-"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Validate checks that the connection carries everything the OAuth
// client needs.
func (c *Connection) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if c.Name == "" {
		return fmt.Errorf("connection name is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client secret is required")
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("redirect URL is required")
	}
	if !c.Environment.Valid() {
		return fmt.Errorf("environment must be %q or %q", EnvironmentSandbox, EnvironmentProduction)
	}
	return nil
}

// SupportsAutomatedLogin reports whether the connection stored eBay
// account credentials for the headless authorization fallback.
func (c *Connection) SupportsAutomatedLogin() bool {
	return c.EbayUsername != "" && c.EbayPassword != ""
}

// ConnectionPatch carries a partial update. Only non-nil fields
// overwrite the stored connection.
type ConnectionPatch struct {
	Name         *string      `json:"name,omitempty"`
	ClientID     *string      `json:"client_id,omitempty"`
	ClientSecret *string      `json:"client_secret,omitempty"`
	DevID        *string      `json:"dev_id,omitempty"`
	RedirectURL  *string      `json:"redirect_url,omitempty"`
	Environment  *Environment `json:"environment,omitempty"`
	EbayUsername *string      `json:"ebay_username,omitempty"`
	EbayPassword *string      `json:"ebay_password,omitempty"`
	IsActive     *bool        `json:"is_active,omitempty"`
}

// Apply overlays the patch onto the connection. Empty strings are
// treated as "not provided" so a partial form submit never blanks a
// stored credential.
func (p *ConnectionPatch) Apply(c *Connection) {
	if p.Name != nil && *p.Name != "" {
		c.Name = *p.Name
	}
	if p.ClientID != nil && *p.ClientID != "" {
		c.ClientID = *p.ClientID
	}
	if p.ClientSecret != nil && *p.ClientSecret != "" {
		c.ClientSecret = *p.ClientSecret
	}
	if p.DevID != nil && *p.DevID != "" {
		c.DevID = *p.DevID
	}
	if p.RedirectURL != nil && *p.RedirectURL != "" {
		c.RedirectURL = *p.RedirectURL
	}
	if p.Environment != nil && p.Environment.Valid() {
		c.Environment = *p.Environment
	}
	if p.EbayUsername != nil && *p.EbayUsername != "" {
		c.EbayUsername = *p.EbayUsername
	}
	if p.EbayPassword != nil && *p.EbayPassword != "" {
		c.EbayPassword = *p.EbayPassword
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
}
