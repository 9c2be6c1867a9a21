package models

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// MaxTokensPerUser caps the number of non-deleted API tokens a single
// user may hold.
const MaxTokensPerUser = 10

// tokenPattern is the canonical API token format: a fixed prefix, an
// environment tag, and 32 hex characters of entropy.
var tokenPattern = regexp.MustCompile(`^ebay_(live|test)_[0-9a-f]{32}$`)

// TokenPermissions is the allow-list attached to an API token.
type TokenPermissions struct {
	// Endpoints lists route identifiers the token may invoke. Exact
	// membership only, no wildcards.
	Endpoints []string `json:"endpoints"`
	// RateLimit is the maximum number of requests per hour. Zero means
	// unlimited.
	RateLimit int `json:"rate_limit"`
}

// Allows reports whether the endpoint identifier is on the allow-list.
func (p TokenPermissions) Allows(endpointID string) bool {
	for _, e := range p.Endpoints {
		if e == endpointID {
			return true
		}
	}
	return false
}

// APIToken is an internal bearer credential issued to callers of the
// proxy API. Only the SHA-256 hash of the token value is stored; the raw
// value is shown once at creation and masked everywhere else.
type APIToken struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Name         string           `json:"name"`
	TokenHash    string           `json:"-"`
	TokenMasked  string           `json:"token"`
	Permissions  TokenPermissions `json:"permissions"`
	ConnectionID string           `json:"connection_id,omitempty"`
	IsActive     bool             `json:"is_active"`
	IsDeleted    bool             `json:"is_deleted"`
	DeletedAt    *time.Time       `json:"-"`
	LastUsedAt   *time.Time       `json:"last_used_at,omitempty"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Usable reports whether the token may authenticate a request at the
// given instant.
func (t *APIToken) Usable(now time.Time) bool {
	if !t.IsActive || t.IsDeleted {
		return false
	}
	if t.ExpiresAt != nil && !now.Before(*t.ExpiresAt) {
		return false
	}
	return true
}

// GenerateToken creates a new raw API token value for the environment.
// Production connections issue ebay_live_ tokens, sandbox issues
// ebay_test_.
func GenerateToken(env Environment) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token entropy: %w", err)
	}
	tag := "live"
	if env == EnvironmentSandbox {
		tag = "test"
	}
	return fmt.Sprintf("ebay_%s_%s", tag, hex.EncodeToString(buf)), nil
}

// ValidTokenFormat reports whether the raw value matches the canonical
// token format. Used to reject malformed bearer values before any
// store lookup.
func ValidTokenFormat(raw string) bool {
	return tokenPattern.MatchString(raw)
}

// HashToken returns the hex SHA-256 digest used as the storage key for
// a raw token value.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// HashEqual compares two token hashes in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskToken masks the middle of a raw token for display, keeping the
// prefix and the last four characters.
func MaskToken(raw string) string {
	if !ValidTokenFormat(raw) {
		if len(raw) <= 4 {
			return "****"
		}
		return raw[:2] + "****" + raw[len(raw)-2:]
	}
	// ebay_live_<32 hex> -> ebay_live_****cdef
	prefixLen := len(raw) - 32
	return raw[:prefixLen] + "****" + raw[len(raw)-4:]
}
