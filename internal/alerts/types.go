package alerts

import (
	"fmt"
	"time"
)

// Severity ranks how urgently an operator should react.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertType identifies what went wrong in the token lifecycle.
type AlertType string

const (
	// AlertTypeReauthRequired fires when a refresh token is revoked or
	// expired and only a new consent flow can recover the account.
	AlertTypeReauthRequired AlertType = "reauth_required"
	// AlertTypeLoginFailure fires when the headless authorization flow
	// fails at any stage.
	AlertTypeLoginFailure AlertType = "login_failure"
	// AlertTypeRefreshFailure fires on transient refresh errors.
	AlertTypeRefreshFailure AlertType = "refresh_failure"
	// AlertTypeRateLimited fires when eBay reports an exhausted call
	// quota for an account.
	AlertTypeRateLimited AlertType = "rate_limited"
)

// Alert is one notification about an account.
type Alert struct {
	AccountID string
	Type      AlertType
	Severity  Severity
	Message   string
	Timestamp time.Time
	Metadata  map[string]string
}

// Key groups repeat alerts for deduplication: same account, same
// failure class.
func (a *Alert) Key() string {
	return a.AccountID + ":" + string(a.Type)
}

// Render formats the alert for delivery.
func (a *Alert) Render() string {
	header := "ℹ️"
	switch a.Severity {
	case SeverityWarning:
		header = "⚠️"
	case SeverityCritical:
		header = "🚨"
	}
	text := fmt.Sprintf("%s *%s*\nAccount: `%s`\n%s", header, a.Type, a.AccountID, a.Message)
	for k, v := range a.Metadata {
		text += fmt.Sprintf("\n%s: %s", k, v)
	}
	return text
}

// sentRecord tracks the last delivery of an alert key.
type sentRecord struct {
	sentAt     time.Time
	suppressed int
}
