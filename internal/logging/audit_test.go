package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuditEvent(t *testing.T) {
	event := NewAuditEvent(TokenIssue, "POST /api/tokens", StatusSuccess)

	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, TokenIssue, event.EventType)
	assert.Equal(t, "POST /api/tokens", event.Action)
	assert.Equal(t, StatusSuccess, event.Status)
	assert.Equal(t, SeverityInfo, event.Severity)
}

func TestAuditEventBuilders(t *testing.T) {
	event := NewAuditEvent(ProxyCall, "GET /api/ebay/acct-1/inventory", StatusSuccess).
		WithTokenID("tok-1").
		WithAccountID("acct-1").
		WithIPAddress("10.0.0.5").
		WithResource("/sell/inventory/v1/inventory_item").
		WithSeverity(SeverityWarning).
		WithDetails(map[string]interface{}{"upstream_status": 200})

	assert.Equal(t, "tok-1", event.TokenID)
	assert.Equal(t, "acct-1", event.AccountID)
	assert.Equal(t, "10.0.0.5", event.IPAddress)
	assert.Equal(t, "/sell/inventory/v1/inventory_item", event.Resource)
	assert.Equal(t, SeverityWarning, event.Severity)
	assert.Equal(t, 200, event.Details["upstream_status"])
}

func TestAuditEventWithError(t *testing.T) {
	event := NewAuditEvent(TokenRefreshed, "refresh", StatusSuccess).
		WithError("invalid_grant: refresh token revoked")

	assert.Equal(t, StatusFailure, event.Status)
	assert.Equal(t, SeverityError, event.Severity)
	assert.Equal(t, "invalid_grant: refresh token revoked", event.ErrorMessage)

	// explicit severity survives the error flip
	critical := NewAuditEvent(ReauthRequired, "refresh", StatusSuccess).
		WithSeverity(SeverityCritical).
		WithError("reauthorization required")
	assert.Equal(t, SeverityCritical, critical.Severity)
}

func TestAuditEventJSONRoundTrip(t *testing.T) {
	event := NewAuditEvent(PipelineReject, "GET /api/ebay/acct-1/orders", StatusFailure).
		WithTokenID("tok-2").
		WithDetails(map[string]interface{}{"stage": "scope"})
	event.Timestamp = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	parsed, err := ParseAuditEvent(event.ToJSON())
	require.NoError(t, err)
	assert.Equal(t, event.ID, parsed.ID)
	assert.Equal(t, PipelineReject, parsed.EventType)
	assert.Equal(t, "tok-2", parsed.TokenID)
	assert.Equal(t, "scope", parsed.Details["stage"])
	assert.True(t, event.Timestamp.Equal(parsed.Timestamp))
}

func TestParseAuditEventInvalid(t *testing.T) {
	_, err := ParseAuditEvent("{not json")
	assert.Error(t, err)
}
