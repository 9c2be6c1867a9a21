package logging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// API-token authentication outcomes
	AuthSuccess AuditEventType = "AUTH_SUCCESS"
	AuthFailure AuditEventType = "AUTH_FAILURE"

	// API-token lifecycle
	TokenIssue  AuditEventType = "TOKEN_ISSUE"
	TokenUpdate AuditEventType = "TOKEN_UPDATE"
	TokenRevoke AuditEventType = "TOKEN_REVOKE"

	// Connection lifecycle
	ConnectionCreate AuditEventType = "CONNECTION_CREATE"
	ConnectionUpdate AuditEventType = "CONNECTION_UPDATE"
	ConnectionDelete AuditEventType = "CONNECTION_DELETE"

	// eBay account and OAuth lifecycle
	AccountAuthorize AuditEventType = "ACCOUNT_AUTHORIZE"
	AccountRevoke    AuditEventType = "ACCOUNT_REVOKE"
	TokenRefreshed   AuditEventType = "TOKEN_REFRESH"
	ReauthRequired   AuditEventType = "REAUTH_REQUIRED"

	// Proxied eBay calls
	ProxyCall      AuditEventType = "PROXY_CALL"
	PipelineReject AuditEventType = "PIPELINE_REJECT"
)

// AuditSeverity represents the severity level of an audit event
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityError    AuditSeverity = "error"
	SeverityCritical AuditSeverity = "critical"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	StatusSuccess AuditStatus = "success"
	StatusFailure AuditStatus = "failure"
)

// AuditEvent represents a security or operational audit event
type AuditEvent struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	EventType    AuditEventType         `json:"event_type"`
	Severity     AuditSeverity          `json:"severity"`
	TokenID      string                 `json:"token_id,omitempty"`
	AccountID    string                 `json:"account_id,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	Action       string                 `json:"action"`
	Resource     string                 `json:"resource"`
	Status       AuditStatus            `json:"status"`
	Details      map[string]interface{} `json:"details,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// NewAuditEvent creates a new audit event with a generated ID and timestamp
func NewAuditEvent(eventType AuditEventType, action string, status AuditStatus) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Action:    action,
		Status:    status,
		Severity:  SeverityInfo,
	}
}

// WithTokenID sets the API token ID for the audit event
func (e *AuditEvent) WithTokenID(tokenID string) *AuditEvent {
	e.TokenID = tokenID
	return e
}

// WithAccountID sets the seller account ID for the audit event
func (e *AuditEvent) WithAccountID(accountID string) *AuditEvent {
	e.AccountID = accountID
	return e
}

// WithIPAddress sets the caller IP address for the audit event
func (e *AuditEvent) WithIPAddress(ipAddress string) *AuditEvent {
	e.IPAddress = ipAddress
	return e
}

// WithResource sets the resource for the audit event
func (e *AuditEvent) WithResource(resource string) *AuditEvent {
	e.Resource = resource
	return e
}

// WithSeverity sets the severity for the audit event
func (e *AuditEvent) WithSeverity(severity AuditSeverity) *AuditEvent {
	e.Severity = severity
	return e
}

// WithDetails sets the details map for the audit event
func (e *AuditEvent) WithDetails(details map[string]interface{}) *AuditEvent {
	e.Details = details
	return e
}

// WithError records an error message and marks the event as failed
func (e *AuditEvent) WithError(errorMessage string) *AuditEvent {
	e.ErrorMessage = errorMessage
	e.Status = StatusFailure
	if e.Severity == SeverityInfo {
		e.Severity = SeverityError
	}
	return e
}

// ToJSON converts the audit event to a JSON string
func (e *AuditEvent) ToJSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to marshal audit event: %v"}`, err)
	}
	return string(data)
}

// ParseAuditEvent parses a JSON string into an AuditEvent
func ParseAuditEvent(data string) (*AuditEvent, error) {
	var event AuditEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("failed to parse audit event: %w", err)
	}
	return &event, nil
}
