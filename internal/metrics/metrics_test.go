package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsRecordingAndHandler(t *testing.T) {
	m := NewMetrics("test")

	m.RecordRequestLatency("/health", "GET", "200", 0.01)
	m.RecordHTTPRequest("/health", "GET", "200")
	m.IncHTTPRequestsInFlight()
	m.DecHTTPRequestsInFlight()
	m.RecordError("timeout", "/health", "GET")
	m.RecordTokenRefresh(RefreshTriggerLazy, RefreshOutcomeRefreshed)
	m.RecordTokenRefresh(RefreshTriggerProactive, RefreshOutcomeReauth)
	m.RecordPipelineRejection("scope")
	m.RecordProxyCall("acct-1", "GET", "200")
	m.RecordProxyLatency("acct-1", "GET", 0.12)
	m.RecordLoginAttempt("success", "redirect")
	m.SetAccountTokenTTL("acct-1", "production", 5400)
	m.SetActiveAPITokens("live", 3)
	m.SetRateLimitRemaining("acct-1", 4850)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "test_request_latency_seconds") {
		t.Fatalf("expected metrics output to contain request latency metric")
	}
	if !strings.Contains(body, "test_token_refreshes_total") {
		t.Fatalf("expected metrics output to contain token refresh metric")
	}
	if !strings.Contains(body, "test_pipeline_rejections_total") {
		t.Fatalf("expected metrics output to contain pipeline rejection metric")
	}

	if _, err := m.registry.Gather(); err != nil {
		t.Fatalf("expected gather to succeed: %v", err)
	}
}
