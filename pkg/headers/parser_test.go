package headers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRateLimit(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "5000")
	h.Set("X-RateLimit-Remaining", "4999")
	h.Set("X-RateLimit-Reset", "1756350000")

	rl := ParseRateLimit(h)
	assert.True(t, rl.Reported())
	assert.Equal(t, int64(5000), rl.Limit)
	assert.Equal(t, int64(4999), rl.Remaining)
	assert.Equal(t, time.Unix(1756350000, 0).UTC(), rl.Reset)
}

func TestParseRateLimitAbsent(t *testing.T) {
	rl := ParseRateLimit(http.Header{})
	assert.False(t, rl.Reported())
	assert.Equal(t, int64(-1), rl.Remaining)
	assert.True(t, rl.Reset.IsZero())

	assert.False(t, ParseRateLimit(nil).Reported())
}

func TestParseRateLimitZeroRemaining(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "0")

	rl := ParseRateLimit(h)
	assert.True(t, rl.Reported())
	assert.Equal(t, int64(0), rl.Remaining)
}

func TestParseRateLimitGarbage(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "soon")

	rl := ParseRateLimit(h)
	assert.Equal(t, int64(-1), rl.Remaining)
}

func TestRetryAfterSeconds(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "120")
	assert.Equal(t, 2*time.Minute, RetryAfter(h, time.Now()))
}

func TestRetryAfterHTTPDate(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	h := http.Header{}
	h.Set("Retry-After", now.Add(90*time.Second).Format(http.TimeFormat))

	d := RetryAfter(h, now)
	assert.Equal(t, 90*time.Second, d)
}

func TestRetryAfterAbsentOrPast(t *testing.T) {
	assert.Zero(t, RetryAfter(http.Header{}, time.Now()))

	now := time.Now()
	h := http.Header{}
	h.Set("Retry-After", now.Add(-time.Hour).Format(http.TimeFormat))
	assert.Zero(t, RetryAfter(h, now))
}
