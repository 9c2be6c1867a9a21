// Package headers parses rate-limit information from eBay API
// response headers.
package headers

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimit is the per-application call allowance reported alongside
// an eBay Sell API response. Remaining is -1 when the header was
// absent, so a zero value is distinguishable from "not reported".
type RateLimit struct {
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// Reported reports whether the response carried any rate-limit data.
func (r RateLimit) Reported() bool {
	return r.Remaining >= 0 || r.Limit > 0
}

// ParseRateLimit reads eBay's rate-limit headers. eBay mirrors the
// common X-RateLimit-* convention on Sell API responses; Reset is
// epoch seconds.
func ParseRateLimit(h http.Header) RateLimit {
	rl := RateLimit{Remaining: -1}
	if h == nil {
		return rl
	}

	rl.Limit = parseIntHeader(h, "X-RateLimit-Limit", 0)
	rl.Remaining = parseIntHeader(h, "X-RateLimit-Remaining", -1)

	if epoch := parseIntHeader(h, "X-RateLimit-Reset", 0); epoch > 0 {
		rl.Reset = time.Unix(epoch, 0).UTC()
	}
	return rl
}

// RetryAfter reads a Retry-After header as either delta seconds or an
// HTTP date. Zero means no usable value.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	val := h.Get("Retry-After")
	if val == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(val, 10, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(val); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func parseIntHeader(h http.Header, key string, fallback int64) int64 {
	val := h.Get(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
