package alerts

import (
	"sync"
	"time"
)

const defaultRatePerMinute = 20

// Throttler is a token bucket over all outbound notifications,
// independent of deduplication. It protects the messaging API from
// bursts when many accounts fail at once.
type Throttler struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	bucketSize float64
	tokens     float64
	lastUpdate time.Time
}

func NewThrottler(ratePerMinute int) *Throttler {
	if ratePerMinute <= 0 {
		ratePerMinute = defaultRatePerMinute
	}
	return &Throttler{
		rate:       float64(ratePerMinute) / 60.0,
		bucketSize: float64(ratePerMinute),
		tokens:     float64(ratePerMinute),
		lastUpdate: time.Now(),
	}
}

// Allow consumes one token if available.
func (t *Throttler) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.lastUpdate).Seconds()
	t.tokens += elapsed * t.rate
	if t.tokens > t.bucketSize {
		t.tokens = t.bucketSize
	}
	t.lastUpdate = now

	if t.tokens >= 1 {
		t.tokens--
		return true
	}
	return false
}
