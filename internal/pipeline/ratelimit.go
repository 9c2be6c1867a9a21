package pipeline

import (
	"sync"
	"time"
)

// tokenLimiter enforces each API token's hourly request allowance
// with a fixed window per token.
type tokenLimiter struct {
	mu      sync.Mutex
	windows map[string]*requestWindow
	period  time.Duration
}

type requestWindow struct {
	count   int
	resetAt time.Time
}

func newTokenLimiter(period time.Duration) *tokenLimiter {
	return &tokenLimiter{
		windows: make(map[string]*requestWindow),
		period:  period,
	}
}

// allow counts one request against the token's window. When the
// window is exhausted it reports how long until the reset.
func (l *tokenLimiter) allow(tokenID string, limit int, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[tokenID]
	if !exists || !now.Before(w.resetAt) {
		l.windows[tokenID] = &requestWindow{count: 1, resetAt: now.Add(l.period)}
		l.sweep(now)
		return true, 0
	}

	if w.count >= limit {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

// sweep drops expired windows so revoked tokens do not accumulate.
// Called with the lock held, only on the window-rollover path.
func (l *tokenLimiter) sweep(now time.Time) {
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
		}
	}
}
