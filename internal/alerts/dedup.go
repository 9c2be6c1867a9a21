package alerts

import (
	"sync"
	"time"
)

const defaultDedupWindow = 30 * time.Minute

// DedupStore suppresses repeats of the same alert key inside a sliding
// window, so a flapping account does not flood the chat.
type DedupStore struct {
	mu      sync.Mutex
	records map[string]*sentRecord
	window  time.Duration
}

func NewDedupStore(window time.Duration) *DedupStore {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &DedupStore{
		records: make(map[string]*sentRecord),
		window:  window,
	}
}

// ShouldSend reports whether the key is outside its window and, when
// suppressed, counts the skip. Sending callers must follow up with
// Record.
func (d *DedupStore) ShouldSend(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, exists := d.records[key]
	if exists && now.Sub(rec.sentAt) < d.window {
		rec.suppressed++
		return false
	}
	return true
}

// Record marks the key as delivered and returns how many repeats were
// suppressed since the previous delivery.
func (d *DedupStore) Record(key string, now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	suppressed := 0
	if rec, exists := d.records[key]; exists {
		suppressed = rec.suppressed
	}
	d.records[key] = &sentRecord{sentAt: now}
	return suppressed
}

// Sweep drops records older than the window. Called periodically by
// the service loop.
func (d *DedupStore) Sweep(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, rec := range d.records {
		if now.Sub(rec.sentAt) >= d.window {
			delete(d.records, key)
		}
	}
}

// Len reports the number of tracked keys.
func (d *DedupStore) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}
