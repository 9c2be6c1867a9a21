// Package cleanup enforces the retention rules: revoked API tokens are
// purged after a grace period, stale pending authorizations disappear,
// and the audit log is trimmed to its retention window.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/store"
)

const (
	defaultInterval       = time.Hour
	defaultAuditRetention = 30 * 24 * time.Hour
	defaultTokenGrace     = 7 * 24 * time.Hour
)

// Config tunes the periodic sweep.
type Config struct {
	Interval          time.Duration
	AuditRetention    time.Duration
	DeletedTokenGrace time.Duration
}

// Result summarizes one task inside a sweep.
type Result struct {
	Task    string        `json:"task"`
	Removed int64         `json:"removed"`
	Took    time.Duration `json:"took"`
	Err     string        `json:"error,omitempty"`
}

// Stats is a snapshot of the manager's lifetime counters.
type Stats struct {
	Runs         int       `json:"runs"`
	TotalRemoved int64     `json:"total_removed"`
	LastRunAt    time.Time `json:"last_run_at"`
	LastResults  []Result  `json:"last_results"`
}

// Manager runs the retention sweep on an interval.
type Manager struct {
	store  store.Store
	audit  logging.AuditStore
	logger *logging.Logger
	cfg    Config

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	stats   Stats
}

type Option func(*Manager)

func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithAuditStore enables audit log trimming.
func WithAuditStore(a logging.AuditStore) Option {
	return func(m *Manager) { m.audit = a }
}

func NewManager(st store.Store, cfg Config, opts ...Option) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.AuditRetention <= 0 {
		cfg.AuditRetention = defaultAuditRetention
	}
	if cfg.DeletedTokenGrace <= 0 {
		cfg.DeletedTokenGrace = defaultTokenGrace
	}
	m := &Manager{store: st, cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the periodic sweep. The first sweep waits one full
// interval; startup is never delayed by retention work.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop()
}

// Stop halts the sweep loop, waiting for an in-flight run.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()
	<-done
}

func (m *Manager) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.RunOnce(context.Background())
		}
	}
}

// RunOnce executes every retention task and records the outcome.
func (m *Manager) RunOnce(ctx context.Context) []Result {
	results := []Result{
		m.task("purge_deleted_tokens", func() (int64, error) {
			return m.store.PurgeDeletedTokens(m.cfg.DeletedTokenGrace)
		}),
		m.task("purge_expired_auth_states", func() (int64, error) {
			return m.store.PurgeExpiredAuthStates()
		}),
	}
	if m.audit != nil {
		results = append(results, m.task("trim_audit_log", func() (int64, error) {
			return m.audit.CleanupOldEvents(ctx, m.cfg.AuditRetention)
		}))
	}

	m.mu.Lock()
	m.stats.Runs++
	m.stats.LastRunAt = time.Now()
	m.stats.LastResults = results
	for _, r := range results {
		m.stats.TotalRemoved += r.Removed
	}
	m.mu.Unlock()
	return results
}

func (m *Manager) task(name string, fn func() (int64, error)) Result {
	start := time.Now()
	removed, err := fn()
	result := Result{Task: name, Removed: removed, Took: time.Since(start)}
	if err != nil {
		result.Err = err.Error()
		if m.logger != nil {
			m.logger.Error("cleanup task failed", "task", name, "error", err.Error())
		}
		return result
	}
	if removed > 0 && m.logger != nil {
		m.logger.Info("cleanup task removed rows", "task", name, "removed", removed)
	}
	return result
}

// Snapshot returns a copy of the lifetime stats.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.stats
	snap.LastResults = append([]Result(nil), m.stats.LastResults...)
	return snap
}
