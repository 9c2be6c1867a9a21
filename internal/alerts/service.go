package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/models"
)

// Notifier delivers a rendered alert. The telegram package provides
// the production implementation.
type Notifier interface {
	Send(text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(text string) error

func (f NotifierFunc) Send(text string) error { return f(text) }

// Config tunes the alert service.
type Config struct {
	Enabled            bool
	DedupWindow        time.Duration
	RateLimitPerMinute int
	QueueSize          int
}

// Service receives alerts, drops duplicates, rate-limits the rest and
// hands survivors to the notifier from a single worker goroutine.
type Service struct {
	cfg      Config
	notifier Notifier
	dedup    *DedupStore
	throttle *Throttler
	logger   *logging.Logger

	ch   chan Alert
	mu   sync.Mutex
	run  bool
	stop chan struct{}
	done chan struct{}
}

type ServiceOption func(*Service)

func WithLogger(l *logging.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func NewService(cfg Config, notifier Notifier, opts ...ServiceOption) *Service {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	s := &Service{
		cfg:      cfg,
		notifier: notifier,
		dedup:    NewDedupStore(cfg.DedupWindow),
		throttle: NewThrottler(cfg.RateLimitPerMinute),
		ch:       make(chan Alert, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the delivery worker.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run || !s.cfg.Enabled || s.notifier == nil {
		return
	}
	s.run = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.worker()
}

// Stop drains nothing; queued alerts past the stop signal are dropped.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.run {
		s.mu.Unlock()
		return
	}
	s.run = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Publish enqueues an alert without blocking. When the queue is full
// the alert is dropped and counted in the log.
func (s *Service) Publish(alert Alert) {
	s.mu.Lock()
	running := s.run
	s.mu.Unlock()
	if !running {
		return
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	select {
	case s.ch <- alert:
	default:
		if s.logger != nil {
			s.logger.Warn("alert queue full, dropping alert", "key", alert.Key())
		}
	}
}

func (s *Service) worker() {
	defer close(s.done)
	sweep := time.NewTicker(10 * time.Minute)
	defer sweep.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-sweep.C:
			s.dedup.Sweep(now)
		case alert := <-s.ch:
			s.deliver(alert)
		}
	}
}

func (s *Service) deliver(alert Alert) {
	now := alert.Timestamp
	if !s.dedup.ShouldSend(alert.Key(), now) {
		return
	}
	if !s.throttle.Allow() {
		if s.logger != nil {
			s.logger.Warn("alert rate limit hit, dropping alert", "key", alert.Key())
		}
		return
	}

	suppressed := s.dedup.Record(alert.Key(), now)
	text := alert.Render()
	if suppressed > 0 {
		text += fmt.Sprintf("\n(%d repeats suppressed)", suppressed)
	}
	if err := s.notifier.Send(text); err != nil && s.logger != nil {
		s.logger.Error("alert delivery failed", "key", alert.Key(), "error", err.Error())
	}
}

// ReauthRequired builds the handler wired into the token manager; it
// fires whenever an account falls into the terminal reauth state.
func (s *Service) ReauthRequired() func(account *models.SellerAccount, err error) {
	return func(account *models.SellerAccount, err error) {
		s.Publish(Alert{
			AccountID: account.ID,
			Type:      AlertTypeReauthRequired,
			Severity:  SeverityCritical,
			Message:   "Refresh token rejected. Re-authorize the account.",
			Metadata:  map[string]string{"detail": err.Error()},
		})
	}
}

// LoginFailed reports a headless authorization failure.
func (s *Service) LoginFailed(connectionID, stage string, err error) {
	s.Publish(Alert{
		AccountID: connectionID,
		Type:      AlertTypeLoginFailure,
		Severity:  SeverityWarning,
		Message:   "Automated eBay login failed at stage " + stage + ".",
		Metadata:  map[string]string{"detail": err.Error()},
	})
}

// RefreshFailed reports a transient refresh error from the proactive
// refresher.
func (s *Service) RefreshFailed(accountID string, err error) {
	s.Publish(Alert{
		AccountID: accountID,
		Type:      AlertTypeRefreshFailure,
		Severity:  SeverityWarning,
		Message:   "Scheduled token refresh failed.",
		Metadata:  map[string]string{"detail": err.Error()},
	})
}
