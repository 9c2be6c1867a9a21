// Package refresher renews access tokens ahead of expiry so proxied
// calls rarely pay the refresh latency on the request path.
package refresher

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/store"
	"github.com/ebaygate/ebaygate/internal/token"
)

const (
	defaultSchedule    = "0 */5 * * * *" // every five minutes, with seconds field
	defaultWindow      = 10 * time.Minute
	defaultConcurrency = 4
)

// Config tunes the sweep.
type Config struct {
	Schedule    string
	Window      time.Duration
	Concurrency int
}

// FailureHandler is notified about refresh errors other than the
// terminal reauth case, which the token manager reports itself.
type FailureHandler func(accountID string, err error)

// Refresher periodically refreshes every account whose token expires
// inside the window.
type Refresher struct {
	store     store.Store
	manager   *token.Manager
	logger    *logging.Logger
	onFailure FailureHandler

	schedule    string
	window      time.Duration
	concurrency int64

	cron *cron.Cron
}

type Option func(*Refresher)

func WithLogger(l *logging.Logger) Option {
	return func(r *Refresher) { r.logger = l }
}

func WithFailureHandler(fn FailureHandler) Option {
	return func(r *Refresher) { r.onFailure = fn }
}

func New(st store.Store, mgr *token.Manager, cfg Config, opts ...Option) *Refresher {
	r := &Refresher{
		store:       st,
		manager:     mgr,
		schedule:    cfg.Schedule,
		window:      cfg.Window,
		concurrency: int64(cfg.Concurrency),
	}
	if r.schedule == "" {
		r.schedule = defaultSchedule
	}
	if r.window <= 0 {
		r.window = defaultWindow
	}
	if r.concurrency <= 0 {
		r.concurrency = defaultConcurrency
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start registers the cron job. The schedule uses the six-field form
// with seconds.
func (r *Refresher) Start() error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(r.schedule, func() {
		r.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid refresher schedule %q: %w", r.schedule, err)
	}
	r.cron = c
	c.Start()
	if r.logger != nil {
		r.logger.Info("proactive refresher started",
			"schedule", r.schedule,
			"window", r.window.String(),
			"concurrency", r.concurrency,
		)
	}
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (r *Refresher) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunOnce sweeps all expiring accounts, refreshing up to the
// concurrency cap in parallel. It returns the number of failures.
func (r *Refresher) RunOnce(ctx context.Context) int {
	expiring := r.store.ListExpiringAccounts(r.window)
	if len(expiring) == 0 {
		return 0
	}
	if r.logger != nil {
		r.logger.Info("refresh sweep started", "accounts", len(expiring))
	}

	sem := semaphore.NewWeighted(r.concurrency)
	failures := make(chan string, len(expiring))

	for _, account := range expiring {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		go func(id string) {
			defer sem.Release(1)
			if err := r.refreshOne(ctx, id); err != nil {
				failures <- id
			}
		}(account.ID)
	}

	// Wait for all workers by taking the whole semaphore.
	_ = sem.Acquire(context.Background(), r.concurrency)
	sem.Release(r.concurrency)

	close(failures)
	failed := 0
	for range failures {
		failed++
	}
	if r.logger != nil {
		r.logger.Info("refresh sweep finished", "accounts", len(expiring), "failed", failed)
	}
	return failed
}

func (r *Refresher) refreshOne(ctx context.Context, accountID string) error {
	_, err := r.manager.RefreshNow(ctx, accountID)
	if err == nil {
		return nil
	}

	// Terminal failures already went through the manager's reauth
	// handler; only surface transient errors here.
	if !apperrors.IsReauthRequired(err) && r.onFailure != nil {
		r.onFailure(accountID, err)
	}
	if r.logger != nil {
		r.logger.Warn("scheduled refresh failed", "account_id", accountID, "error", err.Error())
	}
	return err
}
