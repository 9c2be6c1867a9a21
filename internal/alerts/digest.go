package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/models"
	"github.com/ebaygate/ebaygate/internal/store"
)

// DigestScheduler sends a daily account-health summary on a cron
// schedule, bypassing deduplication since a digest is never a repeat.
type DigestScheduler struct {
	store    store.Store
	notifier Notifier
	logger   *logging.Logger
	schedule string
	cron     *cron.Cron
}

// NewDigestScheduler builds the scheduler; schedule is a standard cron
// expression, defaulting to 09:00 UTC daily.
func NewDigestScheduler(st store.Store, notifier Notifier, schedule string, logger *logging.Logger) *DigestScheduler {
	if schedule == "" {
		schedule = "0 9 * * *"
	}
	return &DigestScheduler{
		store:    st,
		notifier: notifier,
		logger:   logger,
		schedule: schedule,
	}
}

func (d *DigestScheduler) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(d.schedule, d.send); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", d.schedule, err)
	}
	d.cron = c
	c.Start()
	return nil
}

func (d *DigestScheduler) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
}

func (d *DigestScheduler) send() {
	text := d.Compose(time.Now())
	if err := d.notifier.Send(text); err != nil && d.logger != nil {
		d.logger.Error("digest delivery failed", "error", err.Error())
	}
}

// Compose renders the summary for the given instant.
func (d *DigestScheduler) Compose(now time.Time) string {
	accounts := d.store.ListAccounts("")

	active, inactive := 0, 0
	var expiring []*models.SellerAccount
	for _, a := range accounts {
		if a.Status == models.AccountStatusActive {
			active++
		} else {
			inactive++
		}
		if a.ExpiresAt.Sub(now) < 24*time.Hour {
			expiring = append(expiring, a)
		}
	}

	var sb strings.Builder
	sb.WriteString("📋 *Daily summary*\n")
	fmt.Fprintf(&sb, "Accounts: %d active, %d inactive\n", active, inactive)

	if len(expiring) == 0 {
		sb.WriteString("No access tokens expire in the next 24h.\n")
	} else {
		fmt.Fprintf(&sb, "Tokens expiring within 24h: %d\n", len(expiring))
		for _, a := range expiring {
			name := a.FriendlyName
			if name == "" {
				name = a.ID
			}
			fmt.Fprintf(&sb, "  • %s (%s)\n", name, a.ExpiresAt.Sub(now).Round(time.Minute))
		}
	}
	return sb.String()
}
