package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/metrics"
	"github.com/ebaygate/ebaygate/internal/models"
	"github.com/ebaygate/ebaygate/internal/oauth"
	"github.com/ebaygate/ebaygate/internal/store"
)

// OAuthClient is the slice of the OAuth exchange client the manager
// needs. Narrowed for test doubles.
type OAuthClient interface {
	ExchangeCode(ctx context.Context, conn *models.Connection, code string) (*oauth.TokenResponse, error)
	RefreshToken(ctx context.Context, conn *models.Connection, refreshToken string, scopeIDs []string) (*oauth.TokenResponse, error)
	ApplicationToken(ctx context.Context, conn *models.Connection) (*oauth.TokenResponse, []string, error)
}

// ReauthHandler is invoked when an account's refresh grant fails
// terminally and only a new authorization can recover it.
type ReauthHandler func(account *models.SellerAccount, err error)

// Manager guards every proxied call with a valid access token. Refreshes
// are lazy: nothing happens until a caller asks for a token inside the
// expiry buffer. Concurrent refreshes for one account coalesce into a
// single upstream call.
type Manager struct {
	store    store.Store
	oauth    OAuthClient
	logger   *logging.Logger
	metrics  *metrics.Metrics
	onReauth ReauthHandler
	group    singleflight.Group
	now      func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics wires refresh outcome counters.
func WithMetrics(mx *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithReauthHandler registers a callback for terminal refresh failures.
func WithReauthHandler(fn ReauthHandler) ManagerOption {
	return func(m *Manager) {
		m.onReauth = fn
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a token lifecycle manager.
func NewManager(st store.Store, oc OAuthClient, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  st,
		oauth:  oc,
		logger: logging.NewLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureValid returns a seller account whose access token is usable for
// at least the expiry buffer. The fast path touches nothing but the
// store; the slow path refreshes (or falls back to an app token) and
// persists before returning.
func (m *Manager) EnsureValid(ctx context.Context, accountID string) (*models.SellerAccount, error) {
	account, ok := m.store.GetAccount(accountID)
	if !ok {
		return nil, &errors.ErrNotFound{Kind: "account", ID: accountID}
	}

	if !account.IsExpired(m.now()) {
		return account, nil
	}

	return m.refresh(ctx, accountID, metrics.RefreshTriggerLazy)
}

// RefreshNow forces a refresh regardless of expiry. Used by the
// proactive refresher.
func (m *Manager) RefreshNow(ctx context.Context, accountID string) (*models.SellerAccount, error) {
	return m.refresh(ctx, accountID, metrics.RefreshTriggerProactive)
}

func (m *Manager) refresh(ctx context.Context, accountID, trigger string) (*models.SellerAccount, error) {
	v, err, _ := m.group.Do(accountID, func() (interface{}, error) {
		return m.refreshLocked(ctx, accountID, trigger)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SellerAccount), nil
}

// refreshLocked runs inside the singleflight group, so at most one
// upstream call per account is in flight.
func (m *Manager) refreshLocked(ctx context.Context, accountID, trigger string) (*models.SellerAccount, error) {
	// A coalesced waiter may arrive after the winner already persisted a
	// fresh token. Re-read and re-check before going upstream.
	account, ok := m.store.GetAccount(accountID)
	if !ok {
		return nil, &errors.ErrNotFound{Kind: "account", ID: accountID}
	}
	if trigger == metrics.RefreshTriggerLazy && !account.IsExpired(m.now()) {
		return account, nil
	}

	conn, ok := m.store.GetConnection(account.ConnectionID)
	if !ok {
		return nil, &errors.ErrNotFound{Kind: "connection", ID: account.ConnectionID}
	}

	if account.HasRefreshToken() {
		return m.refreshUserToken(ctx, conn, account, trigger)
	}
	return m.applicationFallback(ctx, conn, account, trigger)
}

func (m *Manager) refreshUserToken(ctx context.Context, conn *models.Connection, account *models.SellerAccount, trigger string) (*models.SellerAccount, error) {
	resp, err := m.oauth.RefreshToken(ctx, conn, account.RefreshToken, account.Scopes)
	if err != nil {
		m.record(trigger, metrics.RefreshOutcomeReauth)
		m.logger.Error("token refresh failed, reauthorization required",
			"account_id", account.ID, "error", err.Error())

		reauthErr := &errors.ErrReauthRequired{AccountID: account.ID, Err: err}
		if m.onReauth != nil {
			m.onReauth(account, reauthErr)
		}
		return nil, reauthErr
	}

	account.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		// eBay rotates refresh tokens on some grants
		account.RefreshToken = resp.RefreshToken
	}
	if resp.TokenType != "" {
		account.TokenType = resp.TokenType
	}
	account.ExpiresAt = resp.ExpiresAt(m.now())

	if err := m.store.SetAccount(account); err != nil {
		return nil, err
	}

	m.record(trigger, metrics.RefreshOutcomeRefreshed)
	m.logger.Info("access token refreshed",
		"account_id", account.ID, "trigger", trigger, "expires_at", account.ExpiresAt)
	return account, nil
}

func (m *Manager) applicationFallback(ctx context.Context, conn *models.Connection, account *models.SellerAccount, trigger string) (*models.SellerAccount, error) {
	resp, granted, err := m.oauth.ApplicationToken(ctx, conn)
	if err != nil {
		m.record(trigger, metrics.RefreshOutcomeError)
		return nil, err
	}

	account.AccessToken = resp.AccessToken
	account.RefreshToken = ""
	account.Scopes = granted
	if resp.TokenType != "" {
		account.TokenType = resp.TokenType
	}
	account.ExpiresAt = resp.ExpiresAt(m.now())

	if err := m.store.SetAccount(account); err != nil {
		return nil, err
	}

	m.record(trigger, metrics.RefreshOutcomeAppFallback)
	m.logger.Info("application token obtained",
		"account_id", account.ID, "trigger", trigger, "expires_at", account.ExpiresAt)
	return account, nil
}

// CompleteAuthorization finishes the OAuth flow: it trades the redirect
// code for a token pair and persists the seller account named by the
// pending authorization.
func (m *Manager) CompleteAuthorization(ctx context.Context, st *models.AuthState, code string) (*models.SellerAccount, error) {
	conn, ok := m.store.GetConnection(st.ConnectionID)
	if !ok {
		return nil, &errors.ErrNotFound{Kind: "connection", ID: st.ConnectionID}
	}

	resp, err := m.oauth.ExchangeCode(ctx, conn, code)
	if err != nil {
		return nil, err
	}

	now := m.now()
	account := &models.SellerAccount{
		ID:           uuid.New().String(),
		UserID:       st.UserID,
		ConnectionID: st.ConnectionID,
		FriendlyName: st.FriendlyName,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresAt:    resp.ExpiresAt(now),
		Status:       models.AccountStatusActive,
		Scopes:       st.Scopes,
	}
	if account.FriendlyName == "" {
		account.FriendlyName = conn.Name
	}

	// A connection holds at most one seller account per user, so a
	// re-authorization replaces the token material in place instead of
	// minting a sibling row.
	if existing, ok := m.store.GetAccountByConnection(st.ConnectionID); ok && existing.UserID == st.UserID {
		account.ID = existing.ID
		account.EbayUserID = existing.EbayUserID
		account.EbayUsername = existing.EbayUsername
		account.Tags = existing.Tags
		account.CreatedAt = existing.CreatedAt
		if st.FriendlyName == "" && existing.FriendlyName != "" {
			account.FriendlyName = existing.FriendlyName
		}
	}

	if err := m.store.SetAccount(account); err != nil {
		return nil, err
	}

	m.logger.Info("seller account authorized",
		"account_id", account.ID, "connection_id", conn.ID, "expires_at", account.ExpiresAt)
	return account, nil
}

func (m *Manager) record(trigger, outcome string) {
	if m.metrics != nil {
		m.metrics.RecordTokenRefresh(trigger, outcome)
	}
}
