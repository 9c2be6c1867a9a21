package token

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/models"
	"github.com/ebaygate/ebaygate/internal/oauth"
	"github.com/ebaygate/ebaygate/internal/store"
)

type fakeOAuth struct {
	mu               sync.Mutex
	exchangeCalls    int32
	refreshCalls     int32
	appCalls         int32
	refreshErr       error
	appErr           error
	refreshResponse  *oauth.TokenResponse
	appResponse      *oauth.TokenResponse
	appGrantedScopes []string
	refreshDelay     time.Duration
}

func (f *fakeOAuth) ExchangeCode(ctx context.Context, conn *models.Connection, code string) (*oauth.TokenResponse, error) {
	atomic.AddInt32(&f.exchangeCalls, 1)
	return &oauth.TokenResponse{
		AccessToken:  "v^1.1#exchanged",
		RefreshToken: "v^1.1#refresh-new",
		TokenType:    "User Access Token",
		ExpiresIn:    7200,
	}, nil
}

func (f *fakeOAuth) RefreshToken(ctx context.Context, conn *models.Connection, refreshToken string, scopeIDs []string) (*oauth.TokenResponse, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.refreshResponse != nil {
		return f.refreshResponse, nil
	}
	return &oauth.TokenResponse{
		AccessToken: "v^1.1#refreshed",
		TokenType:   "User Access Token",
		ExpiresIn:   7200,
	}, nil
}

func (f *fakeOAuth) ApplicationToken(ctx context.Context, conn *models.Connection) (*oauth.TokenResponse, []string, error) {
	atomic.AddInt32(&f.appCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appErr != nil {
		return nil, nil, f.appErr
	}
	resp := f.appResponse
	if resp == nil {
		resp = &oauth.TokenResponse{
			AccessToken: "v^1.1#app",
			TokenType:   "Application Access Token",
			ExpiresIn:   7200,
		}
	}
	granted := f.appGrantedScopes
	if granted == nil {
		granted = models.ApplicationScopes
	}
	return resp, granted, nil
}

func seedAccount(t *testing.T, st store.Store, expiresIn time.Duration, refreshToken string) *models.SellerAccount {
	t.Helper()
	conn := &models.Connection{
		ID:           "conn-1",
		UserID:       "user-1",
		Name:         "test app",
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://example.com/cb",
		Environment:  models.EnvironmentProduction,
		IsActive:     true,
	}
	require.NoError(t, st.SetConnection(conn))

	acc := &models.SellerAccount{
		ID:           "acct-1",
		UserID:       "user-1",
		ConnectionID: "conn-1",
		FriendlyName: "seller",
		AccessToken:  "v^1.1#original",
		RefreshToken: refreshToken,
		TokenType:    "User Access Token",
		ExpiresAt:    time.Now().Add(expiresIn),
		Status:       models.AccountStatusActive,
		Scopes:       []string{models.ScopeBase, models.ScopeSellInventory},
	}
	require.NoError(t, st.SetAccount(acc))
	return acc
}

func TestEnsureValidFastPath(t *testing.T) {
	st := store.NewMemoryStore()
	fake := &fakeOAuth{}
	m := NewManager(st, fake)

	seedAccount(t, st, 2*time.Hour, "v^1.1#refresh")

	got, err := m.EnsureValid(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "v^1.1#original", got.AccessToken)
	assert.Zero(t, atomic.LoadInt32(&fake.refreshCalls))
	assert.Zero(t, atomic.LoadInt32(&fake.appCalls))
}

func TestEnsureValidRefreshesInsideBuffer(t *testing.T) {
	st := store.NewMemoryStore()
	fake := &fakeOAuth{}
	m := NewManager(st, fake)

	// expires in 2 minutes: still accepted by eBay, but inside the buffer
	seedAccount(t, st, 2*time.Minute, "v^1.1#refresh")

	got, err := m.EnsureValid(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "v^1.1#refreshed", got.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.refreshCalls))

	// persisted before return
	stored, ok := st.GetAccount("acct-1")
	require.True(t, ok)
	assert.Equal(t, "v^1.1#refreshed", stored.AccessToken)
	assert.True(t, stored.ExpiresAt.After(time.Now().Add(time.Hour)))
}

func TestEnsureValidKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	st := store.NewMemoryStore()
	fake := &fakeOAuth{}
	m := NewManager(st, fake)

	seedAccount(t, st, time.Minute, "v^1.1#refresh-orig")

	got, err := m.EnsureValid(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "v^1.1#refresh-orig", got.RefreshToken)
}

func TestEnsureValidAdoptsRotatedRefreshToken(t *testing.T) {
	st := store.NewMemoryStore()
	fake := &fakeOAuth{refreshResponse: &oauth.TokenResponse{
		AccessToken:  "v^1.1#refreshed",
		RefreshToken: "v^1.1#rotated",
		TokenType:    "User Access Token",
		ExpiresIn:    7200,
	}}
	m := NewManager(st, fake)

	seedAccount(t, st, time.Minute, "v^1.1#refresh-orig")

	got, err := m.EnsureValid(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "v^1.1#rotated", got.RefreshToken)

	stored, _ := st.GetAccount("acct-1")
	assert.Equal(t, "v^1.1#rotated", stored.RefreshToken)
}

func TestEnsureValidApplicationFallback(t *testing.T) {
	st := store.NewMemoryStore()
	fake := &fakeOAuth{appGrantedScopes: models.FallbackApplicationScopes}
	m := NewManager(st, fake)

	// no refresh token stored: app-only account
	seedAccount(t, st, time.Minute, "")

	got, err := m.EnsureValid(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "v^1.1#app", got.AccessToken)
	assert.Empty(t, got.RefreshToken)
	assert.Equal(t, models.FallbackApplicationScopes, got.Scopes)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.appCalls))
	assert.Zero(t, atomic.LoadInt32(&fake.refreshCalls))

	stored, _ := st.GetAccount("acct-1")
	assert.Equal(t, "v^1.1#app", stored.AccessToken)
}

func TestEnsureValidReauthRequired(t *testing.T) {
	st := store.NewMemoryStore()
	fake := &fakeOAuth{refreshErr: &errors.ErrTokenEndpoint{
		Grant:       "refresh_token",
		StatusCode:  400,
		Code:        "invalid_grant",
		Description: "refresh token revoked",
	}}

	var notified *models.SellerAccount
	m := NewManager(st, fake, WithReauthHandler(func(acc *models.SellerAccount, err error) {
		notified = acc
	}))

	seedAccount(t, st, time.Minute, "v^1.1#dead")

	_, err := m.EnsureValid(context.Background(), "acct-1")
	require.Error(t, err)
	assert.True(t, errors.IsReauthRequired(err))
	assert.Contains(t, err.Error(), "refresh token revoked")

	// only one upstream attempt, never retried in-call
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.refreshCalls))
	require.NotNil(t, notified)
	assert.Equal(t, "acct-1", notified.ID)
}

func TestEnsureValidUnknownAccount(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), &fakeOAuth{})

	_, err := m.EnsureValid(context.Background(), "missing")
	require.Error(t, err)
	var notFound *errors.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestEnsureValidCoalescesConcurrentRefreshes(t *testing.T) {
	st := store.NewMemoryStore()
	fake := &fakeOAuth{refreshDelay: 50 * time.Millisecond}
	m := NewManager(st, fake)

	seedAccount(t, st, time.Minute, "v^1.1#refresh")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.EnsureValid(context.Background(), "acct-1")
			assert.NoError(t, err)
			assert.Equal(t, "v^1.1#refreshed", got.AccessToken)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.refreshCalls))
}

func TestRefreshNowBypassesFastPath(t *testing.T) {
	st := store.NewMemoryStore()
	fake := &fakeOAuth{}
	m := NewManager(st, fake)

	seedAccount(t, st, 2*time.Hour, "v^1.1#refresh")

	got, err := m.RefreshNow(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "v^1.1#refreshed", got.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.refreshCalls))
}

func TestCompleteAuthorization(t *testing.T) {
	st := store.NewMemoryStore()
	fake := &fakeOAuth{}
	m := NewManager(st, fake)

	conn := &models.Connection{
		ID:           "conn-1",
		UserID:       "user-1",
		Name:         "prod app",
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://example.com/cb",
		Environment:  models.EnvironmentProduction,
	}
	require.NoError(t, st.SetConnection(conn))

	authState := &models.AuthState{
		State:        "state-1",
		UserID:       "user-1",
		ConnectionID: "conn-1",
		Scopes:       []string{models.ScopeSellInventory},
		FriendlyName: "my shop",
		ExpiresAt:    time.Now().Add(10 * time.Minute),
	}

	acc, err := m.CompleteAuthorization(context.Background(), authState, "code-1")
	require.NoError(t, err)
	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, "v^1.1#exchanged", acc.AccessToken)
	assert.Equal(t, "v^1.1#refresh-new", acc.RefreshToken)
	assert.Equal(t, "my shop", acc.FriendlyName)
	assert.Equal(t, models.AccountStatusActive, acc.Status)
	assert.Equal(t, []string{models.ScopeSellInventory}, acc.Scopes)

	stored, ok := st.GetAccount(acc.ID)
	require.True(t, ok)
	assert.Equal(t, "v^1.1#exchanged", stored.AccessToken)
}

func TestCompleteAuthorizationDefaultsFriendlyName(t *testing.T) {
	st := store.NewMemoryStore()
	m := NewManager(st, &fakeOAuth{})

	require.NoError(t, st.SetConnection(&models.Connection{
		ID: "conn-1", UserID: "user-1", Name: "prod app",
		ClientID: "c", ClientSecret: "s", RedirectURL: "https://example.com/cb",
		Environment: models.EnvironmentProduction,
	}))

	acc, err := m.CompleteAuthorization(context.Background(), &models.AuthState{
		State: "s", UserID: "user-1", ConnectionID: "conn-1",
		ExpiresAt: time.Now().Add(time.Minute),
	}, "code")
	require.NoError(t, err)
	assert.Equal(t, "prod app", acc.FriendlyName)
}

func TestCompleteAuthorizationReplacesExistingAccount(t *testing.T) {
	st := store.NewMemoryStore()
	m := NewManager(st, &fakeOAuth{})

	require.NoError(t, st.SetConnection(&models.Connection{
		ID: "conn-1", UserID: "user-1", Name: "prod app",
		ClientID: "c", ClientSecret: "s", RedirectURL: "https://example.com/cb",
		Environment: models.EnvironmentProduction,
	}))

	first, err := m.CompleteAuthorization(context.Background(), &models.AuthState{
		State: "s1", UserID: "user-1", ConnectionID: "conn-1",
		FriendlyName: "my shop",
		ExpiresAt:    time.Now().Add(time.Minute),
	}, "code-1")
	require.NoError(t, err)

	// Re-authorizing the same connection must rotate the token material
	// in place, not mint a sibling account.
	second, err := m.CompleteAuthorization(context.Background(), &models.AuthState{
		State: "s2", UserID: "user-1", ConnectionID: "conn-1",
		ExpiresAt: time.Now().Add(time.Minute),
	}, "code-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "my shop", second.FriendlyName)
	require.Len(t, st.ListAccounts("user-1"), 1)
}
