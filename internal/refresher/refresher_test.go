package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/models"
	"github.com/ebaygate/ebaygate/internal/oauth"
	"github.com/ebaygate/ebaygate/internal/store"
	"github.com/ebaygate/ebaygate/internal/token"
)

type stubOAuth struct {
	refreshCalls int32
	failFor      map[string]error
	mu           sync.Mutex
}

func (s *stubOAuth) ExchangeCode(ctx context.Context, conn *models.Connection, code string) (*oauth.TokenResponse, error) {
	return nil, errors.New("not used")
}

func (s *stubOAuth) RefreshToken(ctx context.Context, conn *models.Connection, refreshToken string, scopeIDs []string) (*oauth.TokenResponse, error) {
	atomic.AddInt32(&s.refreshCalls, 1)
	s.mu.Lock()
	err := s.failFor[refreshToken]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &oauth.TokenResponse{
		AccessToken: "v^1.1#refreshed",
		TokenType:   "Bearer",
		ExpiresIn:   7200,
	}, nil
}

func (s *stubOAuth) ApplicationToken(ctx context.Context, conn *models.Connection) (*oauth.TokenResponse, []string, error) {
	return nil, nil, errors.New("not used")
}

func seed(t *testing.T, st store.Store, n int, expiresIn time.Duration) {
	t.Helper()
	require.NoError(t, st.SetUser(&models.User{ID: "user-1", Email: "s@example.com", PasswordHash: "x"}))
	for i := 0; i < n; i++ {
		require.NoError(t, st.SetConnection(&models.Connection{
			ID: fmt.Sprintf("conn-%d", i), UserID: "user-1", Name: fmt.Sprintf("app %d", i),
			ClientID: "id", ClientSecret: "secret",
			RedirectURL: "https://example.com/cb",
			Environment: models.EnvironmentProduction,
			IsActive:    true,
		}))
		require.NoError(t, st.SetAccount(&models.SellerAccount{
			ID:           fmt.Sprintf("acct-%d", i),
			UserID:       "user-1",
			ConnectionID: fmt.Sprintf("conn-%d", i),
			AccessToken:  "v^1.1#old",
			RefreshToken: fmt.Sprintf("refresh-%d", i),
			TokenType:    "Bearer",
			ExpiresAt:    time.Now().Add(expiresIn),
			Status:       models.AccountStatusActive,
			Scopes:       []string{models.ScopeBase},
		}))
	}
}

func TestRunOnceRefreshesExpiringAccounts(t *testing.T) {
	st := store.NewMemoryStore()
	ocl := &stubOAuth{}
	seed(t, st, 3, 4*time.Minute)
	mgr := token.NewManager(st, ocl)

	r := New(st, mgr, Config{Window: 10 * time.Minute, Concurrency: 2})
	failed := r.RunOnce(context.Background())

	assert.Zero(t, failed)
	assert.Equal(t, int32(3), atomic.LoadInt32(&ocl.refreshCalls))
	for i := 0; i < 3; i++ {
		acct, ok := st.GetAccount(fmt.Sprintf("acct-%d", i))
		require.True(t, ok)
		assert.Equal(t, "v^1.1#refreshed", acct.AccessToken)
	}
}

func TestRunOnceSkipsHealthyAccounts(t *testing.T) {
	st := store.NewMemoryStore()
	ocl := &stubOAuth{}
	seed(t, st, 2, 3*time.Hour)
	mgr := token.NewManager(st, ocl)

	r := New(st, mgr, Config{Window: 10 * time.Minute})
	assert.Zero(t, r.RunOnce(context.Background()))
	assert.Zero(t, atomic.LoadInt32(&ocl.refreshCalls))
}

func TestRunOnceReportsTransientFailures(t *testing.T) {
	st := store.NewMemoryStore()
	ocl := &stubOAuth{failFor: map[string]error{
		"refresh-1": errors.New("upstream timeout"),
	}}
	seed(t, st, 3, 4*time.Minute)
	mgr := token.NewManager(st, ocl)

	var mu sync.Mutex
	var reported []string
	r := New(st, mgr, Config{Window: 10 * time.Minute}, WithFailureHandler(func(id string, err error) {
		mu.Lock()
		reported = append(reported, id)
		mu.Unlock()
	}))

	failed := r.RunOnce(context.Background())
	assert.Equal(t, 1, failed)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.Equal(t, "acct-1", reported[0])
}

func TestRunOnceDoesNotDoubleReportReauth(t *testing.T) {
	st := store.NewMemoryStore()
	ocl := &stubOAuth{failFor: map[string]error{
		"refresh-0": &apperrors.ErrTokenEndpoint{StatusCode: 400, Code: "invalid_grant"},
	}}
	seed(t, st, 1, 4*time.Minute)

	var reauths int32
	mgr := token.NewManager(st, ocl, token.WithReauthHandler(func(a *models.SellerAccount, err error) {
		atomic.AddInt32(&reauths, 1)
	}))

	r := New(st, mgr, Config{Window: 10 * time.Minute}, WithFailureHandler(func(string, error) {
		t.Error("transient handler must not fire for terminal failures")
	}))

	failed := r.RunOnce(context.Background())
	assert.Equal(t, 1, failed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reauths))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	st := store.NewMemoryStore()
	mgr := token.NewManager(st, &stubOAuth{})
	r := New(st, mgr, Config{Schedule: "bogus"})
	assert.Error(t, r.Start())
}
