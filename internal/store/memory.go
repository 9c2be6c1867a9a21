package store

import (
	"sort"
	"sync"
	"time"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/models"
)

// MemoryStore provides in-memory storage for gateway state. It is
// thread-safe and supports concurrent access. Secrets are held as
// plaintext since nothing touches disk.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*models.User
	conns      map[string]*models.Connection
	accounts   map[string]*models.SellerAccount
	tokens     map[string]*models.APIToken
	authStates map[string]*models.AuthState
	settings   SettingsStore
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*models.User),
		conns:      make(map[string]*models.Connection),
		accounts:   make(map[string]*models.SellerAccount),
		tokens:     make(map[string]*models.APIToken),
		authStates: make(map[string]*models.AuthState),
		settings:   NewMemorySettingsStore(),
	}
}

// User operations

func (s *MemoryStore) GetUser(id string) (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	return u, ok
}

func (s *MemoryStore) GetUserByEmail(email string) (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, true
		}
	}
	return nil, false
}

func (s *MemoryStore) SetUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) DeleteUser(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	for cid, c := range s.conns {
		if c.UserID == id {
			delete(s.conns, cid)
		}
	}
	for aid, a := range s.accounts {
		if a.UserID == id {
			delete(s.accounts, aid)
		}
	}
	for tid, t := range s.tokens {
		if t.UserID == id {
			delete(s.tokens, tid)
		}
	}
	return true
}

func (s *MemoryStore) ListUsers() []*models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result
}

// Connection operations

func (s *MemoryStore) GetConnection(id string) (*models.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conns[id]
	return c, ok
}

func (s *MemoryStore) SetConnection(c *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.conns {
		if other.ID != c.ID && other.UserID == c.UserID && other.Name == c.Name {
			return &apperrors.ErrDuplicate{Kind: "connection", Key: c.Name}
		}
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.conns[c.ID] = c
	return nil
}

func (s *MemoryStore) DeleteConnection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[id]; !ok {
		return false
	}
	delete(s.conns, id)
	for aid, a := range s.accounts {
		if a.ConnectionID == id {
			delete(s.accounts, aid)
		}
	}
	return true
}

func (s *MemoryStore) ListConnections(userID string) []*models.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		if userID == "" || c.UserID == userID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Seller account operations

// cloneAccount copies an account so callers never share the stored
// struct; the SQLite store hands out fresh decodes, this keeps the two
// implementations equivalent.
func cloneAccount(a *models.SellerAccount) *models.SellerAccount {
	if a == nil {
		return nil
	}
	c := *a
	c.Scopes = append([]string(nil), a.Scopes...)
	c.Tags = append([]string(nil), a.Tags...)
	if a.LastUsedAt != nil {
		t := *a.LastUsedAt
		c.LastUsedAt = &t
	}
	return &c
}

func (s *MemoryStore) GetAccount(id string) (*models.SellerAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	return cloneAccount(a), ok
}

func (s *MemoryStore) GetAccountByConnection(connectionID string) (*models.SellerAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.SellerAccount
	for _, a := range s.accounts {
		if a.ConnectionID != connectionID {
			continue
		}
		if latest == nil || a.UpdatedAt.After(latest.UpdatedAt) {
			latest = a
		}
	}
	return cloneAccount(latest), latest != nil
}

func (s *MemoryStore) SetAccount(a *models.SellerAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.accounts {
		if other.ID != a.ID && other.UserID == a.UserID && other.ConnectionID == a.ConnectionID {
			return &apperrors.ErrDuplicate{Kind: "seller account", Key: a.ConnectionID}
		}
	}

	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *MemoryStore) DeleteAccount(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return false
	}
	delete(s.accounts, id)
	return true
}

func (s *MemoryStore) ListAccounts(userID string) []*models.SellerAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.SellerAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		if userID == "" || a.UserID == userID {
			result = append(result, cloneAccount(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FriendlyName != result[j].FriendlyName {
			return result[i].FriendlyName < result[j].FriendlyName
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (s *MemoryStore) ListExpiringAccounts(within time.Duration) []*models.SellerAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(within)
	var result []*models.SellerAccount
	for _, a := range s.accounts {
		if a.Status == models.AccountStatusActive && !a.ExpiresAt.After(cutoff) {
			result = append(result, cloneAccount(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
	return result
}

func (s *MemoryStore) TouchAccount(id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.accounts[id]; ok {
		a.LastUsedAt = &when
	}
	return nil
}

// API token operations

func (s *MemoryStore) GetAPIToken(id string) (*models.APIToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[id]
	return t, ok
}

func (s *MemoryStore) GetAPITokenByHash(hash string) (*models.APIToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if models.HashEqual(t.TokenHash, hash) {
			return t, true
		}
	}
	return nil, false
}

func (s *MemoryStore) SetAPIToken(t *models.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	s.tokens[t.ID] = t
	return nil
}

func (s *MemoryStore) RevokeAPIToken(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok || t.IsDeleted {
		return false
	}
	now := time.Now()
	t.IsActive = false
	t.IsDeleted = true
	t.DeletedAt = &now
	t.UpdatedAt = now
	return true
}

func (s *MemoryStore) PurgeDeletedTokens(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var purged int64
	for id, t := range s.tokens {
		if t.IsDeleted && t.DeletedAt != nil && t.DeletedAt.Before(cutoff) {
			delete(s.tokens, id)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) TouchAPIToken(id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[id]; ok {
		t.LastUsedAt = &when
	}
	return nil
}

func (s *MemoryStore) CountActiveTokens(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.tokens {
		if t.UserID == userID && !t.IsDeleted {
			count++
		}
	}
	return count
}

func (s *MemoryStore) ListAPITokens(userID string) []*models.APIToken {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.APIToken
	for _, t := range s.tokens {
		if t.IsDeleted {
			continue
		}
		if userID == "" || t.UserID == userID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

// Pending OAuth authorization operations

func (s *MemoryStore) SaveAuthState(st *models.AuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	s.authStates[st.State] = st
	return nil
}

func (s *MemoryStore) ConsumeAuthState(state string) (*models.AuthState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.authStates[state]
	if !ok {
		return nil, false
	}
	delete(s.authStates, state)
	if st.Expired(time.Now()) {
		return nil, false
	}
	return st, true
}

func (s *MemoryStore) PurgeExpiredAuthStates() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var purged int64
	for state, st := range s.authStates {
		if st.Expired(now) {
			delete(s.authStates, state)
			purged++
		}
	}
	return purged, nil
}

// Clear removes all data from the store
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]*models.User)
	s.conns = make(map[string]*models.Connection)
	s.accounts = make(map[string]*models.SellerAccount)
	s.tokens = make(map[string]*models.APIToken)
	s.authStates = make(map[string]*models.AuthState)
	if settings, ok := s.settings.(*MemorySettingsStore); ok {
		settings.Clear()
	}
}

// Stats returns statistics about the store
func (s *MemoryStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0
	for _, t := range s.tokens {
		if !t.IsDeleted {
			active++
		}
	}
	return StoreStats{
		UserCount:       len(s.users),
		ConnectionCount: len(s.conns),
		AccountCount:    len(s.accounts),
		APITokenCount:   active,
	}
}

// Settings returns the settings store.
func (s *MemoryStore) Settings() SettingsStore {
	return s.settings
}

// Close implements Store Close (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}

// StoreStats contains statistics about the store
type StoreStats struct {
	UserCount       int
	ConnectionCount int
	AccountCount    int
	APITokenCount   int
}

// Ensure MemoryStore implements the Store interface
var _ Store = (*MemoryStore)(nil)

// Store defines the persistence interface for gateway state
type Store interface {
	// User operations
	GetUser(id string) (*models.User, bool)
	GetUserByEmail(email string) (*models.User, bool)
	SetUser(u *models.User) error
	DeleteUser(id string) bool
	ListUsers() []*models.User

	// Connection operations
	GetConnection(id string) (*models.Connection, bool)
	SetConnection(c *models.Connection) error
	DeleteConnection(id string) bool
	ListConnections(userID string) []*models.Connection

	// Seller account operations
	GetAccount(id string) (*models.SellerAccount, bool)
	GetAccountByConnection(connectionID string) (*models.SellerAccount, bool)
	SetAccount(a *models.SellerAccount) error
	DeleteAccount(id string) bool
	ListAccounts(userID string) []*models.SellerAccount
	ListExpiringAccounts(within time.Duration) []*models.SellerAccount
	TouchAccount(id string, when time.Time) error

	// API token operations
	GetAPIToken(id string) (*models.APIToken, bool)
	GetAPITokenByHash(hash string) (*models.APIToken, bool)
	SetAPIToken(t *models.APIToken) error
	RevokeAPIToken(id string) bool
	PurgeDeletedTokens(olderThan time.Duration) (int64, error)
	TouchAPIToken(id string, when time.Time) error
	CountActiveTokens(userID string) int
	ListAPITokens(userID string) []*models.APIToken

	// Pending OAuth authorizations
	SaveAuthState(st *models.AuthState) error
	ConsumeAuthState(state string) (*models.AuthState, bool)
	PurgeExpiredAuthStates() (int64, error)

	// Management
	Clear()
	Stats() StoreStats
	Settings() SettingsStore
	Close() error
}
