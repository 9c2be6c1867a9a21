package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ebaygate/ebaygate/internal/crypto"
	"github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides SQLite-based storage for gateway state with WAL mode.
// Connection secrets and seller tokens are encrypted before hitting disk and
// decrypted on read, so consumers always see plaintext. It is thread-safe and
// supports concurrent access.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	box      *crypto.Box
	logger   *logging.Logger
	settings SettingsStore
}

// NewSQLiteStore creates a new SQLite store with WAL mode enabled
func NewSQLiteStore(dbPath string, box *crypto.Box) (*SQLiteStore, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	// Open database with WAL mode enabled
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=cache_size(2000)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	settingsStore, err := NewSQLiteSettingsStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:       db,
		box:      box,
		logger:   logging.NewLogger(),
		settings: settingsStore,
	}, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	// Get current migration version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	// Define migrations
	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					email TEXT NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					is_admin INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS connections (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					client_id TEXT NOT NULL,
					client_secret TEXT NOT NULL,
					dev_id TEXT DEFAULT '',
					redirect_url TEXT NOT NULL,
					environment TEXT NOT NULL,
					ebay_username TEXT DEFAULT '',
					ebay_password TEXT DEFAULT '',
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
				);

				CREATE TABLE IF NOT EXISTS seller_accounts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					connection_id TEXT NOT NULL,
					ebay_user_id TEXT DEFAULT '',
					ebay_username TEXT DEFAULT '',
					friendly_name TEXT DEFAULT '',
					access_token TEXT NOT NULL,
					refresh_token TEXT DEFAULT '',
					token_type TEXT NOT NULL DEFAULT 'Bearer',
					expires_at DATETIME NOT NULL,
					status TEXT NOT NULL DEFAULT 'active',
					scopes TEXT,
					tags TEXT,
					last_used_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
					FOREIGN KEY (connection_id) REFERENCES connections(id) ON DELETE CASCADE
				);

				CREATE TABLE IF NOT EXISTS api_tokens (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					token_hash TEXT NOT NULL UNIQUE,
					token_masked TEXT NOT NULL,
					permissions TEXT NOT NULL,
					connection_id TEXT DEFAULT '',
					is_active INTEGER NOT NULL DEFAULT 1,
					is_deleted INTEGER NOT NULL DEFAULT 0,
					deleted_at DATETIME,
					last_used_at DATETIME,
					expires_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_connections_user ON connections(user_id);
				CREATE INDEX IF NOT EXISTS idx_accounts_user ON seller_accounts(user_id);
				CREATE INDEX IF NOT EXISTS idx_accounts_connection ON seller_accounts(connection_id);
				CREATE INDEX IF NOT EXISTS idx_accounts_expires ON seller_accounts(expires_at);
				CREATE INDEX IF NOT EXISTS idx_tokens_hash ON api_tokens(token_hash);
				CREATE INDEX IF NOT EXISTS idx_tokens_user ON api_tokens(user_id);
			`,
		},
		{
			version: 2,
			up: `
				CREATE TABLE IF NOT EXISTS auth_states (
					state TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					connection_id TEXT NOT NULL,
					scopes TEXT,
					friendly_name TEXT DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					expires_at DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_auth_states_expires ON auth_states(expires_at);
			`,
		},
		{
			version: 3,
			up: `
				DELETE FROM seller_accounts WHERE rowid NOT IN (
					SELECT MAX(rowid) FROM seller_accounts GROUP BY user_id, connection_id
				);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_user_connection
					ON seller_accounts(user_id, connection_id);

				DELETE FROM connections WHERE rowid NOT IN (
					SELECT MAX(rowid) FROM connections GROUP BY user_id, name
				);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_connections_user_name
					ON connections(user_id, name);
			`,
		},
	}

	// Run pending migrations
	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

// seal encrypts a secret for storage. A nil box stores plaintext.
func (s *SQLiteStore) seal(plaintext string) (string, error) {
	if s.box == nil {
		return plaintext, nil
	}
	return s.box.Seal(plaintext)
}

// open decrypts a stored secret. A nil box passes the value through.
func (s *SQLiteStore) open(ciphertext string) (string, error) {
	if s.box == nil {
		return ciphertext, nil
	}
	return s.box.Open(ciphertext)
}

// Close gracefully shuts down the store
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Settings returns the settings store.
func (s *SQLiteStore) Settings() SettingsStore {
	return s.settings
}

// User operations

// GetUser retrieves a user by ID
func (s *SQLiteStore) GetUser(id string) (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u models.User
	err := s.db.QueryRow(`
		SELECT id, email, password_hash, is_admin, created_at, updated_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, false
	}
	return &u, true
}

// GetUserByEmail retrieves a user by email
func (s *SQLiteStore) GetUserByEmail(email string) (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u models.User
	err := s.db.QueryRow(`
		SELECT id, email, password_hash, is_admin, created_at, updated_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, false
	}
	return &u, true
}

// SetUser stores or updates a user
func (s *SQLiteStore) SetUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO users (id, email, password_hash, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash,
			is_admin = excluded.is_admin,
			updated_at = excluded.updated_at
	`, u.ID, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set user", Err: err}
	}
	return nil
}

// DeleteUser removes a user and everything owned by it
func (s *SQLiteStore) DeleteUser(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return false
	}
	rows, _ := result.RowsAffected()
	return rows > 0
}

// ListUsers returns all users
func (s *SQLiteStore) ListUsers() []*models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, email, password_hash, is_admin, created_at, updated_at
		FROM users ORDER BY email
	`)
	if err != nil {
		return []*models.User{}
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			continue
		}
		users = append(users, &u)
	}
	return users
}

// Connection operations

const connectionColumns = `id, user_id, name, client_id, client_secret, dev_id, redirect_url, environment, ebay_username, ebay_password, is_active, created_at, updated_at`

func (s *SQLiteStore) scanConnection(row interface {
	Scan(dest ...interface{}) error
}) (*models.Connection, error) {
	var c models.Connection
	var env string
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.ClientID, &c.ClientSecret, &c.DevID,
		&c.RedirectURL, &env, &c.EbayUsername, &c.EbayPassword, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Environment = models.Environment(env)

	if c.ClientSecret, err = s.open(c.ClientSecret); err != nil {
		return nil, err
	}
	if c.EbayPassword, err = s.open(c.EbayPassword); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConnection retrieves a connection by ID with secrets decrypted
func (s *SQLiteStore) GetConnection(id string) (*models.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	c, err := s.scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to load connection", "connection_id", id, "error", err.Error())
		return nil, false
	}
	return c, true
}

// SetConnection stores or updates a connection, encrypting its secrets
func (s *SQLiteStore) SetConnection(c *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	secret, err := s.seal(c.ClientSecret)
	if err != nil {
		return err
	}
	password, err := s.seal(c.EbayPassword)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO connections (id, user_id, name, client_id, client_secret, dev_id, redirect_url, environment, ebay_username, ebay_password, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			dev_id = excluded.dev_id,
			redirect_url = excluded.redirect_url,
			environment = excluded.environment,
			ebay_username = excluded.ebay_username,
			ebay_password = excluded.ebay_password,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, c.ID, c.UserID, c.Name, c.ClientID, secret, c.DevID, c.RedirectURL,
		string(c.Environment), c.EbayUsername, password, c.IsActive, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set connection", Err: err}
	}
	return nil
}

// DeleteConnection removes a connection and its seller accounts
func (s *SQLiteStore) DeleteConnection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM connections WHERE id = ?", id)
	if err != nil {
		return false
	}
	rows, _ := result.RowsAffected()
	return rows > 0
}

// ListConnections returns connections, optionally filtered by owner.
// An empty userID returns every connection.
func (s *SQLiteStore) ListConnections(userID string) []*models.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + connectionColumns + ` FROM connections`
	args := []interface{}{}
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY name"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return []*models.Connection{}
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		c, err := s.scanConnection(rows)
		if err != nil {
			s.logger.Error("failed to scan connection", "error", err.Error())
			continue
		}
		conns = append(conns, c)
	}
	return conns
}

// Seller account operations

const accountColumns = `id, user_id, connection_id, ebay_user_id, ebay_username, friendly_name, access_token, refresh_token, token_type, expires_at, status, scopes, tags, last_used_at, created_at, updated_at`

func (s *SQLiteStore) scanAccount(row interface {
	Scan(dest ...interface{}) error
}) (*models.SellerAccount, error) {
	var a models.SellerAccount
	var status string
	var scopesJSON, tagsJSON sql.NullString
	var lastUsed sql.NullTime

	err := row.Scan(&a.ID, &a.UserID, &a.ConnectionID, &a.EbayUserID, &a.EbayUsername,
		&a.FriendlyName, &a.AccessToken, &a.RefreshToken, &a.TokenType, &a.ExpiresAt,
		&status, &scopesJSON, &tagsJSON, &lastUsed, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = models.AccountStatus(status)
	if lastUsed.Valid {
		t := lastUsed.Time
		a.LastUsedAt = &t
	}
	if scopesJSON.Valid && scopesJSON.String != "" {
		if err := json.Unmarshal([]byte(scopesJSON.String), &a.Scopes); err != nil {
			s.logger.Warn("failed to parse account scopes", "account_id", a.ID, "error", err.Error())
		}
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &a.Tags); err != nil {
			s.logger.Warn("failed to parse account tags", "account_id", a.ID, "error", err.Error())
		}
	}

	if a.AccessToken, err = s.open(a.AccessToken); err != nil {
		return nil, err
	}
	if a.RefreshToken, err = s.open(a.RefreshToken); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount retrieves a seller account by ID with tokens decrypted
func (s *SQLiteStore) GetAccount(id string) (*models.SellerAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+accountColumns+` FROM seller_accounts WHERE id = ?`, id)
	a, err := s.scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to load account", "account_id", id, "error", err.Error())
		return nil, false
	}
	return a, true
}

// GetAccountByConnection retrieves the seller account authorized through
// the given connection
func (s *SQLiteStore) GetAccountByConnection(connectionID string) (*models.SellerAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+accountColumns+` FROM seller_accounts WHERE connection_id = ? ORDER BY updated_at DESC LIMIT 1`, connectionID)
	a, err := s.scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to load account", "connection_id", connectionID, "error", err.Error())
		return nil, false
	}
	return a, true
}

// SetAccount stores or updates a seller account, encrypting its tokens
func (s *SQLiteStore) SetAccount(a *models.SellerAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	access, err := s.seal(a.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := s.seal(a.RefreshToken)
	if err != nil {
		return err
	}

	scopesJSON, _ := json.Marshal(a.Scopes)
	tagsJSON, _ := json.Marshal(a.Tags)

	var lastUsed interface{}
	if a.LastUsedAt != nil {
		lastUsed = *a.LastUsedAt
	}

	_, err = s.db.Exec(`
		INSERT INTO seller_accounts (id, user_id, connection_id, ebay_user_id, ebay_username, friendly_name, access_token, refresh_token, token_type, expires_at, status, scopes, tags, last_used_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			connection_id = excluded.connection_id,
			ebay_user_id = excluded.ebay_user_id,
			ebay_username = excluded.ebay_username,
			friendly_name = excluded.friendly_name,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			status = excluded.status,
			scopes = excluded.scopes,
			tags = excluded.tags,
			last_used_at = excluded.last_used_at,
			updated_at = excluded.updated_at
	`, a.ID, a.UserID, a.ConnectionID, a.EbayUserID, a.EbayUsername, a.FriendlyName,
		access, refresh, a.TokenType, a.ExpiresAt, string(a.Status),
		string(scopesJSON), string(tagsJSON), lastUsed, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set account", Err: err}
	}
	return nil
}

// DeleteAccount removes a seller account
func (s *SQLiteStore) DeleteAccount(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM seller_accounts WHERE id = ?", id)
	if err != nil {
		return false
	}
	rows, _ := result.RowsAffected()
	return rows > 0
}

// ListAccounts returns seller accounts, optionally filtered by owner.
func (s *SQLiteStore) ListAccounts(userID string) []*models.SellerAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + accountColumns + ` FROM seller_accounts`
	args := []interface{}{}
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY friendly_name, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return []*models.SellerAccount{}
	}
	defer rows.Close()

	var accounts []*models.SellerAccount
	for rows.Next() {
		a, err := s.scanAccount(rows)
		if err != nil {
			s.logger.Error("failed to scan account", "error", err.Error())
			continue
		}
		accounts = append(accounts, a)
	}
	return accounts
}

// ListExpiringAccounts returns active accounts whose access token expires
// within the given window, including already expired ones
func (s *SQLiteStore) ListExpiringAccounts(within time.Duration) []*models.SellerAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(within)
	rows, err := s.db.Query(`SELECT `+accountColumns+` FROM seller_accounts WHERE status = ? AND expires_at <= ? ORDER BY expires_at`,
		string(models.AccountStatusActive), cutoff)
	if err != nil {
		return []*models.SellerAccount{}
	}
	defer rows.Close()

	var accounts []*models.SellerAccount
	for rows.Next() {
		a, err := s.scanAccount(rows)
		if err != nil {
			s.logger.Error("failed to scan account", "error", err.Error())
			continue
		}
		accounts = append(accounts, a)
	}
	return accounts
}

// TouchAccount records when the account was last used for a proxied call
func (s *SQLiteStore) TouchAccount(id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("UPDATE seller_accounts SET last_used_at = ? WHERE id = ?", when, id)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "touch account", Err: err}
	}
	return nil
}

// API token operations

const apiTokenColumns = `id, user_id, name, token_hash, token_masked, permissions, connection_id, is_active, is_deleted, deleted_at, last_used_at, expires_at, created_at, updated_at`

func scanAPIToken(row interface {
	Scan(dest ...interface{}) error
}) (*models.APIToken, error) {
	var t models.APIToken
	var permissionsJSON string
	var deletedAt, lastUsed, expires sql.NullTime

	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.TokenMasked, &permissionsJSON,
		&t.ConnectionID, &t.IsActive, &t.IsDeleted, &deletedAt, &lastUsed, &expires,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		v := deletedAt.Time
		t.DeletedAt = &v
	}
	if lastUsed.Valid {
		v := lastUsed.Time
		t.LastUsedAt = &v
	}
	if expires.Valid {
		v := expires.Time
		t.ExpiresAt = &v
	}
	if err := json.Unmarshal([]byte(permissionsJSON), &t.Permissions); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetAPIToken retrieves an API token by ID
func (s *SQLiteStore) GetAPIToken(id string) (*models.APIToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+apiTokenColumns+` FROM api_tokens WHERE id = ?`, id)
	t, err := scanAPIToken(row)
	if err != nil {
		return nil, false
	}
	return t, true
}

// GetAPITokenByHash retrieves an API token by the hash of its raw value
func (s *SQLiteStore) GetAPITokenByHash(hash string) (*models.APIToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+apiTokenColumns+` FROM api_tokens WHERE token_hash = ?`, hash)
	t, err := scanAPIToken(row)
	if err != nil {
		return nil, false
	}
	return t, true
}

// SetAPIToken stores or updates an API token
func (s *SQLiteStore) SetAPIToken(t *models.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	permissionsJSON, err := json.Marshal(t.Permissions)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "marshal token permissions", Err: err}
	}

	var deletedAt, lastUsed, expires interface{}
	if t.DeletedAt != nil {
		deletedAt = *t.DeletedAt
	}
	if t.LastUsedAt != nil {
		lastUsed = *t.LastUsedAt
	}
	if t.ExpiresAt != nil {
		expires = *t.ExpiresAt
	}

	_, err = s.db.Exec(`
		INSERT INTO api_tokens (id, user_id, name, token_hash, token_masked, permissions, connection_id, is_active, is_deleted, deleted_at, last_used_at, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			permissions = excluded.permissions,
			connection_id = excluded.connection_id,
			is_active = excluded.is_active,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			last_used_at = excluded.last_used_at,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, t.ID, t.UserID, t.Name, t.TokenHash, t.TokenMasked, string(permissionsJSON),
		t.ConnectionID, t.IsActive, t.IsDeleted, deletedAt, lastUsed, expires,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set api token", Err: err}
	}
	return nil
}

// RevokeAPIToken soft-deletes an API token. The row survives until the
// cleanup grace period passes so audit queries can still resolve it.
func (s *SQLiteStore) RevokeAPIToken(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	result, err := s.db.Exec(`
		UPDATE api_tokens SET is_active = 0, is_deleted = 1, deleted_at = ?, updated_at = ?
		WHERE id = ? AND is_deleted = 0
	`, now, now, id)
	if err != nil {
		return false
	}
	rows, _ := result.RowsAffected()
	return rows > 0
}

// PurgeDeletedTokens permanently removes tokens soft-deleted before the
// grace period
func (s *SQLiteStore) PurgeDeletedTokens(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	result, err := s.db.Exec("DELETE FROM api_tokens WHERE is_deleted = 1 AND deleted_at < ?", cutoff)
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "purge deleted tokens", Err: err}
	}
	return result.RowsAffected()
}

// TouchAPIToken records when the token last authenticated a request
func (s *SQLiteStore) TouchAPIToken(id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("UPDATE api_tokens SET last_used_at = ? WHERE id = ?", when, id)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "touch api token", Err: err}
	}
	return nil
}

// CountActiveTokens returns the number of non-deleted tokens a user holds
func (s *SQLiteStore) CountActiveTokens(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM api_tokens WHERE user_id = ? AND is_deleted = 0", userID).Scan(&count)
	if err != nil {
		return 0
	}
	return count
}

// ListAPITokens returns non-deleted tokens, optionally filtered by owner.
func (s *SQLiteStore) ListAPITokens(userID string) []*models.APIToken {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + apiTokenColumns + ` FROM api_tokens WHERE is_deleted = 0`
	args := []interface{}{}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return []*models.APIToken{}
	}
	defer rows.Close()

	var tokens []*models.APIToken
	for rows.Next() {
		t, err := scanAPIToken(rows)
		if err != nil {
			s.logger.Error("failed to scan api token", "error", err.Error())
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// Pending OAuth authorization operations

// SaveAuthState records a pending authorization keyed by its state value
func (s *SQLiteStore) SaveAuthState(st *models.AuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	scopesJSON, _ := json.Marshal(st.Scopes)

	_, err := s.db.Exec(`
		INSERT INTO auth_states (state, user_id, connection_id, scopes, friendly_name, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, st.State, st.UserID, st.ConnectionID, string(scopesJSON), st.FriendlyName, st.CreatedAt, st.ExpiresAt)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "save auth state", Err: err}
	}
	return nil
}

// ConsumeAuthState atomically fetches and deletes a pending authorization.
// Expired states are not returned.
func (s *SQLiteStore) ConsumeAuthState(state string) (*models.AuthState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st models.AuthState
	var scopesJSON sql.NullString
	err := s.db.QueryRow(`
		SELECT state, user_id, connection_id, scopes, friendly_name, created_at, expires_at
		FROM auth_states WHERE state = ?
	`, state).Scan(&st.State, &st.UserID, &st.ConnectionID, &scopesJSON, &st.FriendlyName, &st.CreatedAt, &st.ExpiresAt)
	if err != nil {
		return nil, false
	}

	if _, err := s.db.Exec("DELETE FROM auth_states WHERE state = ?", state); err != nil {
		s.logger.Error("failed to delete auth state", "error", err.Error())
	}

	if st.Expired(time.Now()) {
		return nil, false
	}
	if scopesJSON.Valid && scopesJSON.String != "" {
		if err := json.Unmarshal([]byte(scopesJSON.String), &st.Scopes); err != nil {
			s.logger.Warn("failed to parse auth state scopes", "error", err.Error())
		}
	}
	return &st, true
}

// PurgeExpiredAuthStates removes lapsed pending authorizations
func (s *SQLiteStore) PurgeExpiredAuthStates() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM auth_states WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "purge auth states", Err: err}
	}
	return result.RowsAffected()
}

// Clear removes all data from the store
func (s *SQLiteStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"auth_states", "api_tokens", "seller_accounts", "connections", "users"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			s.logger.Error("failed to clear table", "table", table, "error", err.Error())
		}
	}
}

// Stats returns statistics about the store
func (s *SQLiteStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats StoreStats
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM users", &stats.UserCount},
		{"SELECT COUNT(*) FROM connections", &stats.ConnectionCount},
		{"SELECT COUNT(*) FROM seller_accounts", &stats.AccountCount},
		{"SELECT COUNT(*) FROM api_tokens WHERE is_deleted = 0", &stats.APITokenCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			s.logger.Error("failed to count rows", "error", err.Error())
		}
	}
	return stats
}

// Ensure SQLiteStore implements the Store interface
var _ Store = (*SQLiteStore)(nil)
