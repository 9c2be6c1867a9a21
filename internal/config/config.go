package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version    string           `yaml:"version"`
	Server     ServerConfig     `yaml:"server"`
	API        APIConfig        `yaml:"api"`
	Ebay       EbayConfig       `yaml:"ebay"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Browser    BrowserConfig    `yaml:"browser"`
	Refresher  RefresherConfig  `yaml:"refresher"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Cleanup    CleanupConfig    `yaml:"cleanup"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"` // "1.2" or "1.3"
}

// APIConfig contains API-related configuration.
type APIConfig struct {
	AdminKeys []string        `yaml:"admin_keys"`
	KeyHeader string          `yaml:"key_header"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains per-IP rate limiting configuration for the
// whole server. Per-token hourly limits live on the token itself.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// EbayConfig contains eBay-facing HTTP configuration.
type EbayConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	BrowserTLS bool          `yaml:"browser_tls"` // uTLS fingerprint for outbound calls
}

// EncryptionConfig holds the at-rest encryption key for stored secrets.
type EncryptionConfig struct {
	// Key is the base64-encoded AES-256 key. Usually injected as
	// ${EBAYGATE_ENCRYPTION_KEY}.
	Key string `yaml:"key"`
}

// BrowserConfig contains automated-login configuration.
type BrowserConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Headless bool          `yaml:"headless"`
	ExecPath string        `yaml:"exec_path"`
	// Per-step waits. Zero values fall back to the defaults used by
	// the authorizer (10s form fields, 15s consent, 30s redirect).
	FieldTimeout    time.Duration `yaml:"field_timeout"`
	ConsentTimeout  time.Duration `yaml:"consent_timeout"`
	RedirectTimeout time.Duration `yaml:"redirect_timeout"`
}

// RefresherConfig contains the proactive token refresher configuration.
type RefresherConfig struct {
	Enabled bool `yaml:"enabled"`
	// Schedule is a cron expression with seconds field.
	Schedule string `yaml:"schedule"`
	// Window selects accounts expiring within this duration.
	Window      time.Duration `yaml:"window"`
	Concurrency int           `yaml:"concurrency"`
}

// AlertsConfig contains operator alert configuration.
type AlertsConfig struct {
	Enabled            bool          `yaml:"enabled"`
	TelegramToken      string        `yaml:"telegram_token"`
	TelegramChatID     int64         `yaml:"telegram_chat_id"`
	DedupWindow        time.Duration `yaml:"dedup_window"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
}

// CleanupConfig contains retention configuration.
type CleanupConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Interval          time.Duration `yaml:"interval"`
	AuditRetention    time.Duration `yaml:"audit_retention"`
	DeletedTokenGrace time.Duration `yaml:"deleted_token_grace"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 1 and 65535, got %d", c.Server.HTTPPort)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls requires cert_file and key_file when enabled")
		}
		if v := c.Server.TLS.MinVersion; v != "" && v != "1.2" && v != "1.3" {
			return fmt.Errorf("server.tls.min_version must be \"1.2\" or \"1.3\", got %q", v)
		}
	}
	if c.Encryption.Key == "" {
		return fmt.Errorf("encryption.key is required")
	}
	if c.API.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("api.rate_limit.requests_per_minute cannot be negative")
	}
	if c.Refresher.Enabled && c.Refresher.Window <= 0 {
		return fmt.Errorf("refresher.window must be positive when the refresher is enabled")
	}
	if c.Alerts.Enabled && c.Alerts.TelegramToken == "" {
		return fmt.Errorf("alerts.telegram_token is required when alerts are enabled")
	}
	return nil
}
