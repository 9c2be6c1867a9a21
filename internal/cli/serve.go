package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ebaygate/ebaygate/internal/alerts"
	"github.com/ebaygate/ebaygate/internal/api"
	"github.com/ebaygate/ebaygate/internal/browserauth"
	"github.com/ebaygate/ebaygate/internal/cleanup"
	"github.com/ebaygate/ebaygate/internal/config"
	"github.com/ebaygate/ebaygate/internal/crypto"
	"github.com/ebaygate/ebaygate/internal/ebay"
	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/metrics"
	"github.com/ebaygate/ebaygate/internal/oauth"
	"github.com/ebaygate/ebaygate/internal/refresher"
	"github.com/ebaygate/ebaygate/internal/store"
	"github.com/ebaygate/ebaygate/internal/telegram"
	"github.com/ebaygate/ebaygate/internal/token"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the ebaygate server",
	Long: `Start the gateway server in main mode.

This command starts the HTTP server that manages eBay OAuth tokens,
proxies Sell API calls, and runs the background refresher, alerting
and retention loops.

Example:
  ebaygate serve --config config.yaml --db ./data/ebaygate.db

The server will start listening on the address configured in the config file.`,
	RunE: runServe,
}

var serveFlags struct {
	Host       string
	Port       int
	Timeout    time.Duration
	TLS        bool
	TLSCert    string
	TLSKey     string
	TLSVersion string
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", 0, "Shutdown timeout (overrides config)")
	serveCmd.Flags().BoolVar(&serveFlags.TLS, "tls", false, "Enable TLS/HTTPS")
	serveCmd.Flags().StringVar(&serveFlags.TLSCert, "cert", "", "TLS certificate file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSKey, "key", "", "TLS key file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSVersion, "tls-version", "", "Minimum TLS version (1.2 or 1.3)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Local .env files carry EBAYGATE_ENCRYPTION_KEY and Telegram
	// credentials in development; missing files are fine.
	_ = godotenv.Load()

	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	applyServeFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	broadcaster := logging.NewBroadcaster(256)
	broadcaster.Start()

	logger := logging.NewLogger(
		logging.WithLevel(logging.LogLevel(cfg.Server.LogLevel)),
		logging.WithService("ebaygate"),
		logging.WithBroadcaster(broadcaster),
	)

	loader.SetOnChange(func(next *config.Config) {
		logger.Info("configuration reloaded", "path", globalFlags.Config)
	})
	if err := loader.StartWatcher(); err != nil {
		logger.Warn("config watcher unavailable", "error", err.Error())
	}

	box, err := crypto.NewBoxFromBase64(cfg.Encryption.Key)
	if err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}

	st, err := store.NewSQLiteStore(globalFlags.DBPath, box)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	auditPath := filepath.Join(filepath.Dir(globalFlags.DBPath), "audit.db")
	auditRetention := cfg.Cleanup.AuditRetention
	if auditRetention <= 0 {
		auditRetention = 30 * 24 * time.Hour
	}
	audit, err := logging.NewSQLiteAuditStoreWithRetention(auditPath, auditRetention)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("failed to open audit store: %w", err)
	}

	mx := metrics.NewMetrics("ebaygate")

	ebayTimeout := cfg.Ebay.Timeout
	if ebayTimeout <= 0 {
		ebayTimeout = 30 * time.Second
	}
	oauthHTTP := &http.Client{
		Timeout:   ebayTimeout,
		Transport: ebay.NewTransport(cfg.Ebay.BrowserTLS),
	}
	oc := oauth.NewClient(
		oauth.WithLogger(logger),
		oauth.WithHTTPClient(oauthHTTP),
	)

	var (
		alertSvc *alerts.Service
		digest   *alerts.DigestScheduler
		tgBot    *telegram.Bot
	)
	if cfg.Alerts.Enabled {
		tg, err := telegram.NewClient(cfg.Alerts.TelegramToken)
		if err != nil {
			_ = audit.Close()
			_ = st.Close()
			return fmt.Errorf("failed to create telegram client: %w", err)
		}
		chatID := cfg.Alerts.TelegramChatID
		notifier := alerts.NotifierFunc(func(text string) error {
			return tg.SendMessage(chatID, text)
		})
		alertSvc = alerts.NewService(alerts.Config{
			Enabled:            true,
			DedupWindow:        cfg.Alerts.DedupWindow,
			RateLimitPerMinute: cfg.Alerts.RateLimitPerMinute,
		}, notifier, alerts.WithLogger(logger))
		alertSvc.Start()

		digest = alerts.NewDigestScheduler(st, notifier, "", logger)
		if err := digest.Start(); err != nil {
			logger.Warn("daily digest disabled", "error", err.Error())
			digest = nil
		}

		tgBot = telegram.NewBot(tg, chatID, st, telegram.WithLogger(logger))
		tgBot.Start()
	}

	mgrOpts := []token.ManagerOption{
		token.WithLogger(logger),
		token.WithMetrics(mx),
	}
	if alertSvc != nil {
		mgrOpts = append(mgrOpts, token.WithReauthHandler(alertSvc.ReauthRequired()))
	}
	mgr := token.NewManager(st, oc, mgrOpts...)

	var authorizer browserauth.Authorizer
	if cfg.Browser.Enabled {
		chromeOpts := []browserauth.ChromeOption{
			browserauth.WithLogger(logger),
			browserauth.WithStepTimeouts(cfg.Browser.FieldTimeout, cfg.Browser.ConsentTimeout, cfg.Browser.RedirectTimeout),
		}
		if cfg.Browser.ExecPath != "" {
			chromeOpts = append(chromeOpts, browserauth.WithExecPath(cfg.Browser.ExecPath))
		}
		if !cfg.Browser.Headless {
			chromeOpts = append(chromeOpts, browserauth.WithHeadful())
		}
		authorizer = browserauth.NewChromeAuthorizer(chromeOpts...)
	}

	var refr *refresher.Refresher
	if cfg.Refresher.Enabled {
		refrOpts := []refresher.Option{refresher.WithLogger(logger)}
		if alertSvc != nil {
			refrOpts = append(refrOpts, refresher.WithFailureHandler(alertSvc.RefreshFailed))
		}
		refr = refresher.New(st, mgr, refresher.Config{
			Schedule:    cfg.Refresher.Schedule,
			Window:      cfg.Refresher.Window,
			Concurrency: cfg.Refresher.Concurrency,
		}, refrOpts...)
		if err := refr.Start(); err != nil {
			_ = audit.Close()
			_ = st.Close()
			return fmt.Errorf("failed to start refresher: %w", err)
		}
	}

	var janitor *cleanup.Manager
	if cfg.Cleanup.Enabled {
		janitor = cleanup.NewManager(st, cleanup.Config{
			Interval:          cfg.Cleanup.Interval,
			AuditRetention:    cfg.Cleanup.AuditRetention,
			DeletedTokenGrace: cfg.Cleanup.DeletedTokenGrace,
		}, cleanup.WithLogger(logger), cleanup.WithAuditStore(audit))
		janitor.Start()
	}

	server := api.NewServer(cfg, api.Deps{
		Store:       st,
		Manager:     mgr,
		OAuth:       oc,
		Authorizer:  authorizer,
		Logger:      logger,
		Metrics:     mx,
		Audit:       audit,
		Broadcaster: broadcaster,
	})

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if serveFlags.Timeout > 0 {
		shutdownTimeout = serveFlags.Timeout
	}
	go func() {
		sig := api.WaitForSignal(api.SetupSignalHandler())
		logger.Info("received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", "error", err.Error())
		}
		if refr != nil {
			refr.Stop()
		}
		if janitor != nil {
			janitor.Stop()
		}
		if digest != nil {
			digest.Stop()
		}
		if tgBot != nil {
			tgBot.Stop()
		}
		if alertSvc != nil {
			alertSvc.Stop()
		}
		loader.StopWatcher()
		broadcaster.Stop()
		if err := audit.Close(); err != nil {
			log.Printf("Error closing audit store: %v", err)
		}
		if err := st.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	if cfg.Server.TLS.Enabled {
		log.Printf("Starting ebaygate HTTPS server on %s (min TLS %s)", addr, cfg.Server.TLS.MinVersion)
	} else {
		log.Printf("Starting ebaygate HTTP server on %s", addr)
	}
	log.Printf("Database: %s", globalFlags.DBPath)

	if err := server.Run(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// applyServeFlags overlays command-line overrides onto the loaded config.
func applyServeFlags(cfg *config.Config) {
	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if serveFlags.TLS {
		cfg.Server.TLS.Enabled = true
	}
	if serveFlags.TLSCert != "" {
		cfg.Server.TLS.CertFile = serveFlags.TLSCert
	}
	if serveFlags.TLSKey != "" {
		cfg.Server.TLS.KeyFile = serveFlags.TLSKey
	}
	if serveFlags.TLSVersion != "" {
		cfg.Server.TLS.MinVersion = serveFlags.TLSVersion
	}
	if serveFlags.Timeout > 0 {
		cfg.Server.ShutdownTimeout = serveFlags.Timeout
	}
}
