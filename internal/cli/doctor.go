package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ebaygate/ebaygate/internal/config"
	"github.com/ebaygate/ebaygate/internal/crypto"
	"github.com/ebaygate/ebaygate/internal/store"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration and database issues",
	Long: `Perform a diagnostic pass over the local installation.

This command checks:
- Configuration file presence and validity
- Encryption key format
- Database accessibility and record counts
- Headless browser availability (when enabled)
- Telegram alert configuration

Example:
  ebaygate doctor`,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

// DoctorCheck is a single diagnostic result.
type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // OK, WARN or FAIL
	Message string `json:"message"`
}

// DoctorReport is the full diagnostic output.
type DoctorReport struct {
	Timestamp time.Time     `json:"timestamp"`
	Checks    []DoctorCheck `json:"checks"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	report := DoctorReport{Timestamp: time.Now().UTC()}
	add := func(name, status, message string) {
		report.Checks = append(report.Checks, DoctorCheck{Name: name, Status: status, Message: message})
	}

	cfg, err := config.NewLoader(globalFlags.Config).Load()
	switch {
	case err != nil:
		add("config", "FAIL", fmt.Sprintf("cannot load %s: %v", globalFlags.Config, err))
	default:
		if verr := cfg.Validate(); verr != nil {
			add("config", "FAIL", verr.Error())
		} else {
			add("config", "OK", fmt.Sprintf("loaded %s", globalFlags.Config))
		}
	}

	var box *crypto.Box
	if cfg != nil && cfg.Encryption.Key != "" {
		box, err = crypto.NewBoxFromBase64(cfg.Encryption.Key)
		if err != nil {
			add("encryption", "FAIL", err.Error())
		} else {
			add("encryption", "OK", "AES-256 key parsed")
		}
	} else {
		add("encryption", "WARN", "no encryption key configured, secrets stored in plaintext")
	}

	st, err := store.NewSQLiteStore(globalFlags.DBPath, box)
	if err != nil {
		add("database", "FAIL", fmt.Sprintf("cannot open %s: %v", globalFlags.DBPath, err))
	} else {
		stats := st.Stats()
		add("database", "OK", fmt.Sprintf("%s: %d users, %d connections, %d accounts, %d tokens",
			globalFlags.DBPath, stats.UserCount, stats.ConnectionCount, stats.AccountCount, stats.APITokenCount))

		expiring := st.ListExpiringAccounts(time.Hour)
		if len(expiring) > 0 {
			add("accounts", "WARN", fmt.Sprintf("%d account(s) expire within the hour", len(expiring)))
		} else {
			add("accounts", "OK", "no accounts close to expiry")
		}
		_ = st.Close()
	}

	if cfg != nil && cfg.Browser.Enabled {
		if cfg.Browser.ExecPath == "" {
			add("browser", "OK", "automated login enabled, using system Chrome")
		} else if _, err := os.Stat(cfg.Browser.ExecPath); err != nil {
			add("browser", "FAIL", fmt.Sprintf("exec_path %s not found", cfg.Browser.ExecPath))
		} else {
			add("browser", "OK", fmt.Sprintf("automated login enabled, exec_path %s", cfg.Browser.ExecPath))
		}
	}

	if cfg != nil && cfg.Alerts.Enabled {
		if cfg.Alerts.TelegramChatID == 0 {
			add("alerts", "WARN", "alerts enabled but telegram_chat_id is unset")
		} else {
			add("alerts", "OK", "telegram alerts configured")
		}
	}

	return outputDoctorReport(report)
}

func outputDoctorReport(report DoctorReport) error {
	if globalFlags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tSTATUS\tMESSAGE")
	failed := false
	for _, c := range report.Checks {
		if c.Status == "FAIL" {
			failed = true
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Status, c.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("diagnostic found failing checks")
	}
	return nil
}
