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

var inspectFlags struct {
	UserID string
}

// accountsCmd lists authorized seller accounts.
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List authorized seller accounts",
	RunE:  runListAccounts,
}

// connectionsCmd lists developer-app connections.
var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List developer-app connections",
	RunE:  runListConnections,
}

// tokensCmd lists internal API tokens.
var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List internal API tokens",
	RunE:  runListTokens,
}

func init() {
	for _, cmd := range []*cobra.Command{accountsCmd, connectionsCmd, tokensCmd} {
		cmd.Flags().StringVar(&inspectFlags.UserID, "user", "", "Filter by user ID")
		RootCmd.AddCommand(cmd)
	}
}

// openStore opens the SQLite store read-mostly, decrypting secrets with
// the configured key when one is available.
func openStore() (store.Store, error) {
	_ = godotenv.Load()

	var box *crypto.Box
	if cfg, err := config.NewLoader(globalFlags.Config).Load(); err == nil && cfg.Encryption.Key != "" {
		box, err = crypto.NewBoxFromBase64(cfg.Encryption.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
	}

	st, err := store.NewSQLiteStore(globalFlags.DBPath, box)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", globalFlags.DBPath, err)
	}
	return st, nil
}

func runListAccounts(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	accounts := st.ListAccounts(inspectFlags.UserID)
	if globalFlags.JSON {
		return json.NewEncoder(os.Stdout).Encode(accounts)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEBAY USER\tSTATUS\tEXPIRES IN\tSCOPES")
	now := time.Now()
	for _, a := range accounts {
		remaining := a.ExpiresAt.Sub(now).Truncate(time.Second)
		expires := remaining.String()
		if remaining <= 0 {
			expires = "expired"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			a.ID, a.FriendlyName, a.EbayUsername, a.Status, expires, len(a.Scopes))
	}
	return w.Flush()
}

func runListConnections(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	conns := st.ListConnections(inspectFlags.UserID)
	if globalFlags.JSON {
		return json.NewEncoder(os.Stdout).Encode(conns)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENVIRONMENT\tACTIVE\tAUTO-LOGIN")
	for _, c := range conns {
		autoLogin := "no"
		if c.SupportsAutomatedLogin() {
			autoLogin = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			c.ID, c.Name, c.Environment, c.IsActive, autoLogin)
	}
	return w.Flush()
}

func runListTokens(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	tokens := st.ListAPITokens(inspectFlags.UserID)
	if globalFlags.JSON {
		return json.NewEncoder(os.Stdout).Encode(tokens)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTOKEN\tACTIVE\tENDPOINTS\tLAST USED")
	for _, t := range tokens {
		lastUsed := "never"
		if t.LastUsedAt != nil {
			lastUsed = t.LastUsedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%v\t%s\n",
			t.ID, t.Name, t.TokenMasked, t.IsActive, t.Permissions.Endpoints, lastUsed)
	}
	return w.Flush()
}
