package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ebaygate/ebaygate/internal/crypto"
)

// keygenCmd generates a fresh AES-256 key for at-rest encryption.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new at-rest encryption key",
	Long: `Generate a random AES-256 key, base64-encoded, for encrypting
stored secrets (client secrets, seller passwords, OAuth tokens).

Put the output into encryption.key in the config file, or export it as
EBAYGATE_ENCRYPTION_KEY and reference ${EBAYGATE_ENCRYPTION_KEY} there.

Changing the key makes previously stored secrets unreadable.`,
	RunE: runKeygen,
}

func init() {
	RootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	if globalFlags.JSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]string{"key": key})
	}

	fmt.Println(key)
	return nil
}
