package cli

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	DBPath  string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "ebaygate",
	Short: "ebaygate - eBay seller OAuth gateway",
	Long: `ebaygate keeps eBay seller OAuth tokens fresh and proxies Sell API
calls on behalf of internal services.

It manages developer-app connections, walks sellers through the
consent flow (interactively or with a headless browser), refreshes
access tokens before they expire, and exposes the Sell Inventory,
Account and Fulfillment APIs behind internal API tokens.

Usage:
  ebaygate [command] [flags]

Available Commands:
  serve        Start the gateway server (main mode)
  keygen       Generate a new at-rest encryption key
  accounts     List authorized seller accounts
  connections  List developer-app connections
  tokens       List internal API tokens
  doctor       Diagnose configuration and database issues

Flags:
  --config string   Path to configuration file (default "config.yaml")
  --db string       Path to SQLite database (default "./data/ebaygate.db")
  --verbose         Enable verbose output
  --json            Output in JSON format

Use "ebaygate [command] --help" for more information about a command.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("EBAYGATE_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	dbPath := os.Getenv("EBAYGATE_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/ebaygate.db"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DBPath, "db", dbPath, "Path to SQLite database")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ebaygate",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

func printVersion() {
	info := GetVersionInfo()
	println("ebaygate Version:", info.Version)
	println("Go Version:", info.GoVersion)
	println("OS/Arch:", info.OS+"/"+info.Arch)
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
