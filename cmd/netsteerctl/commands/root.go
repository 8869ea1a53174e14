package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// statusPath is the daemon's status snapshot file, written by netsteerd
	// (config: status.path).
	statusPath string
)

// rootCmd is the top-level cobra command for netsteerctl.
var rootCmd = &cobra.Command{
	Use:   "netsteerctl",
	Short: "CLI client for the netsteerd daemon",
	Long:  "netsteerctl reads netsteerd's JSON status snapshot to inspect steering contexts and tracked clients.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&statusPath, "status-path", "/var/run/netsteerd/status.json",
		"path to netsteerd's status snapshot file")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(contextCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
