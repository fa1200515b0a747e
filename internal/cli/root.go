// Package cli wires the cobra command tree for the dothttp binary:
// execute (the default), export-environment, and export-collection.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exitCode  = ExitSuccess
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "dothttp [OPTS] FILES...",
	Short: "Run text-driven HTTP request scripts",
	Long: `dothttp reads .http request script files, substitutes variables from
layered scopes, issues the requests in order, and runs any pre-request or
response handler scripts attached to them.`,
	Args: cobra.ArbitraryArgs,
	RunE: runExecute,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dothttp version %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", buildTime)
	},
}

func init() {
	registerExecuteFlags(rootCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(exportEnvironmentCmd)
	rootCmd.AddCommand(exportCollectionCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI and terminates the process with the exit code
// spec.md §6 assigns: 2 for a usage/parse/config failure, otherwise
// whatever the reporter decided (0 clean, 1 a test failed or a request
// errored).
func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitUsageError)
	}
	os.Exit(exitCode)
}
