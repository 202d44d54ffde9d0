// Package commands wires the CLI: the HTTP server plus offline
// import and proposal runs against the same database.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finlab/reconcile-engine/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands
// registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "reconcile-engine",
		Short:   "Bank statement reconciliation engine",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newProposeCommand())

	return rootCmd
}
