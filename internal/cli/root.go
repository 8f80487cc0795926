package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ghrest.dev/ghrest/internal/cli/common"
	"ghrest.dev/ghrest/internal/output"
)

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ghrest",
		Short: "ghrest reads and writes files on a GitHub branch through the REST API, without a clone",
		Long: `ghrest reads and writes files on a GitHub branch through the REST API, without a clone.

Every write becomes a single commit built from the Git data API:
blobs are uploaded in parallel, a tree and a commit are created, and the
branch is fast-forwarded. A branch that moved in the meantime is never overwritten.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			output.ConfigureColor(os.Stdout)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("repo", "", "Repository to operate on, as owner/name")
	flags.StringP("branch", "b", "", "Branch to operate on (default from config, or main)")
	flags.Bool("debug", false, "Print debug output, including every API request")
	flags.String("config", "", "Path to the config file (default $GHREST_CONFIG or ~/.config/ghrest/config.yaml)")
	_ = rootCmd.RegisterFlagCompletionFunc("branch", common.CompleteBranches)

	rootCmd.AddCommand(newReadCmd())
	rootCmd.AddCommand(newWriteCmd())
	rootCmd.AddCommand(newWriteManyCmd())
	rootCmd.AddCommand(newMoveCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newBranchCmd())
	rootCmd.AddCommand(newRefCmd())
	rootCmd.AddCommand(newLogCmd())
	rootCmd.AddCommand(newRateLimitCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}
