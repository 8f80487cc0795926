package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ghrest.dev/ghrest/internal/cli/common"
	"ghrest.dev/ghrest/internal/output"
	"ghrest.dev/ghrest/internal/runtime"
)

// newBranchCmd creates the branch command and its subcommands
func newBranchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "List, create and delete remote branches",
	}

	cmd.AddCommand(newBranchListCmd())
	cmd.AddCommand(newBranchCreateCmd())
	cmd.AddCommand(newBranchDeleteCmd())

	return cmd
}

func newBranchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List branches, marking the selected one",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				branches, err := repo.ListBranches(ctx)
				if err != nil {
					return err
				}
				for _, name := range branches {
					marker := "  "
					if name == ctx.Branch {
						marker = "* "
					}
					ctx.Splog.Info("%s%s", marker, output.ColorBranchName(name, name == ctx.Branch))
				}
				return nil
			})
		},
	}
}

func newBranchCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a branch at the tip of the selected branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				ref, err := repo.Branch(ctx.Branch).CreateBranch(ctx, args[0])
				if err != nil {
					return err
				}
				ctx.Splog.Info("%s Created %s at %s", output.ColorSuccess("✓"),
					output.ColorBranchName(args[0], false), output.ColorSHA(ref.SHA))
				return nil
			})
		},
	}
}

func newBranchDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:               "delete <name>",
		Short:             "Delete a remote branch",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: common.CompleteBranches,
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				ok, err := common.Confirm(fmt.Sprintf("Delete branch %s on %s?", args[0], ctx.RepoName), yes)
				if err != nil {
					return err
				}
				if !ok {
					ctx.Splog.Info("Aborted.")
					return nil
				}
				if err := repo.DeleteRef(ctx, "heads/"+args[0]); err != nil {
					return err
				}
				ctx.Splog.Info("%s Deleted %s", output.ColorSuccess("✓"), output.ColorBranchName(args[0], false))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
