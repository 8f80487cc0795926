package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ghrest.dev/ghrest/internal/cli/common"
	"ghrest.dev/ghrest/internal/runtime"
)

// newRefCmd creates the ref command
func newRefCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ref",
		Short: "Inspect or move the selected branch",
	}

	cmd.AddCommand(&cobra.Command{
		Use:               "show [branch]",
		Short:             "Print the commit a branch points at",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: common.CompleteBranches,
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				branch := ctx.Branch
				if len(args) == 1 {
					branch = args[0]
				}
				sha, err := repo.ReadRef(ctx, "heads/"+branch)
				if err != nil {
					return err
				}
				ctx.Splog.Info("%s", sha)
				return nil
			})
		},
	})

	cmd.AddCommand(newRefUpdateCmd())

	return cmd
}

func newRefUpdateCmd() *cobra.Command {
	var (
		force bool
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "update <sha>",
		Short: "Move the selected branch to a commit",
		Long: `Move the selected branch to a commit.

Without --force the update is refused unless it is a fast-forward.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				if force {
					ok, err := common.Confirm(fmt.Sprintf("Force %s to %s? Commits only on the branch may be lost.", ctx.Branch, args[0]), yes)
					if err != nil {
						return err
					}
					if !ok {
						ctx.Splog.Info("Aborted.")
						return nil
					}
				}
				ref, err := repo.AdvanceRef(ctx, ctx.Branch, args[0], force)
				if err != nil {
					return err
				}
				printAdvanced(ctx, ref)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Allow an update that is not a fast-forward")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
