package cli

import (
	"github.com/spf13/cobra"

	"ghrest.dev/ghrest/internal/cli/common"
	"ghrest.dev/ghrest/internal/output"
	"ghrest.dev/ghrest/internal/pipeline"
	"ghrest.dev/ghrest/internal/runtime"
)

// newMoveCmd creates the mv command
func newMoveCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "mv <path> <new-path>",
		Short: "Rename a file or directory in one commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				ui := output.NewPipelineProgressUI(ctx.Splog)
				ref, err := repo.Branch(ctx.Branch, pipeline.WithStageObserver(ui.Observe)).
					Move(ctx, args[0], args[1], message)
				ui.Complete()
				if err != nil {
					return err
				}
				printAdvanced(ctx, ref)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message (default \"Moved <path> to <new-path>\")")

	return cmd
}

// newRemoveCmd creates the rm command
func newRemoveCmd() *cobra.Command {
	var (
		message string
		sha     string
	)

	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file in one commit",
		Long: `Delete a file in one commit.

With --sha the delete is refused if the file no longer has that blob hash,
so a file read earlier (ghrest read --sha) is never deleted after someone else changed it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				commit, err := repo.Branch(ctx.Branch).Remove(ctx, args[0], message, sha)
				if err != nil {
					return err
				}
				ctx.Splog.Info("%s Deleted %s in %s", output.ColorSuccess("✓"), output.ColorPath(args[0]), output.ColorSHA(commit.SHA))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message (default \"Deleted <path>\")")
	cmd.Flags().StringVar(&sha, "sha", "", "Blob hash the file must still have")

	return cmd
}
