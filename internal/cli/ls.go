package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"ghrest.dev/ghrest/internal/cli/common"
	"ghrest.dev/ghrest/internal/output"
	"ghrest.dev/ghrest/internal/runtime"
)

// newLsCmd creates the ls command
func newLsCmd() *cobra.Command {
	var showSHA bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"tree"},
		Short:   "Show the file tree at the tip of the branch",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				entries, err := repo.ReadTree(ctx, ctx.Branch, true)
				if err != nil {
					return err
				}
				lines := output.RenderTree(ctx.Branch, entries, output.TreeRenderOptions{ShowSHA: showSHA})
				ctx.Splog.Page(strings.Join(lines, "\n") + "\n")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showSHA, "sha", false, "Show object hashes")

	return cmd
}
