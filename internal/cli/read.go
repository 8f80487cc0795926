package cli

import (
	"os"

	"github.com/spf13/cobra"

	"ghrest.dev/ghrest/internal/cli/common"
	"ghrest.dev/ghrest/internal/runtime"
)

// newReadCmd creates the read command
func newReadCmd() *cobra.Command {
	var (
		binary  bool
		showSHA bool
		outFile string
	)

	cmd := &cobra.Command{
		Use:     "read <path>",
		Aliases: []string{"cat"},
		Short:   "Print a file at the tip of the branch",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				file, err := repo.Branch(ctx.Branch).Read(ctx, args[0], binary)
				if err != nil {
					return err
				}

				switch {
				case showSHA:
					ctx.Splog.Info("%s", file.SHA)
				case outFile != "":
					return os.WriteFile(outFile, file.Content, 0600)
				default:
					ctx.Splog.Page(string(file.Content))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&binary, "binary", false, "Read the file as binary content")
	cmd.Flags().BoolVar(&showSHA, "sha", false, "Print the blob hash instead of the content")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the content to a file instead of stdout")

	return cmd
}
