package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ghrest.dev/ghrest/internal/cli/common"
	"ghrest.dev/ghrest/internal/gitdata"
	"ghrest.dev/ghrest/internal/output"
	"ghrest.dev/ghrest/internal/pipeline"
	"ghrest.dev/ghrest/internal/runtime"
)

// newWriteCmd creates the write command
func newWriteCmd() *cobra.Command {
	var (
		message string
		binary  bool
	)

	cmd := &cobra.Command{
		Use:   "write <path> [file|-]",
		Short: "Commit a single file to the branch",
		Long: `Commit a single file to the branch.

The content is read from the given local file, or from stdin when the file is
omitted or "-". The message defaults to "Changed <path>".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 2 {
				source = args[1]
			}
			content, err := readSource(cmd, source)
			if err != nil {
				return err
			}

			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				ui := output.NewPipelineProgressUI(ctx.Splog)
				ref, err := repo.Branch(ctx.Branch, pipeline.WithStageObserver(ui.Observe)).
					Write(ctx, args[0], content, message, binary)
				ui.Complete()
				if err != nil {
					return err
				}
				printAdvanced(ctx, ref)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	cmd.Flags().BoolVar(&binary, "binary", false, "Upload the content base64 encoded")

	return cmd
}

// newWriteManyCmd creates the write-many command
func newWriteManyCmd() *cobra.Command {
	var (
		message string
		binary  bool
	)

	cmd := &cobra.Command{
		Use:   "write-many <path=file>...",
		Short: "Commit several files to the branch in one commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]pipeline.PendingWrite, 0, len(args))
			for _, arg := range args {
				path, source, ok := strings.Cut(arg, "=")
				if !ok || path == "" || source == "" {
					return fmt.Errorf("invalid argument %q: expected <path>=<file>", arg)
				}
				content, err := readSource(cmd, source)
				if err != nil {
					return err
				}
				files = append(files, pipeline.PendingWrite{Path: path, Content: content, Binary: binary})
			}
			if message == "" {
				message = fmt.Sprintf("Changed %d files", len(files))
			}

			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				ui := output.NewPipelineProgressUI(ctx.Splog)
				ref, err := repo.Branch(ctx.Branch, pipeline.WithStageObserver(ui.Observe)).
					WriteMany(ctx, files, message)
				ui.Complete()
				if err != nil {
					return err
				}
				printAdvanced(ctx, ref)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	cmd.Flags().BoolVar(&binary, "binary", false, "Upload every file base64 encoded")

	return cmd
}

// readSource reads a local file, or stdin for "-"
func readSource(cmd *cobra.Command, source string) ([]byte, error) {
	if source == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return data, nil
}

func printAdvanced(ctx *runtime.Context, ref *gitdata.Ref) {
	ctx.Splog.Info("%s %s is now at %s",
		output.ColorSuccess("✓"),
		output.ColorBranchName(gitdata.BranchName(ref.Name), false),
		output.ColorSHA(ref.SHA))
}
