package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ghrest.dev/ghrest/internal/cli/common"
	"ghrest.dev/ghrest/internal/gitdata"
	"ghrest.dev/ghrest/internal/output"
	"ghrest.dev/ghrest/internal/runtime"
)

// newLogCmd creates the log command
func newLogCmd() *cobra.Command {
	var (
		path   string
		author string
		since  string
		until  string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List commits on the selected branch, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := gitdata.CommitFilter{Path: path, Author: author}
			var err error
			if filter.Since, err = parseDate(since); err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			if filter.Until, err = parseDate(until); err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}

			return common.Run(cmd, func(ctx *runtime.Context) error {
				repo, err := ctx.Repository()
				if err != nil {
					return err
				}
				filter.SHA = ctx.Branch
				commits, err := repo.ListCommits(ctx, filter)
				if err != nil {
					return err
				}
				if limit > 0 && len(commits) > limit {
					commits = commits[:limit]
				}
				for _, c := range commits {
					subject, _, _ := strings.Cut(c.Message, "\n")
					ctx.Splog.Info("%s %s %s", output.ColorSHA(c.SHA), subject,
						output.ColorDim(fmt.Sprintf("(%s, %s)", c.Author.Name, c.Author.When.Format("2006-01-02"))))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Only commits touching this path")
	cmd.Flags().StringVar(&author, "author", "", "Only commits by this login or email")
	cmd.Flags().StringVar(&since, "since", "", "Only commits after this date (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Only commits before this date (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "Show at most this many commits")

	return cmd
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
