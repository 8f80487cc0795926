package cli

import (
	"time"

	"github.com/spf13/cobra"

	"ghrest.dev/ghrest/internal/cli/common"
	"ghrest.dev/ghrest/internal/runtime"
)

// newRateLimitCmd creates the rate-limit command
func newRateLimitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate-limit",
		Short: "Show the API quota of the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				rate, err := ctx.Client.RateLimit(ctx)
				if err != nil {
					return err
				}
				ctx.Splog.Info("%d of %d requests remaining", rate.Remaining, rate.Limit)
				if !rate.Reset.IsZero() {
					ctx.Splog.Info("Resets at %s", rate.Reset.Local().Format(time.Kitchen))
				}
				return nil
			})
		},
	}
}

// newWhoamiCmd creates the whoami command
func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user the configured credentials belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				me, err := ctx.Client.CurrentUser()
				if err != nil {
					return err
				}
				profile, err := me.Profile(ctx)
				if err != nil {
					return err
				}
				if name := profile.GetName(); name != "" {
					ctx.Splog.Info("%s (%s)", profile.GetLogin(), name)
				} else {
					ctx.Splog.Info("%s", profile.GetLogin())
				}
				return nil
			})
		},
	}
}
