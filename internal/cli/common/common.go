// Package common provides shared helper functions for CLI commands.
package common

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"ghrest.dev/ghrest/internal/config"
	"ghrest.dev/ghrest/internal/output"
	"ghrest.dev/ghrest/internal/runtime"
)

// Run is a helper that provides a runtime context to a command's execution function
func Run(cmd *cobra.Command, fn func(ctx *runtime.Context) error) error {
	ctx, err := NewContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Splog.Close() }()
	return fn(ctx)
}

// NewContext builds a runtime context from the config file, the environment and the global flags
func NewContext(cmd *cobra.Command) (*runtime.Context, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	debug, _ := flags.GetBool("debug")
	splog, err := output.NewSplogWithOptions(output.SplogOptions{
		Writer: cmd.OutOrStdout(),
		Debug:  debug,
	})
	if err != nil {
		return nil, err
	}

	ctx, err := runtime.NewContext(cmd.Context(), cfg, configPath, splog)
	if err != nil {
		return nil, err
	}
	if repo, _ := flags.GetString("repo"); repo != "" {
		ctx.RepoName = repo
	}
	if branch, _ := flags.GetString("branch"); branch != "" {
		ctx.Branch = branch
	}
	return ctx, nil
}

// Confirm asks a yes/no question. It answers yes without asking when
// assumeYes is set or there is no terminal to ask on.
func Confirm(message string, assumeYes bool) (bool, error) {
	if assumeYes || !output.IsTTY() {
		return true, nil
	}
	ok := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, fmt.Errorf("canceled")
	}
	return ok, nil
}

// CompleteBranches is a helper for cobra.ValidArgsFunction and RegisterFlagCompletionFunc
// that returns all branch names in the selected repository.
func CompleteBranches(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	ctx, err := NewContext(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	repo, err := ctx.Repository()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	branches, err := repo.ListBranches(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return branches, cobra.ShellCompDirectiveNoFileComp
}
