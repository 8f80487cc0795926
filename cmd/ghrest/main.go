package main

import (
	"os"

	"ghrest.dev/ghrest/internal/cli"
	"ghrest.dev/ghrest/internal/output"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := cli.NewRootCmd(version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		splog, _ := output.NewSplogWithOptions(output.SplogOptions{Writer: os.Stderr})
		cli.PrintError(splog, err)
		os.Exit(1)
	}
}
