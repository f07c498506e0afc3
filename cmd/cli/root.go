package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "living-docs-cli",
	Short: "living-docs-cli drives the documentation pipeline from a CI job",
	Long:  `A command-line interface for running and inspecting the living-docs pipeline.`,
}

// Execute runs the CLI's root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}
