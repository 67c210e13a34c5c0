// Package cli implements the doctor command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overwritten at build time.
var Version = "dev"

// NewRootCmd builds the doctor command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "doctor",
		Short: "AI-assisted diagnosis of failed deployments",
		Long: `doctor sends a build or runtime log to an AI model and prints either a
diagnosis with suggested fixes or corrected configuration files.

The API key is read from AI_API_KEY (a .env file in the working directory is loaded too).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		NewAnalyzeCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "doctor version %s\n", Version)
		},
	}
}
