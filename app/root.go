// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "prohelper-web",
	Short: "ProHelper web is the dashboard for the ProHelper construction platform",
	Long: `ProHelper web serves the ProHelper marketing site, the organization
dashboard with billing and module management, and the holding management panel.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
