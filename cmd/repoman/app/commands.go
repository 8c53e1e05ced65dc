// Package app provides the entry point for the repoman command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jwbla/repoman/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "repoman",
	DisableAutoGenTag: true,
	Short:             "repoman manages a vault of git repositories with shared-object clones",
	Long: `repoman maintains a vault of git repositories: one pristine bare mirror per
repository plus any number of lightweight working copies that share the
mirror's object store. A background agent keeps every mirror synced on its
own interval and fast-forwards clones when upstream moves.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the repoman CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		// Re-initialize so --debug takes effect.
		logger.Initialize()
	}

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(aliasCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(agentCmd)

	return rootCmd
}
