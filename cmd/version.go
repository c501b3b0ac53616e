package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/billing-sandbox/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the configured version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cfg.App.Name, cfg.App.Version)
		return nil
	},
}
