package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/billing-sandbox/cmd/worker"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:           "billing-sandbox",
		Short:         "Synthetic billing data, a mock payment API and a bulk loader",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}
