package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/bootstrap"
	"github.com/jmehdipour/billing-sandbox/internal/repository"
)

var migrateSample bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the replicated billing tables (and the ClickHouse mirror when enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, ctx, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		conn, dialect, err := bootstrap.ConnectDatabase(ctx, cfg.Database, log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer conn.Close()

		writers, closeWriters, err := bootstrap.BillingWriters(ctx, cfg, conn, dialect)
		if err != nil {
			return err
		}
		defer closeWriters()

		for _, w := range writers {
			if err := w.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("migrate %s: %w", w.Target(), err)
			}
			log.Info("schema ready", zap.String("target", w.Target()))
		}

		if migrateSample {
			if err := repository.NewSampleRepository(conn, dialect, 0).CreateTables(ctx); err != nil {
				return fmt.Errorf("create sample tables: %w", err)
			}
			log.Info("sample tables ready")
		}

		fmt.Fprintln(cmd.OutOrStdout(), ">> Migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSample, "sample", false, "also create the product-analytics sample tables")
}
