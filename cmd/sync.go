package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/billing-sandbox/internal/bootstrap"
	"github.com/jmehdipour/billing-sandbox/internal/client"
	"github.com/jmehdipour/billing-sandbox/internal/loader"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy every collection from the payment API into the database",
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

		api := client.New(bootstrap.ClientConfig(cfg.Loader))
		sum, err := loader.New(api, log, writers[0], writers[1:]...).Run(ctx)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "============================================================")
		fmt.Fprintf(out, "Sync complete (run %s, %s)\n", sum.RunID, sum.Duration.Round(time.Millisecond))
		fmt.Fprintf(out, "Customers:     %d\n", sum.Customers)
		fmt.Fprintf(out, "Subscriptions: %d\n", sum.Subscriptions)
		fmt.Fprintf(out, "Charges:       %d\n", sum.Charges)
		fmt.Fprintf(out, "Invoices:      %d\n", sum.Invoices)
		fmt.Fprintf(out, "Active MRR:    $%s\n", sum.ActiveMRR.StringFixed(2))
		fmt.Fprintln(out, "============================================================")
		return nil
	},
}
