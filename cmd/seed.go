package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/bootstrap"
	"github.com/jmehdipour/billing-sandbox/internal/generator"
	"github.com/jmehdipour/billing-sandbox/internal/repository"
)

var seedYes bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the product-analytics sample dataset (users, subscriptions, events, charges)",
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

		data, err := generator.BuildSample(bootstrap.SampleOptions(cfg.Seed))
		if err != nil {
			return fmt.Errorf("generate sample: %w", err)
		}

		repo := repository.NewSampleRepository(conn, dialect, cfg.Loader.BatchSize)
		return runSeed(ctx, repo, data, seedPrompt{
			in:        cmd.InOrStdin(),
			out:       cmd.OutOrStdout(),
			assumeYes: seedYes || cfg.Seed.AssumeYes,
		}, log)
	},
}

func init() {
	seedCmd.Flags().BoolVarP(&seedYes, "yes", "y", false, "overwrite existing data without asking")
}

type seedPrompt struct {
	in        io.Reader
	out       io.Writer
	assumeYes bool
}

// confirm asks before existing data is replaced. Only "yes", matched
// case-insensitively, counts.
func (p seedPrompt) confirm(existing int) bool {
	fmt.Fprintf(p.out, "Database already contains %d users.\n", existing)
	if p.assumeYes {
		return true
	}
	fmt.Fprint(p.out, "Delete existing data and regenerate? (yes/no): ")
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes")
}

// runSeed replaces the sample tables with data. A declined overwrite leaves
// the database untouched and is not an error.
func runSeed(ctx context.Context, repo repository.SampleRepository, data *generator.SampleData, p seedPrompt, log *zap.Logger) error {
	existing, err := repo.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if existing > 0 && !p.confirm(existing) {
		fmt.Fprintln(p.out, "Aborted, existing data kept.")
		return nil
	}

	if err := repo.Drop(ctx); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	if err := repo.CreateTables(ctx); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	steps := []struct {
		name string
		rows int
		fn   func(context.Context) error
	}{
		{"users", len(data.Users), func(ctx context.Context) error { return repo.InsertUsers(ctx, data.Users) }},
		{"subscriptions", len(data.Subscriptions), func(ctx context.Context) error { return repo.InsertSubscriptions(ctx, data.Subscriptions) }},
		{"events", len(data.Events), func(ctx context.Context) error { return repo.InsertEvents(ctx, data.Events) }},
		{"stripe_charges", len(data.Charges), func(ctx context.Context) error { return repo.InsertCharges(ctx, data.Charges) }},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("insert %s: %w", s.name, err)
		}
		log.Info("inserted", zap.String("table", s.name), zap.Int("rows", s.rows))
	}

	sum, err := repo.Summary(ctx)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	printSeedSummary(p.out, sum)
	return nil
}

func printSeedSummary(out io.Writer, s repository.SampleSummary) {
	fmt.Fprintln(out, "============================================================")
	fmt.Fprintln(out, "Sample data loaded")
	fmt.Fprintf(out, "Users:                %d\n", s.Users)
	fmt.Fprintf(out, "Activated:            %d (%.1f%%)\n", s.Activated, s.ActivationRate())
	fmt.Fprintf(out, "Paid:                 %d (%.1f%% of activated)\n", s.Paid, s.ConversionRate())
	fmt.Fprintf(out, "Active subscriptions: %d\n", s.ActiveSubscriptions)
	fmt.Fprintf(out, "Events:               %d\n", s.Events)
	fmt.Fprintf(out, "Charges:              %d\n", s.Charges)
	fmt.Fprintf(out, "Current MRR:          $%s\n", s.MRR.StringFixed(2))
	fmt.Fprintln(out, "============================================================")
}
