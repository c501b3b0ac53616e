package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/bootstrap"
	"github.com/jmehdipour/billing-sandbox/internal/config"
	"github.com/jmehdipour/billing-sandbox/internal/db"
	httpSrv "github.com/jmehdipour/billing-sandbox/internal/http"
	"github.com/jmehdipour/billing-sandbox/internal/logger"
	"github.com/jmehdipour/billing-sandbox/internal/metrics"
	"github.com/jmehdipour/billing-sandbox/internal/query"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mock payment API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := logger.New(cfg.App.LogLevel)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		ds, err := bootstrap.Dataset(cfg.Generator)
		if err != nil {
			return fmt.Errorf("generate dataset: %w", err)
		}
		totals := ds.Totals()
		log.Info("dataset generated",
			zap.Uint64("seed", cfg.Generator.Seed),
			zap.Int("customers", totals.Customers),
			zap.Int("subscriptions", totals.Subscriptions),
			zap.Int("charges", totals.Charges),
			zap.Int("invoices", totals.Invoices))

		redisClient, err := db.NewRedisClient(cmd.Context(), db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		if redisClient != nil {
			defer func() { _ = redisClient.Close() }()
		}

		server := httpSrv.NewServer(cfg, query.New(ds, bootstrap.QueryOptions(cfg.API)), redisClient, log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
				return err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
