package worker

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
	"github.com/jmehdipour/billing-sandbox/internal/kafka"
	"github.com/jmehdipour/billing-sandbox/internal/logger"
	"github.com/jmehdipour/billing-sandbox/internal/metrics"
	"github.com/jmehdipour/billing-sandbox/internal/worker"
)

var loaderCmd = &cobra.Command{
	Use:   "loader",
	Short: "Consume record envelopes from Kafka and upsert them",
	RunE:  runLoader,
}

func runLoader(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is empty")
	}

	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3) database + optional mirror
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

	// 4) kafka consumer
	consumer := kafka.NewConsumer(kafka.Config{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: cfg.Kafka.MinBytes,
		MaxBytes: cfg.Kafka.MaxBytes,

		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewLoaderKafka(consumer, log, writers...)
	if cfg.Worker.BatchSize > 0 {
		w.BatchSize = cfg.Worker.BatchSize
	}
	if cfg.Worker.BatchWait > 0 {
		w.BatchWait = cfg.Worker.BatchWait
	}

	log.Info("loader worker started",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait))

	return w.Run(ctx)
}
