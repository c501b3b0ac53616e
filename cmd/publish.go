package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/bootstrap"
	"github.com/jmehdipour/billing-sandbox/internal/kafka"
	"github.com/jmehdipour/billing-sandbox/internal/worker"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the generated dataset to Kafka, one envelope per record",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, ctx, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is empty")
		}

		ds, err := bootstrap.Dataset(cfg.Generator)
		if err != nil {
			return fmt.Errorf("generate dataset: %w", err)
		}
		msgs, err := worker.Messages(ds)
		if err != nil {
			return err
		}

		producer := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		defer producer.Close()

		sent, err := worker.Publish(ctx, producer, msgs, cfg.Worker.BatchSize)
		if err != nil {
			return err
		}
		log.Info("published", zap.String("topic", cfg.Kafka.Topic), zap.Int("envelopes", sent))
		return nil
	},
}
