package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer is a thin wrapper around segmentio/kafka-go Writer. Messages
// with the same key land on the same partition.
type Producer struct {
	w *kafka.Writer
}

func NewProducer(c Config) *Producer {
	return &Producer{w: &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (p *Producer) Write(ctx context.Context, msgs ...Message) error {
	return p.w.WriteMessages(ctx, msgs...)
}

func (p *Producer) Close() error { return p.w.Close() }
