package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int           // default 1KB
	MaxBytes       int           // default 10MB
	CommitInterval time.Duration // 0 = synchronous commits
	MaxWait        time.Duration // default 50ms
}

// Consumer is a thin wrapper around segmentio/kafka-go Reader.
type Consumer struct {
	r *kafka.Reader
}

func NewConsumer(c Config) *Consumer {
	minBytes := c.MinBytes
	if minBytes <= 0 {
		minBytes = 1 << 10 // 1KB
	}
	maxBytes := c.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20 // 10MB
	}
	mw := c.MaxWait
	if mw <= 0 {
		mw = 50 * time.Millisecond
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		CommitInterval: c.CommitInterval,
		MaxWait:        mw,
	})

	return &Consumer{r: r}
}

type (
	Message = kafka.Message
	Header  = kafka.Header
)

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

// Commit marks msgs, and everything before them in their partitions, as
// consumed.
func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return c.r.CommitMessages(ctx, msgs...)
}

func (c *Consumer) Close() error { return c.r.Close() }
