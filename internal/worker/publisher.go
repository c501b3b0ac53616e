package worker

import (
	"context"
	"fmt"

	"github.com/jmehdipour/billing-sandbox/internal/kafka"
	"github.com/jmehdipour/billing-sandbox/internal/metrics"
)

type MessageWriter interface {
	Write(ctx context.Context, msgs ...kafka.Message) error
}

// Publish writes msgs in chunks of batchSize and returns how many were
// acknowledged.
func Publish(ctx context.Context, w MessageWriter, msgs []kafka.Message, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	sent := 0
	for start := 0; start < len(msgs); start += batchSize {
		end := min(start+batchSize, len(msgs))
		if err := w.Write(ctx, msgs[start:end]...); err != nil {
			return sent, fmt.Errorf("publish messages %d-%d: %w", start, end, err)
		}
		for _, m := range msgs[start:end] {
			metrics.EnvelopesTotal.WithLabelValues("published", envelopeType(m)).Inc()
		}
		sent = end
	}
	return sent, nil
}

// envelopeType reads the type header set by Messages.
func envelopeType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == typeHeader {
			return string(h.Value)
		}
	}
	return "unknown"
}
