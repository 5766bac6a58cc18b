package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/domain"
)

// drainTimeout bounds the writes of messages still buffered at shutdown.
const drainTimeout = 10 * time.Second

// Stats summarises a consumer run.
type Stats struct {
	Received    int
	Written     int
	WriteErrors int
	Dropped     int
}

// Consumer is the single classifier loop behind one bus connection.
type Consumer struct {
	classifier *Classifier
	writer     *Writer
	log        *zap.Logger
}

func NewConsumer(classifier *Classifier, writer *Writer, log *zap.Logger) *Consumer {
	return &Consumer{
		classifier: classifier,
		writer:     writer,
		log:        log,
	}
}

// Run handles messages in arrival order until in is closed or ctx is done.
// Messages already buffered in in when ctx is done are still written.
func (c *Consumer) Run(ctx context.Context, in <-chan domain.BusMessage) Stats {
	var stats Stats
	for {
		select {
		case <-ctx.Done():
			return c.stop(ctx, in, &stats)
		default:
		}

		select {
		case <-ctx.Done():
			return c.stop(ctx, in, &stats)
		case msg, ok := <-in:
			if !ok {
				c.log.Info("Inbound channel closed", zap.Int("written", stats.Written))
				return stats
			}
			c.handle(ctx, msg, &stats)
		}
	}
}

func (c *Consumer) stop(ctx context.Context, in <-chan domain.BusMessage, stats *Stats) Stats {
	if pending := len(in); pending > 0 {
		c.log.Info("Draining buffered messages", zap.Int("pending", pending))
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		c.drain(drainCtx, in, pending, stats)
	}
	c.log.Info("Ingestion loop stopped", zap.Int("written", stats.Written))
	return *stats
}

func (c *Consumer) drain(ctx context.Context, in <-chan domain.BusMessage, pending int, stats *Stats) {
	for i := 0; i < pending; i++ {
		select {
		case msg, ok := <-in:
			if !ok {
				return
			}
			c.handle(ctx, msg, stats)
		default:
			return
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg domain.BusMessage, stats *Stats) {
	stats.Received++

	result := c.classifier.Classify(msg)
	if result.Disposition != DispositionAccepted {
		stats.Dropped++
		return
	}

	if err := c.writer.Write(ctx, result.Sample); err != nil {
		stats.WriteErrors++
		c.log.Error("Failed to write sample", zap.String("topic", msg.Topic), zap.Error(err))
		return
	}

	stats.Written++
	if stats.Written%100 == 0 {
		c.log.Info("Added new rows to store", zap.Int("written", stats.Written))
	}
}
