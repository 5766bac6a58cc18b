package command

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/observability/telemetry"
	"github.com/seu-repo/plugwatch/internal/ports"
)

// Forwarder publishes plug commands on the bus and reports the outcome synchronously.
type Forwarder struct {
	bus     ports.CommandBus
	timeout time.Duration
	log     *zap.Logger
}

func NewForwarder(bus ports.CommandBus, timeout time.Duration, log *zap.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Forwarder{
		bus:     bus,
		timeout: timeout,
		log:     log,
	}
}

// Forward validates cmd and publishes its parameter to cmnd/<device>/<command>.
// A disconnected bus fails immediately with domain.ErrNotConnected.
func (f *Forwarder) Forward(ctx context.Context, cmd domain.Command) error {
	if err := cmd.Validate(); err != nil {
		telemetry.CommandsPublishedTotal.WithLabelValues("invalid").Inc()
		return err
	}

	topic := cmd.Topic()
	if !f.bus.IsConnected() {
		telemetry.CommandsPublishedTotal.WithLabelValues("disconnected").Inc()
		f.log.Warn("Command rejected, bus disconnected", zap.String("topic", topic))
		return domain.ErrNotConnected
	}

	if err := f.bus.Publish(ctx, topic, []byte(cmd.Parameter), f.timeout); err != nil {
		telemetry.CommandsPublishedTotal.WithLabelValues(statusLabel(err)).Inc()
		f.log.Error("Failed to publish command",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return err
	}

	telemetry.CommandsPublishedTotal.WithLabelValues("ok").Inc()
	f.log.Info("Command published",
		zap.String("topic", topic),
		zap.String("parameter", cmd.Parameter),
	)
	return nil
}

func statusLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		return "disconnected"
	case errors.Is(err, domain.ErrPublishTimeout):
		return "timeout"
	default:
		return "error"
	}
}
