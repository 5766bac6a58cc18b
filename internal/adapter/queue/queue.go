package queue

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/pkg/config"
)

// MessageQueue defines the interface for a message queue adapter
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}

// New opens the fan-out queue named by cfg.Driver. An empty driver disables
// fan-out and returns a nil queue.
func New(cfg config.QueueConfig, log *zap.Logger) (MessageQueue, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "nats":
		q, err := NewNATSQueue(cfg.URL, log)
		if err != nil {
			return nil, err
		}
		return q, nil
	case "rabbitmq":
		q, err := NewRabbitMQQueue(cfg.URL, log)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}
