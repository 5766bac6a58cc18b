package ports

import (
	"context"
	"time"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}

// CommandBus publishes control messages to plugs.
type CommandBus interface {
	// Publish blocks until the broker acknowledges or timeout elapses.
	Publish(ctx context.Context, topic string, payload []byte, timeout time.Duration) error
	IsConnected() bool
}
