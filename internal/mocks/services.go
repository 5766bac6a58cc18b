package mocks

import (
	"context"
	"sync"
	"time"
)

// PublishedCommand is one call recorded by MockCommandBus.
type PublishedCommand struct {
	Topic   string
	Payload []byte
	Timeout time.Duration
}

// MockCommandBus is a mock implementation of CommandBus interface
type MockCommandBus struct {
	mu        sync.Mutex
	Published []PublishedCommand

	PublishFunc     func(ctx context.Context, topic string, payload []byte, timeout time.Duration) error
	IsConnectedFunc func() bool
}

func (m *MockCommandBus) Publish(ctx context.Context, topic string, payload []byte, timeout time.Duration) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, topic, payload, timeout); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, PublishedCommand{Topic: topic, Payload: payload, Timeout: timeout})
	return nil
}

func (m *MockCommandBus) IsConnected() bool {
	if m.IsConnectedFunc != nil {
		return m.IsConnectedFunc()
	}
	return true
}

// Calls returns a copy of the recorded publishes.
func (m *MockCommandBus) Calls() []PublishedCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedCommand(nil), m.Published...)
}
