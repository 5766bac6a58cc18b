package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/observability/telemetry"
	"github.com/seu-repo/plugwatch/pkg/config"
)

// Connection owns one paho client. Paho's own auto-reconnect is disabled;
// Run supervises the link and restores subscriptions on every reconnect.
type Connection struct {
	cfg       config.MQTTConfig
	client    paho.Client
	inbound   chan domain.BusMessage
	lost      chan error
	done      chan struct{}
	connected atomic.Bool
	log       *zap.Logger
}

func NewConnection(cfg config.MQTTConfig, log *zap.Logger) *Connection {
	if cfg.ClientID == "" {
		cfg.ClientID = "plugwatch-" + uuid.NewString()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = time.Second
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = 120 * time.Second
	}
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = 1024
	}

	c := &Connection{
		cfg:     cfg,
		inbound: make(chan domain.BusMessage, cfg.InboundBuffer),
		lost:    make(chan error, 1),
		done:    make(chan struct{}),
		log:     log,
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetConnectionLostHandler(c.onConnectionLost)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.client = paho.NewClient(opts)
	return c
}

// Messages delivers subscribed messages in arrival order. The channel is
// never closed; consumers stop on their own context.
func (c *Connection) Messages() <-chan domain.BusMessage {
	return c.inbound
}

func (c *Connection) IsConnected() bool {
	return c.connected.Load() && c.client.IsConnectionOpen()
}

// Ping reports the link state for health checks.
func (c *Connection) Ping() error {
	if !c.IsConnected() {
		return domain.ErrNotConnected
	}
	return nil
}

// Run connects and keeps reconnecting until ctx is done. Failed attempts wait
// Backoff(attempt) before retrying; a lost link is retried at once.
func (c *Connection) Run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.connect(); err != nil {
			attempt++
			delay := Backoff(attempt, c.cfg.MinDelay, c.cfg.MaxDelay)
			telemetry.BusReconnectAttempts.Inc()
			c.log.Warn("MQTT connect failed, retrying",
				zap.String("broker", c.cfg.Broker),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		attempt = 0
		select {
		case <-ctx.Done():
			c.disconnect()
			return
		case err := <-c.lost:
			c.log.Warn("MQTT connection lost, reconnecting", zap.Error(err))
		}
	}
}

// Done is closed once Run has returned.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("connect to %s: timed out after %s", c.cfg.Broker, c.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", c.cfg.Broker, err)
	}

	if len(c.cfg.Topics) > 0 {
		filters := make(map[string]byte, len(c.cfg.Topics))
		for _, topic := range c.cfg.Topics {
			filters[topic] = c.cfg.QoS
		}
		token := c.client.SubscribeMultiple(filters, c.onMessage)
		if !token.WaitTimeout(c.cfg.ConnectTimeout) {
			c.client.Disconnect(250)
			return fmt.Errorf("subscribe %v: timed out", c.cfg.Topics)
		}
		if err := token.Error(); err != nil {
			c.client.Disconnect(250)
			return fmt.Errorf("subscribe %v: %w", c.cfg.Topics, err)
		}
	}

	c.connected.Store(true)
	telemetry.BusConnected.Set(1)
	c.log.Info("Connected to MQTT broker",
		zap.String("broker", c.cfg.Broker),
		zap.String("client_id", c.cfg.ClientID),
		zap.Strings("topics", c.cfg.Topics),
	)
	return nil
}

func (c *Connection) disconnect() {
	c.connected.Store(false)
	telemetry.BusConnected.Set(0)
	c.client.Disconnect(250)
	c.log.Info("Disconnected from MQTT broker")
}

func (c *Connection) onConnectionLost(_ paho.Client, err error) {
	c.connected.Store(false)
	telemetry.BusConnected.Set(0)
	select {
	case c.lost <- err:
	default:
	}
}

// onMessage blocks when the inbound buffer is full. With ordered delivery
// this pushes back on the broker instead of dropping.
func (c *Connection) onMessage(_ paho.Client, m paho.Message) {
	msg := domain.BusMessage{
		Topic:      m.Topic(),
		Payload:    append([]byte(nil), m.Payload()...),
		ReceivedAt: time.Now().UTC(),
	}
	select {
	case c.inbound <- msg:
	case <-c.done:
	}
}

// Publish sends payload and waits for the broker acknowledgement. It fails
// fast with ErrNotConnected while the link is down and never queues.
func (c *Connection) Publish(ctx context.Context, topic string, payload []byte, timeout time.Duration) error {
	if !c.IsConnected() {
		return domain.ErrNotConnected
	}

	token := c.client.Publish(topic, c.cfg.QoS, false, payload)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			if !c.IsConnected() {
				return fmt.Errorf("%w: %v", domain.ErrNotConnected, err)
			}
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s after %s", domain.ErrPublishTimeout, topic, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backoff is the linear reconnect delay min(minDelay*attempt, maxDelay).
func Backoff(attempt int, minDelay, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := minDelay * time.Duration(attempt)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}
