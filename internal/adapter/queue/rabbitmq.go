package queue

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/observability/telemetry"
)

const rabbitReconnectDelay = 5 * time.Second

// RabbitMQQueue publishes each subject to a durable fanout exchange of the same name.
type RabbitMQQueue struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	url       string
	declared  map[string]bool
	mu        sync.RWMutex
	closed    chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
}

// NewRabbitMQQueue creates a new RabbitMQ message queue adapter
func NewRabbitMQQueue(url string, log *zap.Logger) (*RabbitMQQueue, error) {
	conn, ch, err := dialRabbit(url)
	if err != nil {
		return nil, err
	}

	q := &RabbitMQQueue{
		conn:     conn,
		channel:  ch,
		url:      url,
		declared: make(map[string]bool),
		closed:   make(chan struct{}),
		log:      log,
	}

	go q.monitorConnection()

	log.Info("Successfully connected to RabbitMQ")
	return q, nil
}

func dialRabbit(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	return conn, ch, nil
}

func (q *RabbitMQQueue) Publish(subject string, data []byte) error {
	if err := q.publish(subject, data); err != nil {
		telemetry.FanoutPublishedTotal.WithLabelValues("rabbitmq", "error").Inc()
		return err
	}
	telemetry.FanoutPublishedTotal.WithLabelValues("rabbitmq", "ok").Inc()
	return nil
}

func (q *RabbitMQQueue) publish(subject string, data []byte) error {
	if err := q.declare(subject); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	err := q.channel.Publish(
		subject, "", false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

// declare creates the exchange once per connection.
func (q *RabbitMQQueue) declare(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}
	if q.declared[subject] {
		return nil
	}
	if err := q.channel.ExchangeDeclare(subject, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	q.declared[subject] = true
	return nil
}

func (q *RabbitMQQueue) Subscribe(subject string, handler func(data []byte) error) error {
	if err := q.declare(subject); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	queue, err := q.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}

	err = q.channel.QueueBind(queue.Name, "", subject, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}

	msgs, err := q.channel.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg.Body); err != nil {
				q.log.Error("Error processing RabbitMQ message",
					zap.String("exchange", subject),
					zap.Error(err),
				)
			}
		}
	}()

	q.log.Info("Subscribed to RabbitMQ exchange", zap.String("exchange", subject))
	return nil
}

func (q *RabbitMQQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.channel != nil {
		q.channel.Close()
		q.channel = nil
	}
	if q.conn != nil {
		err := q.conn.Close()
		q.conn = nil
		return err
	}
	return nil
}

func (q *RabbitMQQueue) monitorConnection() {
	for {
		q.mu.RLock()
		conn := q.conn
		q.mu.RUnlock()
		if conn == nil {
			return
		}

		select {
		case <-q.closed:
			return
		case reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1)):
			if !ok || reason == nil {
				return
			}
			q.log.Warn("RabbitMQ connection lost, reconnecting...", zap.String("reason", reason.Reason))
		}

		if !q.reconnect() {
			return
		}
	}
}

func (q *RabbitMQQueue) reconnect() bool {
	for {
		select {
		case <-q.closed:
			return false
		case <-time.After(rabbitReconnectDelay):
		}

		conn, ch, err := dialRabbit(q.url)
		if err != nil {
			q.log.Error("Failed to reconnect to RabbitMQ", zap.Error(err))
			continue
		}

		q.mu.Lock()
		q.conn = conn
		q.channel = ch
		q.declared = make(map[string]bool)
		q.mu.Unlock()

		q.log.Info("Successfully reconnected to RabbitMQ")
		return true
	}
}
