// Package rabbitmq publishes event bus messages to a RabbitMQ topic exchange with amqp091-go.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nimburion/crudkit/pkg/eventbus"
	"github.com/nimburion/crudkit/pkg/observability/logger"
)

const (
	defaultExchange         = "crudkit"
	defaultOperationTimeout = 5 * time.Second
)

// Config holds RabbitMQ producer settings.
type Config struct {
	URL string
	// Exchange is declared as a durable topic exchange. Defaults to "crudkit".
	Exchange         string
	OperationTimeout time.Duration
}

// publisher is the subset of *amqp.Channel the producer uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// connection is the subset of *amqp.Connection the producer uses.
type connection interface {
	IsClosed() bool
	Close() error
}

// Producer implements eventbus.Producer. The topic passed to Publish is used as the routing
// key on the configured exchange.
type Producer struct {
	conn     connection
	ch       publisher
	exchange string
	timeout  time.Duration
	logger   logger.Logger

	mu     sync.Mutex
	closed bool
}

var _ eventbus.Producer = (*Producer)(nil)

// NewProducer dials the broker, opens a channel and declares the exchange.
func NewProducer(cfg Config, log logger.Logger) (*Producer, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq: url is required")
	}
	exchange := exchangeName(cfg)

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	p := newProducer(conn, ch, cfg, log)
	p.logger.Info("rabbitmq producer connected", "exchange", exchange)
	return p, nil
}

func newProducer(conn connection, ch publisher, cfg Config, log logger.Logger) *Producer {
	if log == nil {
		log = logger.NewNop()
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return &Producer{
		conn:     conn,
		ch:       ch,
		exchange: exchangeName(cfg),
		timeout:  timeout,
		logger:   log,
	}
}

func exchangeName(cfg Config) string {
	if e := strings.TrimSpace(cfg.Exchange); e != "" {
		return e
	}
	return defaultExchange
}

// Publish sends one persistent message routed by topic.
func (p *Producer) Publish(ctx context.Context, topic string, message *eventbus.Message) error {
	if message == nil {
		return errors.New("rabbitmq: message is nil")
	}
	if topic == "" {
		return errors.New("rabbitmq: topic is required")
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("rabbitmq producer is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.ch.PublishWithContext(ctx, p.exchange, topic, false, false, toPublishing(message)); err != nil {
		p.logger.Error("failed to publish message", "exchange", p.exchange, "routing_key", topic, "error", err)
		return fmt.Errorf("rabbitmq publish to %s: %w", topic, err)
	}
	return nil
}

// PublishBatch publishes messages one by one and stops at the first failure.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []*eventbus.Message) error {
	for i, m := range messages {
		if m == nil {
			continue
		}
		if err := p.Publish(ctx, topic, m); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// HealthCheck reports whether the broker connection is still open.
func (p *Producer) HealthCheck(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("rabbitmq producer is closed")
	}
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Close closes the channel and the connection. Calling Close more than once is a no-op.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publish channel: %w", err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

func toPublishing(m *eventbus.Message) amqp.Publishing {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return amqp.Publishing{
		MessageId:     m.ID,
		CorrelationId: m.Key,
		ContentType:   m.ContentType,
		DeliveryMode:  amqp.Persistent,
		Body:          m.Value,
		Timestamp:     ts,
		Headers:       toAMQPHeaders(m.Headers),
	}
}

func toAMQPHeaders(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	t := amqp.Table{}
	for k, v := range headers {
		t[k] = v
	}
	return t
}
