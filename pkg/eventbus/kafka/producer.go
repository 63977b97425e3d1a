// Package kafka publishes event bus messages to Kafka topics with segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nimburion/crudkit/pkg/eventbus"
	"github.com/nimburion/crudkit/pkg/observability/logger"
)

const defaultOperationTimeout = 10 * time.Second

// Config holds Kafka producer settings.
type Config struct {
	Brokers          []string
	OperationTimeout time.Duration
	// MaxAttempts bounds retries inside the writer. Defaults to 3.
	MaxAttempts int
}

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer implements eventbus.Producer on a single shared kafka.Writer. The writer has no
// fixed topic, so every message carries its destination.
type Producer struct {
	writer  messageWriter
	brokers []string
	timeout time.Duration
	logger  logger.Logger

	mu     sync.RWMutex
	closed bool
}

var _ eventbus.Producer = (*Producer)(nil)

// NewProducer creates a Kafka producer. No connection is made until the first publish.
func NewProducer(cfg Config, log logger.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            cfg.MaxAttempts,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg, log), nil
}

func newProducer(w messageWriter, cfg Config, log logger.Logger) *Producer {
	if log == nil {
		log = logger.NewNop()
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return &Producer{
		writer:  w,
		brokers: cfg.Brokers,
		timeout: timeout,
		logger:  log,
	}
}

// Publish writes one message to topic.
func (p *Producer) Publish(ctx context.Context, topic string, message *eventbus.Message) error {
	if message == nil {
		return errors.New("kafka: message is nil")
	}
	return p.PublishBatch(ctx, topic, []*eventbus.Message{message})
}

// PublishBatch writes messages to topic in one call. Kafka hashes the message key to pick a
// partition, so messages for the same entity stay ordered.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []*eventbus.Message) error {
	if topic == "" {
		return errors.New("kafka: topic is required")
	}
	if len(messages) == 0 {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("kafka producer is closed")
	}

	batch := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		batch = append(batch, toKafkaMessage(topic, m))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		p.logger.Error("failed to publish messages", "topic", topic, "count", len(batch), "error", err)
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	p.logger.Debug("messages published", "topic", topic, "count", len(batch))
	return nil
}

// HealthCheck dials the first broker and fetches cluster metadata.
func (p *Producer) HealthCheck(ctx context.Context) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return errors.New("kafka producer is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to kafka broker: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("failed to fetch broker metadata: %w", err)
	}
	return nil
}

// Close flushes the writer. Calling Close more than once is a no-op.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

func toKafkaMessage(topic string, m *eventbus.Message) kafka.Message {
	headers := convertHeaders(m.Headers)
	if m.ID != "" {
		headers = append(headers, kafka.Header{Key: "message_id", Value: []byte(m.ID)})
	}
	if m.ContentType != "" {
		headers = append(headers, kafka.Header{Key: "content-type", Value: []byte(m.ContentType)})
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(m.Key),
		Value:   m.Value,
		Headers: headers,
		Time:    ts,
	}
}

func convertHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(headers))
	for key, value := range headers {
		out = append(out, kafka.Header{Key: key, Value: []byte(value)})
	}
	return out
}
