package eventbus

import (
	"context"
	"time"
)

// Producer publishes messages to a topic, exchange routing key or equivalent destination.
type Producer interface {
	// Publish sends a single message to the specified topic.
	Publish(ctx context.Context, topic string, message *Message) error

	// PublishBatch sends several messages to the specified topic.
	// Returns an error if any message in the batch fails to publish.
	PublishBatch(ctx context.Context, topic string, messages []*Message) error

	// HealthCheck verifies connectivity to the message broker.
	HealthCheck(ctx context.Context) error

	// Close flushes pending messages and releases broker connections.
	Close() error
}

// Message is a serialized event with broker metadata.
type Message struct {
	// ID is a unique identifier for the message.
	ID string

	// Key is used for partitioning in systems like Kafka.
	Key string

	// Value is the serialized message payload.
	Value []byte

	// Headers contains arbitrary key-value metadata for the message.
	Headers map[string]string

	// ContentType indicates the serialization format, e.g. "application/json".
	ContentType string

	// Timestamp is when the message was created.
	Timestamp time.Time
}
