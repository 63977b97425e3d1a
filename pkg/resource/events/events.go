// Package events publishes resource lifecycle events from orchestrator after-hooks.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nimburion/crudkit/pkg/eventbus"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/observability/tracing"
	"github.com/nimburion/crudkit/pkg/resource"
)

// Event types
const (
	TypeCreated = "created"
	TypeUpdated = "updated"
	TypeDeleted = "deleted"
)

// Event is the envelope published for every successful write.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Resource   string    `json:"resource"`
	EntityID   any       `json:"entity_id"`
	Entity     any       `json:"entity"`
	Previous   any       `json:"previous,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	RequestID  string    `json:"request_id,omitempty"`
}

// PublishRecorder receives one outcome per publish attempt.
type PublishRecorder interface {
	RecordEventPublished(resource, eventType, outcome string)
}

// Config configures PublishingHooks.
type Config[T any, ID comparable] struct {
	// Resource names the resource in envelopes, message keys and headers.
	Resource string
	// Topic is the destination passed to the producer.
	Topic    string
	Producer eventbus.Producer
	// Serializer encodes envelopes. Defaults to JSON.
	Serializer eventbus.Serializer
	// IDs reads identifiers from entities. Defaults to the Identifiable implementation.
	IDs resource.IDAccessor[T, ID]
	// System is reported as messaging.system on publish spans, e.g. "kafka".
	System  string
	Logger  logger.Logger
	Metrics PublishRecorder
	// Strict returns publish failures to the caller instead of only logging them.
	Strict bool
	// Now stamps envelopes. Defaults to time.Now in UTC.
	Now func() time.Time
}

// PublishingHooks publishes created, updated and deleted events after the corresponding
// write succeeded. Results pass through unchanged.
type PublishingHooks[T any, ID comparable] struct {
	resource.DefaultHooks[T, ID]

	name       string
	topic      string
	producer   eventbus.Producer
	serializer eventbus.Serializer
	ids        resource.IDAccessor[T, ID]
	system     string
	log        logger.Logger
	metrics    PublishRecorder
	strict     bool
	now        func() time.Time
}

var _ resource.Hooks[struct{}, int] = (*PublishingHooks[struct{}, int])(nil)

// New validates cfg and returns the hooks.
func New[T any, ID comparable](cfg Config[T, ID]) (*PublishingHooks[T, ID], error) {
	if cfg.Producer == nil {
		return nil, errors.New("events: producer is required")
	}
	if strings.TrimSpace(cfg.Resource) == "" {
		return nil, errors.New("events: resource name is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("events: topic is required")
	}
	ids := cfg.IDs
	if ids == nil {
		var err error
		if ids, err = resource.IdentifiableAccessor[T, ID](); err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
	}
	serializer := cfg.Serializer
	if serializer == nil {
		serializer = eventbus.NewJSONSerializer()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &PublishingHooks[T, ID]{
		name:       cfg.Resource,
		topic:      cfg.Topic,
		producer:   cfg.Producer,
		serializer: serializer,
		ids:        ids,
		system:     cfg.System,
		log:        log,
		metrics:    cfg.Metrics,
		strict:     cfg.Strict,
		now:        now,
	}, nil
}

func (h *PublishingHooks[T, ID]) AfterCreate(ctx context.Context, item *T) (any, error) {
	if err := h.publish(ctx, TypeCreated, item, nil); err != nil {
		return nil, err
	}
	return item, nil
}

func (h *PublishingHooks[T, ID]) AfterUpdate(ctx context.Context, old, new *T) (any, error) {
	if err := h.publish(ctx, TypeUpdated, new, old); err != nil {
		return nil, err
	}
	return new, nil
}

func (h *PublishingHooks[T, ID]) AfterDelete(ctx context.Context, item *T) (any, error) {
	if err := h.publish(ctx, TypeDeleted, item, nil); err != nil {
		return nil, err
	}
	return item, nil
}

// publish returns an error only in strict mode.
func (h *PublishingHooks[T, ID]) publish(ctx context.Context, eventType string, item, previous *T) error {
	if item == nil {
		return nil
	}
	err := h.send(ctx, h.envelope(ctx, eventType, item, previous))
	if err == nil {
		h.record(eventType, "success")
		return nil
	}

	h.record(eventType, "error")
	h.log.WithContext(ctx).Error("failed to publish event",
		"resource", h.name,
		"event_type", eventType,
		"entity_id", h.ids.GetID(item),
		"error", err,
	)
	if h.strict {
		return fmt.Errorf("publish %s event for %s: %w", eventType, h.name, err)
	}
	return nil
}

func (h *PublishingHooks[T, ID]) envelope(ctx context.Context, eventType string, item, previous *T) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Resource:   h.name,
		EntityID:   h.ids.GetID(item),
		Entity:     item,
		OccurredAt: h.now(),
		RequestID:  logger.RequestIDFromContext(ctx),
	}
	if previous != nil {
		ev.Previous = previous
	}
	return ev
}

func (h *PublishingHooks[T, ID]) send(ctx context.Context, ev Event) (err error) {
	opts := []tracing.Option{tracing.WithMessagingDestination(h.topic)}
	if h.system != "" {
		opts = append(opts, tracing.WithMessagingSystem(h.system))
	}
	ctx, span := tracing.StartMessagingSpan(ctx, tracing.SpanOperationMsgPublish, opts...)
	defer func() { tracing.End(span, err) }()

	body, err := h.serializer.Serialize(ev)
	if err != nil {
		return err
	}
	headers := map[string]string{
		"event_type": ev.Type,
		"resource":   ev.Resource,
	}
	if ev.RequestID != "" {
		headers["request_id"] = ev.RequestID
	}
	return h.producer.Publish(ctx, h.topic, &eventbus.Message{
		ID:          ev.ID,
		Key:         fmt.Sprintf("%s:%v", ev.Resource, ev.EntityID),
		Value:       body,
		Headers:     headers,
		ContentType: h.serializer.ContentType(),
		Timestamp:   ev.OccurredAt,
	})
}

func (h *PublishingHooks[T, ID]) record(eventType, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordEventPublished(h.name, eventType, outcome)
	}
}
