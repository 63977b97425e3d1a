package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/nimburion/crudkit/pkg/eventbus"
)

// GuardedProducer publishes through a Breaker with a per call timeout. HealthCheck and Close go
// straight to the wrapped producer.
type GuardedProducer struct {
	eventbus.Producer
	breaker *Breaker
	timeout time.Duration
}

var _ eventbus.Producer = (*GuardedProducer)(nil)

// GuardProducer wraps p. A nil breaker only applies the timeout.
func GuardProducer(p eventbus.Producer, breaker *Breaker, timeout time.Duration) *GuardedProducer {
	return &GuardedProducer{Producer: p, breaker: breaker, timeout: timeout}
}

// Breaker returns the breaker guarding publishes, or nil.
func (g *GuardedProducer) Breaker() *Breaker { return g.breaker }

func (g *GuardedProducer) Publish(ctx context.Context, topic string, message *eventbus.Message) error {
	return g.guard(ctx, topic, func(ctx context.Context) error {
		return g.Producer.Publish(ctx, topic, message)
	})
}

func (g *GuardedProducer) PublishBatch(ctx context.Context, topic string, messages []*eventbus.Message) error {
	return g.guard(ctx, topic, func(ctx context.Context) error {
		return g.Producer.PublishBatch(ctx, topic, messages)
	})
}

func (g *GuardedProducer) guard(ctx context.Context, topic string, fn func(context.Context) error) error {
	call := func(ctx context.Context) error { return WithTimeout(ctx, g.timeout, fn) }
	var err error
	if g.breaker != nil {
		err = g.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
