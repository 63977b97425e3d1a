// Package factory builds the configured event bus producer.
package factory

import (
	"fmt"
	"strings"

	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/eventbus"
	"github.com/nimburion/crudkit/pkg/eventbus/kafka"
	"github.com/nimburion/crudkit/pkg/eventbus/rabbitmq"
	"github.com/nimburion/crudkit/pkg/observability/logger"
)

// NewProducer returns the producer selected by cfg.Type, or nil when publishing is disabled.
func NewProducer(cfg config.EventBusConfig, log logger.Logger) (eventbus.Producer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", config.EventBusTypeNone:
		return nil, nil
	case config.EventBusTypeKafka:
		p, err := kafka.NewProducer(kafka.Config{
			Brokers:          cfg.Brokers,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.EventBusTypeRabbitMQ:
		url := cfg.URL
		if url == "" && len(cfg.Brokers) > 0 {
			url = cfg.Brokers[0]
		}
		p, err := rabbitmq.NewProducer(rabbitmq.Config{
			URL:              url,
			Exchange:         cfg.Exchange,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported eventbus.type %q (supported: none, kafka, rabbitmq)", cfg.Type)
	}
}
