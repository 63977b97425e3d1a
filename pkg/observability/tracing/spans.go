package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation names a traced storage or messaging operation.
type SpanOperation string

// Span operations
const (
	SpanOperationDBQuery  SpanOperation = "db.query"
	SpanOperationDBInsert SpanOperation = "db.insert"
	SpanOperationDBUpdate SpanOperation = "db.update"
	SpanOperationDBDelete SpanOperation = "db.delete"

	SpanOperationMsgPublish SpanOperation = "messaging.publish"

	SpanOperationCacheGet SpanOperation = "cache.get"
	SpanOperationCacheSet SpanOperation = "cache.set"
	SpanOperationCacheDel SpanOperation = "cache.delete"
)

// Option adds attributes to a span started by this package.
type Option func(*spanOptions)

type spanOptions struct {
	target     string
	attributes []attribute.KeyValue
}

// WithDBSystem sets db.system, e.g. "postgresql" or "mongodb".
func WithDBSystem(system string) Option {
	return func(o *spanOptions) { o.attributes = append(o.attributes, attribute.String("db.system", system)) }
}

// WithDBTable sets the table or collection and includes it in the span name.
func WithDBTable(table string) Option {
	return func(o *spanOptions) {
		o.target = table
		o.attributes = append(o.attributes, attribute.String("db.sql.table", table))
	}
}

// WithDBStatement records the statement text. Callers must not pass bound values.
func WithDBStatement(statement string) Option {
	return func(o *spanOptions) {
		o.attributes = append(o.attributes, attribute.String("db.statement", statement))
	}
}

// WithMessagingSystem sets messaging.system, e.g. "kafka" or "rabbitmq".
func WithMessagingSystem(system string) Option {
	return func(o *spanOptions) {
		o.attributes = append(o.attributes, attribute.String("messaging.system", system))
	}
}

// WithMessagingDestination sets the topic or exchange and includes it in the span name.
func WithMessagingDestination(destination string) Option {
	return func(o *spanOptions) {
		o.target = destination
		o.attributes = append(o.attributes, attribute.String("messaging.destination", destination))
	}
}

// WithCacheKey records the cache key.
func WithCacheKey(key string) Option {
	return func(o *spanOptions) { o.attributes = append(o.attributes, attribute.String("cache.key", key)) }
}

// StartDatabaseSpan starts a client span for a database call.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...Option) (context.Context, trace.Span) {
	return start(ctx, "database", "DB", operation, trace.SpanKindClient, opts)
}

// StartMessagingSpan starts a producer span for a publish.
func StartMessagingSpan(ctx context.Context, operation SpanOperation, opts ...Option) (context.Context, trace.Span) {
	return start(ctx, "messaging", "MSG", operation, trace.SpanKindProducer, opts)
}

// StartCacheSpan starts a client span for a cache call.
func StartCacheSpan(ctx context.Context, operation SpanOperation, opts ...Option) (context.Context, trace.Span) {
	return start(ctx, "cache", "CACHE", operation, trace.SpanKindClient, opts)
}

func start(ctx context.Context, scope, prefix string, operation SpanOperation, kind trace.SpanKind, opts []Option) (context.Context, trace.Span) {
	so := &spanOptions{}
	for _, opt := range opts {
		opt(so)
	}

	name := fmt.Sprintf("%s %s", prefix, operation)
	if so.target != "" {
		name = fmt.Sprintf("%s %s %s", prefix, operation, so.target)
	}

	ctx, span := otel.Tracer(scope).Start(ctx, name, trace.WithSpanKind(kind))
	span.SetAttributes(so.attributes...)
	return ctx, span
}

// End finishes span, recording err when it is non-nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
