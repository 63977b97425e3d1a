// Package tracing starts an OpenTelemetry server span per request.
package tracing

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/crudkit/pkg/middleware/requestid"
	"github.com/nimburion/crudkit/pkg/server/router"
)

const instrumentationName = "github.com/nimburion/crudkit/pkg/middleware/tracing"

// Option configures the tracing middleware.
type Option func(*options)

type options struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.provider = tp }
}

// WithPropagator overrides the global text map propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(o *options) { o.propagator = p }
}

// Tracing extracts the incoming trace context and wraps the handler in a server span named
// "HTTP <method> <route>". 5xx responses and handler errors mark the span as failed.
func Tracing(opts ...Option) router.MiddlewareFunc {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			provider := o.provider
			if provider == nil {
				provider = otel.GetTracerProvider()
			}
			propagator := o.propagator
			if propagator == nil {
				propagator = otel.GetTextMapPropagator()
			}

			r := c.Request()
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := provider.Tracer(instrumentationName).Start(ctx,
				fmt.Sprintf("HTTP %s", r.Method),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethodKey.String(r.Method),
					semconv.HTTPTargetKey.String(r.URL.Path),
					semconv.HTTPSchemeKey.String(scheme(r)),
				),
			)
			defer span.End()

			c.SetRequest(r.WithContext(ctx))
			err := next(c)

			route := router.Route(c)
			span.SetName(fmt.Sprintf("HTTP %s %s", r.Method, route))
			span.SetAttributes(semconv.HTTPRouteKey.String(route))
			if id := requestid.GetRequestID(c.Request().Context()); id != "" {
				span.SetAttributes(attribute.String("http.request_id", id))
			}

			status := c.Response().Status()
			if err != nil && !c.Response().Written() {
				status = http.StatusInternalServerError
			}
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			case status >= http.StatusInternalServerError:
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			return err
		}
	}
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
