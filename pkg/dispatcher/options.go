package dispatcher

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/morezero/resource-fetcher/pkg/events"
)

type options struct {
	logger         *slog.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	publisher      events.EventPublisher
}

// Option configures a Dispatcher.
type Option func(*options)

// WithLogger sets the logger used for dispatch logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMeterProvider sets the provider for dispatch metrics.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = provider
	}
}

// WithTracerProvider sets the provider for dispatch spans.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = provider
	}
}

// WithPublisher sets where change events for successful writes go.
func WithPublisher(publisher events.EventPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}
