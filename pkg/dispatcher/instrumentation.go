package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/morezero/resource-fetcher/pkg/registry"
)

const (
	instrumentationName    = "github.com/morezero/resource-fetcher/pkg/dispatcher"
	instrumentationVersion = "0.1.0"
	metricKeyPrefix        = "fetcher."
)

// instruments holds the otel handles shared by every dispatch.
type instruments struct {
	tracer        trace.Tracer
	dispatchCount metric.Int64Counter
	duration      metric.Float64Histogram
}

func newInstruments(mp metric.MeterProvider, tp trace.TracerProvider) *instruments {
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	dispatchCount, err := meter.Int64Counter(
		metricKeyPrefix+"dispatch.count",
		metric.WithDescription("Number of dispatched resource calls"),
		metric.WithUnit("{calls}"),
	)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to create dispatch.count counter: %v", logPrefix, err))
		dispatchCount = metricnoop.Int64Counter{}
	}

	duration, err := meter.Float64Histogram(
		metricKeyPrefix+"process.duration",
		metric.WithDescription("Time from dispatch to completion"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to create process.duration histogram: %v", logPrefix, err))
		duration = metricnoop.Float64Histogram{}
	}

	return &instruments{
		tracer:        tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion)),
		dispatchCount: dispatchCount,
		duration:      duration,
	}
}

func (in *instruments) startSpan(ctx context.Context, call *Call, key string) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, fmt.Sprintf("%s %s", key, call.Operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("fetcher.call_id", call.ID),
			attribute.String("fetcher.resource", call.Resource),
			attribute.String("fetcher.operation", call.Operation),
			attribute.String("fetcher.handler", key),
		),
	)
}

// record closes the span and records metrics for a settled call.
func (in *instruments) record(ctx context.Context, span trace.Span, call *Call, key string, start time.Time, r registry.Result) {
	status := "success"
	if r.Err != nil {
		status = "error"
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, registry.Message(r.Err))
		span.SetAttributes(attribute.Int("fetcher.status_code", registry.StatusCode(r.Err, 400)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	attrs := metric.WithAttributes(
		attribute.String("fetcher.handler", key),
		attribute.String("fetcher.operation", call.Operation),
		attribute.String("status", status),
	)
	in.dispatchCount.Add(ctx, 1, attrs)
	in.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
}
