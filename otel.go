package mailstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rbaliyan/mailstore"

// otelInstrumentation holds OpenTelemetry instrumentation for the engine.
type otelInstrumentation struct {
	tracingEnabled bool
	tracer         trace.Tracer

	metricsEnabled bool

	saveLatency     metric.Float64Histogram
	saveCount       metric.Int64Counter
	saveErrors      metric.Int64Counter
	saveBytes       metric.Int64Counter
	retrieveLatency metric.Float64Histogram
	retrieveCount   metric.Int64Counter
	retrieveErrors  metric.Int64Counter
	retrieveItems   metric.Int64Counter
	deleteLatency   metric.Float64Histogram
	deleteCount     metric.Int64Counter
	deleteErrors    metric.Int64Counter
	scanPages       metric.Int64Counter
	consistency     metric.Int64Counter
}

func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error

	histogram := func(dst *metric.Float64Histogram, name, desc string) {
		if err != nil {
			return
		}
		*dst, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	}
	counter := func(dst *metric.Int64Counter, name, desc string, unit ...string) {
		if err != nil {
			return
		}
		copts := []metric.Int64CounterOption{metric.WithDescription(desc)}
		if len(unit) > 0 {
			copts = append(copts, metric.WithUnit(unit[0]))
		}
		*dst, err = meter.Int64Counter(name, copts...)
	}

	histogram(&o.saveLatency, "mailstore.save.duration", "Duration of save operations")
	counter(&o.saveCount, "mailstore.save.count", "Number of save operations")
	counter(&o.saveErrors, "mailstore.save.errors", "Number of save errors")
	counter(&o.saveBytes, "mailstore.save.bytes", "Raw message bytes saved", "By")

	histogram(&o.retrieveLatency, "mailstore.retrieve.duration", "Duration of batch retrieve operations")
	counter(&o.retrieveCount, "mailstore.retrieve.count", "Number of batch retrieve operations")
	counter(&o.retrieveErrors, "mailstore.retrieve.errors", "Number of failed retrieve items")
	counter(&o.retrieveItems, "mailstore.retrieve.items", "Number of messages returned")

	histogram(&o.deleteLatency, "mailstore.delete.duration", "Duration of delete operations")
	counter(&o.deleteCount, "mailstore.delete.count", "Number of delete operations")
	counter(&o.deleteErrors, "mailstore.delete.errors", "Number of delete errors")

	counter(&o.scanPages, "mailstore.scan.pages", "Number of attachment index pages read")
	counter(&o.consistency, "mailstore.consistency.faults", "Records found referencing missing or corrupt blobs")

	return err
}

// startSpan starts a span when tracing is enabled and returns a func that
// ends it with the operation's error.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (o *otelInstrumentation) recordSave(ctx context.Context, duration time.Duration, size int64, attachments int, err error) {
	if !o.metricsEnabled {
		return
	}
	attrs := metric.WithAttributes(attribute.Int("attachment_count", attachments))
	o.saveLatency.Record(ctx, duration.Seconds(), attrs)
	o.saveCount.Add(ctx, 1, attrs)
	if err != nil {
		o.saveErrors.Add(ctx, 1, attrs)
		return
	}
	o.saveBytes.Add(ctx, size, attrs)
}

func (o *otelInstrumentation) recordRetrieve(ctx context.Context, duration time.Duration, fetch FetchType, items, failed int) {
	if !o.metricsEnabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("fetch", fetch.String()))
	o.retrieveLatency.Record(ctx, duration.Seconds(), attrs)
	o.retrieveCount.Add(ctx, 1, attrs)
	o.retrieveItems.Add(ctx, int64(items), attrs)
	if failed > 0 {
		o.retrieveErrors.Add(ctx, int64(failed), attrs)
	}
}

func (o *otelInstrumentation) recordDelete(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}
	o.deleteLatency.Record(ctx, duration.Seconds())
	o.deleteCount.Add(ctx, 1)
	if err != nil {
		o.deleteErrors.Add(ctx, 1)
	}
}

func (o *otelInstrumentation) recordScanPage(ctx context.Context) {
	if !o.metricsEnabled {
		return
	}
	o.scanPages.Add(ctx, 1)
}

func (o *otelInstrumentation) recordConsistencyFault(ctx context.Context) {
	if !o.metricsEnabled {
		return
	}
	o.consistency.Add(ctx, 1)
}
