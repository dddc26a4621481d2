// Package otel provides OpenTelemetry instrumentation for blob backends.
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/mailstore/store"
)

const instrumentationName = "github.com/rbaliyan/mailstore/store/blob/otel"

// Store wraps a BlobBackend with tracing and metrics.
type Store struct {
	backend store.BlobBackend
	opts    *options
	tracer  trace.Tracer

	ops map[string]*opMetrics
}

type opMetrics struct {
	latency metric.Float64Histogram
	count   metric.Int64Counter
	errors  metric.Int64Counter
	bytes   metric.Int64Counter // nil for ops without a payload
}

var _ store.BlobBackend = (*Store)(nil)

// New creates an instrumented backend wrapping the given backend.
func New(backend store.BlobBackend, opts ...Option) (*Store, error) {
	o := newOptions(opts...)

	s := &Store{backend: backend, opts: o}
	if o.spans {
		s.tracer = o.tp.Tracer(instrumentationName)
	}
	if o.metrics {
		if err := s.initMetrics(o.mp); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}
	return s, nil
}

func (s *Store) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)
	s.ops = make(map[string]*opMetrics, 3)

	for _, op := range []struct {
		name      string
		withBytes bool
	}{
		{"put", true},
		{"get", true},
		{"has", false},
	} {
		m := &opMetrics{}
		var err error
		prefix := "blob." + op.name

		m.latency, err = meter.Float64Histogram(prefix+".duration",
			metric.WithDescription("Duration of blob "+op.name+" operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return err
		}
		m.count, err = meter.Int64Counter(prefix+".count",
			metric.WithDescription("Number of blob "+op.name+" operations"),
		)
		if err != nil {
			return err
		}
		m.errors, err = meter.Int64Counter(prefix+".errors",
			metric.WithDescription("Number of blob "+op.name+" errors"),
		)
		if err != nil {
			return err
		}
		if op.withBytes {
			m.bytes, err = meter.Int64Counter(prefix+".bytes",
				metric.WithDescription("Total bytes moved by blob "+op.name),
				metric.WithUnit("By"),
			)
			if err != nil {
				return err
			}
		}
		s.ops[op.name] = m
	}
	return nil
}

// PutBlob writes a blob with tracing and metrics.
func (s *Store) PutBlob(ctx context.Context, id store.BlobID, data []byte) error {
	ctx, finish := s.start(ctx, "put", id)
	err := s.backend.PutBlob(ctx, id, data)
	finish(int64(len(data)), err)
	return err
}

// GetBlob reads a blob with tracing and metrics.
func (s *Store) GetBlob(ctx context.Context, id store.BlobID) ([]byte, error) {
	ctx, finish := s.start(ctx, "get", id)
	data, err := s.backend.GetBlob(ctx, id)
	finish(int64(len(data)), err)
	return data, err
}

// HasBlob checks for a blob with tracing and metrics.
func (s *Store) HasBlob(ctx context.Context, id store.BlobID) (bool, error) {
	ctx, finish := s.start(ctx, "has", id)
	ok, err := s.backend.HasBlob(ctx, id)
	finish(0, err)
	return ok, err
}

// start opens a span for op and returns a func that records the outcome.
func (s *Store) start(ctx context.Context, op string, id store.BlobID) (context.Context, func(int64, error)) {
	attrs := []attribute.KeyValue{
		attribute.String("blob.op", op),
		attribute.String("service.name", s.opts.service),
	}

	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, "blob."+op,
			trace.WithAttributes(append(attrs, attribute.String("blob.id", string(id)))...),
			trace.WithSpanKind(trace.SpanKindClient),
		)
	}
	start := time.Now()

	return ctx, func(n int64, err error) {
		duration := time.Since(start).Seconds()

		if m := s.ops[op]; m != nil {
			metricAttrs := metric.WithAttributes(attrs...)
			m.latency.Record(ctx, duration, metricAttrs)
			m.count.Add(ctx, 1, metricAttrs)
			if err != nil {
				m.errors.Add(ctx, 1, metricAttrs)
			} else if m.bytes != nil {
				m.bytes.Add(ctx, n, metricAttrs)
			}
		}

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetAttributes(attribute.Int64("blob.bytes", n))
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		}
	}
}
