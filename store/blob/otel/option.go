package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName labels spans and measurements unless overridden.
const DefaultServiceName = "mailstore"

// options selects which signals the wrapper emits and where they go.
type options struct {
	spans   bool
	metrics bool
	service string
	tp      trace.TracerProvider
	mp      metric.MeterProvider
}

// Option configures the instrumented backend.
type Option func(*options)

// newOptions emits both signals through the global providers unless told
// otherwise.
func newOptions(opts ...Option) *options {
	o := &options{spans: true, metrics: true, service: DefaultServiceName}
	for _, opt := range opts {
		opt(o)
	}
	if o.tp == nil {
		o.tp = otel.GetTracerProvider()
	}
	if o.mp == nil {
		o.mp = otel.GetMeterProvider()
	}
	return o
}

// WithTracing toggles one span per backend call. On by default.
func WithTracing(enabled bool) Option {
	return func(o *options) { o.spans = enabled }
}

// WithMetrics toggles the per-operation count, error, byte and latency
// instruments. On by default.
func WithMetrics(enabled bool) Option {
	return func(o *options) { o.metrics = enabled }
}

// WithServiceName sets the service.name attribute. Empty names are ignored.
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.service = name
		}
	}
}

// WithTracerProvider routes spans to tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithMeterProvider routes measurements to mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}
