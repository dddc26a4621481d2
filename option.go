package mailstore

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/mailstore/store"
	"github.com/rbaliyan/mailstore/store/blob"
)

// Default configuration values.
const (
	DefaultShutdownTimeout = 30 * time.Second
	MinShutdownTimeout     = 1 * time.Second

	// Input limits
	DefaultMaxMessageSize     = 50 * 1024 * 1024 // 50 MB
	DefaultMaxAttachmentSize  = 25 * 1024 * 1024 // 25 MB per attachment
	DefaultMaxAttachmentCount = 100

	// Concurrency limits
	DefaultMaxConcurrentSaves = 16
	DefaultMaxConcurrentReads = 32

	// DefaultScanPageSize is the number of index entries fetched per page
	// by ScanAttachments.
	DefaultScanPageSize = 256
)

// options holds engine configuration.
type options struct {
	substrate store.Substrate
	records   store.RecordStore
	index     store.AttachmentIndex
	blobs     store.BlobBackend
	blobOpts  []blob.Option
	logger    *slog.Logger

	plugins []Plugin

	// Input limits
	maxMessageSize     int64
	maxAttachmentSize  int64
	maxAttachmentCount int

	deriveLineCount bool

	// Concurrency
	maxConcurrentSaves int
	maxConcurrentReads int
	scanPageSize       int

	shutdownTimeout time.Duration

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Event handling
	eventErrorsFatal      bool
	eventTransport        transport.Transport
	redisClient           redis.UniversalClient
	onEventPublishFailure EventPublishFailureFunc
}

// EventPublishFailureFunc is called when an event fails to publish.
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure calls the failure callback, recovering from panics
// so a broken handler cannot fail a completed write.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:             slog.Default(),
		maxMessageSize:     DefaultMaxMessageSize,
		maxAttachmentSize:  DefaultMaxAttachmentSize,
		maxAttachmentCount: DefaultMaxAttachmentCount,
		maxConcurrentSaves: DefaultMaxConcurrentSaves,
		maxConcurrentReads: DefaultMaxConcurrentReads,
		scanPageSize:       DefaultScanPageSize,
		shutdownTimeout:    DefaultShutdownTimeout,
		serviceName:        "mailstore",
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}
	return o
}

// Option configures an Engine.
type Option func(*options)

// --- Storage Options ---

// WithSubstrate sets the storage backend (required). Its records, index and
// blob payloads are used unless overridden by WithRecordStore,
// WithAttachmentIndex or WithBlobBackend.
func WithSubstrate(s store.Substrate) Option {
	return func(o *options) {
		if s != nil {
			o.substrate = s
		}
	}
}

// WithRecordStore routes message records to rs instead of the substrate.
func WithRecordStore(rs store.RecordStore) Option {
	return func(o *options) {
		if rs != nil {
			o.records = rs
		}
	}
}

// WithAttachmentIndex routes the attachment index to idx instead of the
// substrate.
func WithAttachmentIndex(idx store.AttachmentIndex) Option {
	return func(o *options) {
		if idx != nil {
			o.index = idx
		}
	}
}

// WithBlobBackend stores blob payloads in b instead of the substrate, for
// example an S3 bucket wrapped in a local cache:
//
//	s3b, _ := s3.New(ctx, s3.WithBucket("mail-blobs"))
//	cb, _ := cached.New(s3b)
//	eng, _ := mailstore.New(mailstore.WithSubstrate(pg), mailstore.WithBlobBackend(cb))
func WithBlobBackend(b store.BlobBackend) Option {
	return func(o *options) {
		if b != nil {
			o.blobs = b
		}
	}
}

// WithBlobOptions configures the blob store (compression, verification).
func WithBlobOptions(opts ...blob.Option) Option {
	return func(o *options) {
		o.blobOpts = append(o.blobOpts, opts...)
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// --- Plugin Options ---

// WithPlugin registers a plugin. Plugins implementing IngestHook run around
// every Save and DeleteHook plugins after every Delete.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithPlugins registers multiple plugins at once.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) {
		for _, p := range plugins {
			if p != nil {
				o.plugins = append(o.plugins, p)
			}
		}
	}
}

// --- Input Limit Options ---

// WithMaxMessageSize sets the maximum raw message size in bytes.
// Default is 50 MB.
func WithMaxMessageSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxMessageSize = n
		}
	}
}

// WithMaxAttachmentSize sets the maximum size per attachment in bytes.
// Default is 25 MB.
func WithMaxAttachmentSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttachmentSize = n
		}
	}
}

// WithMaxAttachmentCount sets the maximum number of attachments per message.
// Default is 100.
func WithMaxAttachmentCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttachmentCount = n
		}
	}
}

// WithDerivedLineCount makes Save compute Properties.TextualLineCount from
// the body when the caller left it at zero.
func WithDerivedLineCount(enabled bool) Option {
	return func(o *options) {
		o.deriveLineCount = enabled
	}
}

// --- Concurrency Options ---

// WithMaxConcurrentSaves bounds the number of Save calls running at once.
// Default is 16.
func WithMaxConcurrentSaves(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentSaves = n
		}
	}
}

// WithMaxConcurrentReads bounds the number of record reads a single
// Retrieve call issues in parallel. Default is 32.
func WithMaxConcurrentReads(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentReads = n
		}
	}
}

// WithScanPageSize sets how many index entries ScanAttachments fetches per
// round trip. Default is 256.
func WithScanPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.scanPageSize = n
		}
	}
}

// WithShutdownTimeout sets how long Close waits for in-flight saves.
// Default is 30 seconds. Minimum is 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing.
// Default is disabled.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// Default is disabled.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables or disables both tracing and metrics.
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name used for telemetry and the event
// bus name. Default is "mailstore".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom OpenTelemetry tracer provider.
// Default uses otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry meter provider.
// Default uses otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Event Options ---

// WithEventErrorsFatal configures whether event publishing failures fail
// the operation. By default failures are logged and the write succeeds.
// When fatal, the caller receives the stored record together with an
// *EventPublishError.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventTransport sets the event transport. Without one (and without
// WithRedisClient) events are dropped by a noop transport.
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient publishes events to Redis Streams.
//
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler sets a callback for non-fatal event
// publishing failures. By default failures are logged.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}

func (o *options) limits() Limits {
	return Limits{
		MaxMessageSize:     o.maxMessageSize,
		MaxAttachmentSize:  o.maxAttachmentSize,
		MaxAttachmentCount: o.maxAttachmentCount,
	}
}
