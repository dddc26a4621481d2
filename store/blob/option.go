package blob

import (
	"log/slog"
)

// DefaultCompression is the algorithm used when none is configured.
const DefaultCompression = CompressionZstd

// options holds blob store configuration.
type options struct {
	compression Compression
	verify      bool
	logger      *slog.Logger
}

// Option configures the blob store.
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{
		compression: DefaultCompression,
		verify:      true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCompression sets the algorithm for newly stored payloads. Payloads
// that do not shrink are stored uncompressed regardless. Reads decode any
// algorithm.
// Default is zstd.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithVerify controls whether Retrieve recomputes the id of every payload
// it returns. A mismatch fails with ErrCorrupt.
// Default is true.
func WithVerify(enabled bool) Option {
	return func(o *options) {
		o.verify = enabled
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
