package mongo

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultDatabase         = "mailstore"
	DefaultRecordCollection = "message_records"
	DefaultIndexCollection  = "attachment_index"
	DefaultBlobCollection   = "blobs"
	DefaultTimeout          = 10 * time.Second
)

// options holds MongoDB store configuration.
type options struct {
	database         string
	recordCollection string
	indexCollection  string
	blobCollection   string
	timeout          time.Duration
	logger           *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		database:         DefaultDatabase,
		recordCollection: DefaultRecordCollection,
		indexCollection:  DefaultIndexCollection,
		blobCollection:   DefaultBlobCollection,
		timeout:          DefaultTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a MongoDB store.
type Option func(*options)

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(o *options) {
		if name != "" {
			o.database = name
		}
	}
}

// WithRecordCollection sets the message record collection name.
func WithRecordCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.recordCollection = name
		}
	}
}

// WithIndexCollection sets the attachment index collection name.
func WithIndexCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.indexCollection = name
		}
	}
}

// WithBlobCollection sets the blob collection name.
func WithBlobCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.blobCollection = name
		}
	}
}

// WithTimeout sets the operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
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
