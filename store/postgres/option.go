package postgres

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultRecordTable = "message_records"
	DefaultIndexTable  = "attachment_index"
	DefaultBlobTable   = "blobs"
	DefaultTimeout     = 10 * time.Second
)

// options holds PostgreSQL store configuration.
type options struct {
	recordTable string
	indexTable  string
	blobTable   string
	timeout     time.Duration
	logger      *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		recordTable: DefaultRecordTable,
		indexTable:  DefaultIndexTable,
		blobTable:   DefaultBlobTable,
		timeout:     DefaultTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a PostgreSQL store.
type Option func(*options)

// WithRecordTable sets the message record table name.
func WithRecordTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.recordTable = name
		}
	}
}

// WithIndexTable sets the attachment index table name.
func WithIndexTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.indexTable = name
		}
	}
}

// WithBlobTable sets the blob table name.
func WithBlobTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.blobTable = name
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
