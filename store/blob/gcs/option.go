package gcs

import (
	"log/slog"
)

// DefaultPrefix is the object name prefix used when none is configured.
const DefaultPrefix = "blobs"

// auth is the credential source; the last credential option applied wins.
// The zero value means Application Default Credentials.
type auth struct {
	json   []byte
	file   string
	apiKey string
}

type options struct {
	bucket   string
	prefix   string
	endpoint string
	auth     auth
	logger   *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures the GCS backend.
type Option func(*options)

// WithBucket names the bucket. Required.
func WithBucket(bucket string) Option {
	return func(o *options) { o.bucket = bucket }
}

// WithPrefix sets the object name prefix. Default is "blobs".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEndpoint points the client at an emulator or private endpoint.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithCredentialsJSON authenticates with a service account key.
//
//	key, _ := os.ReadFile("service-account.json")
//	backend, _ := gcs.New(ctx, gcs.WithBucket("mail-blobs"), gcs.WithCredentialsJSON(key))
func WithCredentialsJSON(json []byte) Option {
	return func(o *options) { o.auth = auth{json: json} }
}

// WithCredentialsFile authenticates with a service account key file, like
// GOOGLE_APPLICATION_CREDENTIALS does.
func WithCredentialsFile(path string) Option {
	return func(o *options) { o.auth = auth{file: path} }
}

// WithAPIKey authenticates with an API key. Prefer service accounts or
// Workload Identity where available.
func WithAPIKey(key string) Option {
	return func(o *options) { o.auth = auth{apiKey: key} }
}

// WithLogger sets a custom logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
