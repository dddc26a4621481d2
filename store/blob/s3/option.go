package s3

import (
	"log/slog"
)

// Default configuration values.
const (
	DefaultRegion      = "us-east-1"
	DefaultPrefix      = "blobs"
	DefaultSessionName = "mailstore-blob-store"
)

// staticKeys is a fixed access key pair, optionally with a session token.
type staticKeys struct {
	id, secret, token string
}

func (k staticKeys) set() bool { return k.id != "" && k.secret != "" }

// role is an IAM role assumed through STS.
type role struct {
	arn, session, externalID string
}

type options struct {
	bucket, prefix, region string

	// endpoint targets an S3-compatible service such as MinIO.
	endpoint  string
	pathStyle bool

	keys   staticKeys
	assume role

	logger *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		region: DefaultRegion,
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures the S3 backend.
type Option func(*options)

// WithBucket names the bucket. Required.
func WithBucket(bucket string) Option {
	return func(o *options) { o.bucket = bucket }
}

// WithPrefix sets the key prefix objects are written under.
// Default is "blobs".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithRegion sets the AWS region. Empty values keep "us-east-1".
func WithRegion(region string) Option {
	return func(o *options) {
		if region != "" {
			o.region = region
		}
	}
}

// WithEndpoint points the client at an S3-compatible service.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithPathStyle switches to bucket-in-path addressing, which MinIO and
// LocalStack need. Only used together with WithEndpoint.
func WithPathStyle(enabled bool) Option {
	return func(o *options) { o.pathStyle = enabled }
}

// WithStaticCredentials authenticates with a fixed key pair. Without any
// credential option the SDK default chain applies.
func WithStaticCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.keys.id = accessKey
		o.keys.secret = secretKey
	}
}

// WithSessionToken adds the token of temporary static credentials.
func WithSessionToken(token string) Option {
	return func(o *options) { o.keys.token = token }
}

// WithAssumeRole obtains credentials by assuming roleARN. An empty
// sessionName becomes DefaultSessionName. Static credentials take
// precedence when both are set.
func WithAssumeRole(roleARN, sessionName string) Option {
	return func(o *options) {
		if sessionName == "" {
			sessionName = DefaultSessionName
		}
		o.assume.arn = roleARN
		o.assume.session = sessionName
	}
}

// WithExternalID sets the external id presented when assuming the role.
func WithExternalID(externalID string) Option {
	return func(o *options) { o.assume.externalID = externalID }
}

// WithLogger sets a custom logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
