// Package s3 provides an S3-based store.BlobBackend.
//
// Each blob is one object named <prefix>/<id[0:2]>/<id>. Objects are
// immutable: an id always maps to the same bytes, so a repeated upload
// rewrites identical content.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/rbaliyan/mailstore/store"
)

// Store implements store.BlobBackend using AWS S3.
type Store struct {
	client *s3.Client
	tm     *transfermanager.Client
	bucket string
	prefix string
	logger *slog.Logger
}

var _ store.BlobBackend = (*Store)(nil)

// New creates a new S3 blob backend.
// The context is used for AWS credential loading and configuration.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	o := newOptions(opts...)
	if o.bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	awsCfg, err := buildAWSConfig(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("build aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
			so.UsePathStyle = o.pathStyle
		}
	})

	return &Store{
		client: client,
		tm:     transfermanager.New(client),
		bucket: o.bucket,
		prefix: o.prefix,
		logger: o.logger,
	}, nil
}

// buildAWSConfig builds AWS config based on authentication options.
func buildAWSConfig(ctx context.Context, o *options) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{config.WithRegion(o.region)}

	switch {
	case o.keys.set():
		creds := credentials.NewStaticCredentialsProvider(o.keys.id, o.keys.secret, o.keys.token)
		optFns = append(optFns, config.WithCredentialsProvider(creds))

	case o.assume.arn != "":
		baseCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(o.region))
		if err != nil {
			return aws.Config{}, fmt.Errorf("load base config for role: %w", err)
		}
		optFns = append(optFns, config.WithCredentialsProvider(assumeRoleProvider(baseCfg, o.assume)))

	default:
		// SDK default credential chain.
	}

	return config.LoadDefaultConfig(ctx, optFns...)
}

// objectKey fans objects out over 256 key prefixes.
func (s *Store) objectKey(id store.BlobID) string {
	id2 := string(id)
	if len(id2) < 2 {
		return path.Join(s.prefix, id2)
	}
	return path.Join(s.prefix, id2[:2], id2)
}

// PutBlob uploads data under id.
func (s *Store) PutBlob(ctx context.Context, id store.BlobID, data []byte) error {
	if id == "" {
		return store.ErrInvalidID
	}
	key := s.objectKey(id)

	_, err := s.tm.UploadObject(ctx, &transfermanager.UploadObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}

	s.logger.Debug("uploaded blob to s3", "bucket", s.bucket, "key", key, "size", len(data))
	return nil
}

// GetBlob downloads the object for id.
func (s *Store) GetBlob(ctx context.Context, id store.BlobID) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get object from s3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object from s3: %w", err)
	}
	return data, nil
}

// HasBlob issues a HEAD request for id.
func (s *Store) HasBlob(ctx context.Context, id store.BlobID) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object in s3: %w", err)
	}
	return true, nil
}

// isNotFound matches the errors S3 returns for a missing key. GetObject
// reports NoSuchKey, HEAD requests have no body and report NotFound.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
