// Package gcs provides a Google Cloud Storage-based store.BlobBackend.
//
// Each blob is one object named <prefix>/<id[0:2]>/<id>, written with a
// does-not-exist precondition so an existing object is never replaced.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/rbaliyan/mailstore/store"
)

var cloudPlatformScope = []string{"https://www.googleapis.com/auth/cloud-platform"}

// Store implements store.BlobBackend using Google Cloud Storage.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

var _ store.BlobBackend = (*Store)(nil)

// New creates a new GCS blob backend.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	o := newOptions(opts...)
	if o.bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}

	clientOpts, err := buildClientOptions(o)
	if err != nil {
		return nil, fmt.Errorf("build client options: %w", err)
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &Store{
		client: client,
		bucket: o.bucket,
		prefix: o.prefix,
		logger: o.logger,
	}, nil
}

// buildClientOptions turns the configured endpoint and credential source
// into client options.
func buildClientOptions(o *options) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if o.endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.endpoint))
	}

	detect := &credentials.DetectOptions{Scopes: cloudPlatformScope}
	switch a := o.auth; {
	case a.apiKey != "":
		return append(opts, option.WithAPIKey(a.apiKey)), nil
	case a.json != nil:
		detect.CredentialsJSON = a.json
	case a.file != "":
		detect.CredentialsFile = a.file
	default:
		return opts, nil
	}

	creds, err := credentials.DetectDefault(detect)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return append(opts, option.WithAuthCredentials(creds)), nil
}

// Close closes the GCS client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) objectName(id store.BlobID) string {
	name := string(id)
	if len(name) < 2 {
		return path.Join(s.prefix, name)
	}
	return path.Join(s.prefix, name[:2], name)
}

// PutBlob writes data under id unless the object already exists.
func (s *Store) PutBlob(ctx context.Context, id store.BlobID, data []byte) error {
	if id == "" {
		return store.ErrInvalidID
	}
	name := s.objectName(id)

	obj := s.client.Bucket(s.bucket).Object(name).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write blob to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			s.logger.Debug("blob already in gcs", "bucket", s.bucket, "name", name)
			return nil
		}
		return fmt.Errorf("close gcs writer: %w", err)
	}

	s.logger.Debug("uploaded blob to gcs", "bucket", s.bucket, "name", name, "size", len(data))
	return nil
}

// GetBlob reads the object for id.
func (s *Store) GetBlob(ctx context.Context, id store.BlobID) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(id)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("create gcs reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read blob from gcs: %w", err)
	}
	return data, nil
}

// HasBlob fetches the object attributes for id.
func (s *Store) HasBlob(ctx context.Context, id store.BlobID) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(s.objectName(id)).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs attrs: %w", err)
	}
	return true, nil
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
