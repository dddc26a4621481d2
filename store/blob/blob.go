// Package blob provides the content-addressed BlobStore used by the engine.
//
// Payloads are identified by a BLAKE3 digest of their uncompressed bytes,
// compressed into a small self-describing frame, and written to any
// store.BlobBackend: the memory, postgres, mongo and redis substrates, or
// the S3 and GCS object stores under store/blob.
//
//	backend := memory.New()
//	_ = backend.Connect(ctx)
//	blobs := blob.New(backend, blob.WithCompression(blob.CompressionLZ4))
//	id, _ := blobs.Store(ctx, []byte("hello"))
//	data, _ := blobs.Retrieve(ctx, id)
package blob

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rbaliyan/mailstore/store"
)

// ErrCorrupt is returned when a stored payload cannot be decoded or does not
// match its id. It wraps store.ErrConsistency.
var ErrCorrupt = fmt.Errorf("blob: corrupt payload: %w", store.ErrConsistency)

// Store is a content-addressed store.BlobStore over a store.BlobBackend.
// Safe for concurrent use.
type Store struct {
	backend store.BlobBackend
	opts    *options
	logger  *slog.Logger
}

var _ store.BlobStore = (*Store)(nil)

// New creates a blob store writing to backend.
func New(backend store.BlobBackend, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		backend: backend,
		opts:    o,
		logger:  o.logger,
	}
}

// Store persists data and returns its id. When the backend already holds
// the id, no physical write is issued.
func (s *Store) Store(ctx context.Context, data []byte) (store.BlobID, error) {
	id := ID(data)

	exists, err := s.backend.HasBlob(ctx, id)
	if err != nil {
		return "", fmt.Errorf("check blob %s: %w", id.Short(), err)
	}
	if exists {
		s.logger.Debug("blob already stored", "id", id.Short(), "size", len(data))
		return id, nil
	}

	frame, err := encodeFrame(data, s.opts.compression)
	if err != nil {
		return "", fmt.Errorf("encode blob %s: %w", id.Short(), err)
	}
	if err := s.backend.PutBlob(ctx, id, frame); err != nil {
		return "", fmt.Errorf("put blob %s: %w", id.Short(), err)
	}

	s.logger.Debug("blob stored",
		"id", id.Short(),
		"size", len(data),
		"stored_size", len(frame),
		"compression", Compression(frame[0]).String())
	return id, nil
}

// Retrieve returns the bytes stored under id.
// Returns store.ErrNotFound if id was never stored.
func (s *Store) Retrieve(ctx context.Context, id store.BlobID) ([]byte, error) {
	if id == "" {
		return nil, store.ErrInvalidID
	}
	frame, err := s.backend.GetBlob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", id.Short(), err)
	}
	data, err := decodeFrame(frame)
	if err != nil {
		s.logger.Warn("undecodable blob", "id", id.Short(), "error", err)
		return nil, fmt.Errorf("blob %s: %w", id.Short(), err)
	}
	if s.opts.verify {
		if got := ID(data); got != id {
			s.logger.Warn("blob digest mismatch", "id", id.Short(), "computed", got.Short())
			return nil, fmt.Errorf("blob %s: %w: digest mismatch", id.Short(), ErrCorrupt)
		}
	}
	return data, nil
}
