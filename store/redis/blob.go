package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rbaliyan/mailstore/store"
)

// PutBlob writes data under id with SETNX, so an existing payload is kept.
func (s *Store) PutBlob(ctx context.Context, id store.BlobID, data []byte) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.SetNX(ctx, s.blobKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

// GetBlob reads the payload stored under id.
func (s *Store) GetBlob(ctx context.Context, id store.BlobID) ([]byte, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.blobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return data, nil
}

// HasBlob reports whether id is stored.
func (s *Store) HasBlob(ctx context.Context, id store.BlobID) (bool, error) {
	if err := s.checkConnected(); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	n, err := s.client.Exists(ctx, s.blobKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("has blob: %w", err)
	}
	return n > 0, nil
}
