package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rbaliyan/mailstore/store"
)

// PutBlob inserts data under id. Existing ids are left untouched.
func (s *Store) PutBlob(ctx context.Context, id store.BlobID, data []byte) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}
	if data == nil {
		data = []byte{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, s.opts.blobTable)
	if _, err := s.db.ExecContext(ctx, query, string(id), data); err != nil {
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

	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, s.opts.blobTable)
	var data []byte
	if err := s.db.GetContext(ctx, &data, query, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get blob: %w", err)
	}
	if data == nil {
		data = []byte{}
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

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, s.opts.blobTable)
	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, string(id)); err != nil {
		return false, fmt.Errorf("has blob: %w", err)
	}
	return exists, nil
}
